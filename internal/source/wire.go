package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// wpID accepts both numeric and string ids.
type wpID string

func (id *wpID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wpID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = wpID(n.String())
	return nil
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type wpLink struct {
	Href string `json:"href"`
}

// wpMetadata flattens the post metadata map. Values may come as a string,
// a number or a single-element array depending on the plugin version.
type wpMetadata map[string]string

func (m *wpMetadata) UnmarshalJSON(data []byte) error {
	out := make(wpMetadata)
	*m = out
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// Empty metadata is serialized as [] or false.
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		out[k] = html.UnescapeString(strings.TrimSpace(scalar(v)))
	}
	return nil
}

func scalar(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	var list []json.RawMessage
	if json.Unmarshal(v, &list) == nil && len(list) > 0 {
		return scalar(list[0])
	}
	return ""
}

// orderedURLs is the "articulos" field: an object whose values are article
// URLs, kept in document order. Nodes without articles send [] or false.
type orderedURLs []string

func (o *orderedURLs) UnmarshalJSON(data []byte) error {
	*o = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil
		}
		*o = compact(list)
		return nil
	case '{':
	default:
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var urls []string
	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		urls = append(urls, scalar(v))
	}
	*o = compact(urls)
	return nil
}

func compact(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// wpPost is a library node or article as served by the REST API.
type wpPost struct {
	ID        wpID                `json:"id"`
	Date      string              `json:"date"`
	Link      string              `json:"link"`
	Title     rendered            `json:"title"`
	Content   rendered            `json:"content"`
	Excerpt   rendered            `json:"excerpt"`
	Links     map[string][]wpLink `json:"_links"`
	Metadata  wpMetadata          `json:"metadata"`
	Articulos orderedURLs         `json:"articulos"`
}

func (p *wpPost) title() string {
	return strings.TrimSpace(html.UnescapeString(p.Title.Rendered))
}

func (p *wpPost) link(rel string) string {
	if l := p.Links[rel]; len(l) > 0 {
		return strings.TrimSpace(l[0].Href)
	}
	return ""
}

func (p *wpPost) node() Node {
	return Node{
		ID:            string(p.ID),
		Link:          p.Link,
		Title:         p.title(),
		Description:   strings.TrimSpace(p.Content.Rendered),
		CollectionURL: p.link("collection"),
		ArticleURLs:   p.Articulos,
	}
}

type wpTerm struct {
	Name string `json:"name"`
}

type wpMedia struct {
	ID        wpID   `json:"id"`
	SourceURL string `json:"source_url"`
}

// maxAuthors is the number of author slots in the article metadata.
const maxAuthors = 8

func (p *wpPost) authors() []AuthorMention {
	var out []AuthorMention
	for i := 1; i <= maxAuthors; i++ {
		n := strconv.Itoa(i)
		name := p.Metadata["author_name_"+n]
		if name == "" {
			continue
		}
		out = append(out, AuthorMention{
			Name:        name,
			Email:       p.Metadata["author_email_"+n],
			Affiliation: p.Metadata["author_univ_"+n],
		})
	}
	return out
}
