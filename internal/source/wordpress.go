package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	libraryPath   = "/wp-json/wp/v2/biblioteca"
	mediaPath     = "/wp-json/wp/v2/media/"
	submissions   = "/submissions/"
	wpDateLayout  = "2006-01-02T15:04:05"
	conferenceLib = "conferencias"
	documentsLib  = "documentos"
)

// Tree walks the digital library. Each level is fetched on first access and
// memoized by the underlying Client until Reload.
type Tree struct {
	client *Client
	logger *slog.Logger
}

// NewTree creates a tree reading through client.
func NewTree(client *Client, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{client: client, logger: logger}
}

// Reload drops every memoized node so the next traversal hits the network.
func (t *Tree) Reload() {
	t.client.Reload()
}

// library returns the root library whose title contains name.
func (t *Tree) library(ctx context.Context, name string) (*wpPost, error) {
	rootURL := t.client.Resolve(libraryPath + "?parent=0")
	roots, err := listJSON[wpPost](ctx, t.client, rootURL)
	if err != nil {
		return nil, fmt.Errorf("listing libraries: %w", err)
	}
	for i := range roots {
		if strings.Contains(strings.ToLower(roots[i].title()), name) {
			return &roots[i], nil
		}
	}
	return nil, &FetchError{URL: rootURL, Err: fmt.Errorf("%w: no %q library", ErrNotFound, name)}
}

func (t *Tree) children(ctx context.Context, n Node) ([]wpPost, error) {
	if n.CollectionURL == "" {
		return nil, &FetchError{URL: n.Link, Err: fmt.Errorf("%w: node %s has no collection link", ErrMalformed, n.ID)}
	}
	childURL, err := withQuery(n.CollectionURL, map[string]string{"parent": n.ID})
	if err != nil {
		return nil, &FetchError{URL: n.CollectionURL, Err: err}
	}
	return listJSON[wpPost](ctx, t.client, childURL)
}

// Conferences returns the conference series sorted by title.
func (t *Tree) Conferences(ctx context.Context) ([]Conference, error) {
	lib, err := t.library(ctx, conferenceLib)
	if err != nil {
		return nil, err
	}
	posts, err := t.children(ctx, lib.node())
	if err != nil {
		return nil, fmt.Errorf("listing conferences: %w", err)
	}

	out := make([]Conference, 0, len(posts))
	for i := range posts {
		n := posts[i].node()
		acronym, ok := Acronym(n.Title)
		if !ok {
			return nil, fmt.Errorf("%w: unable to determine acronym for conference %q", ErrMalformed, n.Title)
		}
		out = append(out, Conference{Node: n, Acronym: acronym})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Editions returns the editions of c sorted by title.
func (t *Tree) Editions(ctx context.Context, c Conference) ([]Edition, error) {
	posts, err := t.children(ctx, c.Node)
	if err != nil {
		return nil, fmt.Errorf("listing editions of %s: %w", c.Acronym, err)
	}

	out := make([]Edition, 0, len(posts))
	for i := range posts {
		n := posts[i].node()
		year, ok := Year(n.Title)
		if !ok {
			return nil, fmt.Errorf("%w: unable to determine year for edition %q", ErrMalformed, n.Title)
		}
		e := Edition{Node: n, Conference: c.Acronym, Year: year}
		if d, err := time.Parse(wpDateLayout, posts[i].Date); err == nil {
			e.Date = d
		} else {
			t.logger.Debug("edition without a usable date", "title", n.Title, "date", posts[i].Date)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Tracks returns the tracks of e in source order.
func (t *Tree) Tracks(ctx context.Context, e Edition) ([]Track, error) {
	posts, err := t.children(ctx, e.Node)
	if err != nil {
		return nil, fmt.Errorf("listing tracks of %q: %w", e.Title, err)
	}
	out := make([]Track, 0, len(posts))
	for i := range posts {
		out = append(out, Track{Node: posts[i].node()})
	}
	return out, nil
}

// Articles fetches the articles attached directly to n.
func (t *Tree) Articles(ctx context.Context, n Node) ([]Article, error) {
	out := make([]Article, 0, len(n.ArticleURLs))
	for _, u := range n.ArticleURLs {
		a, err := t.article(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CountArticles returns the number of articles of e, its own plus those
// of its tracks, without fetching them.
func (t *Tree) CountArticles(ctx context.Context, e Edition) (int, error) {
	tracks, err := t.Tracks(ctx, e)
	if err != nil {
		return 0, err
	}
	n := len(e.ArticleURLs)
	for _, tr := range tracks {
		n += len(tr.ArticleURLs)
	}
	return n, nil
}

func (t *Tree) article(ctx context.Context, rawURL string) (Article, error) {
	var p wpPost
	if err := t.client.getJSON(ctx, rawURL, &p); err != nil {
		return Article{}, fmt.Errorf("fetching article: %w", err)
	}

	raw := p.title()
	title, isAbstract := CleanTitle(raw)
	if title != raw {
		t.logger.Info("cleaned article title", "from", raw, "to", title)
	}

	a := Article{
		ID:         string(p.ID),
		Link:       p.Link,
		Title:      title,
		RawTitle:   raw,
		IsAbstract: isAbstract,
		Excerpt:    strings.TrimSpace(p.Excerpt.Rendered),
		Abstract:   p.Metadata["abstract"],
		RawLicense: p.Metadata["autorizacion"],
		License:    ParseLicense(p.Metadata["autorizacion"]),
		Handle:     p.Metadata["handle"],
		Authors:    p.authors(),
		Keywords:   t.keywords(ctx, &p),
	}

	doc, err := t.documentURL(ctx, &p)
	if err != nil {
		return Article{}, fmt.Errorf("document of article %s: %w", a.ID, err)
	}
	a.DocumentURL = doc
	return a, nil
}

// keywords reads the article's terms. Failures are logged and yield no
// keywords.
func (t *Tree) keywords(ctx context.Context, p *wpPost) []string {
	termsURL := p.link("wp:term")
	var terms []wpTerm
	if termsURL == "" {
		t.logger.Warn("article has no keywords", "link", p.Link)
		return nil
	}
	if err := t.client.getJSON(ctx, termsURL, &terms); err != nil {
		t.logger.Error("unable to retrieve keywords", "link", p.Link, "error", err)
		return nil
	}
	var out []string
	for _, term := range terms {
		if k := CleanKeyword(term.Name); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		t.logger.Warn("article has no keywords", "link", p.Link)
	}
	return out
}

// documentURL locates the article's PDF: either an uploaded submission
// file or a media attachment. Articles without either return "".
func (t *Tree) documentURL(ctx context.Context, p *wpPost) (string, error) {
	post, err := url.Parse(p.Link)
	if err != nil || post.Host == "" {
		post, _ = url.Parse(t.client.BaseURL())
	}
	root := &url.URL{Scheme: post.Scheme, Host: post.Host}

	if f := p.Metadata["paper_pdf_file"]; f != "" {
		return root.String() + submissions + f, nil
	}
	id := p.Metadata["paper_pdf"]
	if id == "" {
		return "", nil
	}
	var m wpMedia
	if err := t.client.getJSON(ctx, root.String()+mediaPath+id, &m); err != nil {
		return "", err
	}
	return strings.TrimSpace(m.SourceURL), nil
}
