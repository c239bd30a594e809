package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"
)

// Bulletins and seminars have no REST endpoint; they are scraped from the
// site's listing pages.
const (
	bulletinsPath = "/boletin/boletines-de-prensa/"
	seminarsPath  = "/seminario/seminarios-sistedes/"

	bulletinsMenu = "Boletines de Prensa"
	seminarsMenu  = "Seminarios SISTEDES"
)

var bulletinLink = regexp.MustCompile(`boletin/boletines-de-prensa/20\S+/\S+`)

// documentsRoot returns the site root the documents library lives on.
func (t *Tree) documentsRoot(ctx context.Context) string {
	lib, err := t.library(ctx, documentsLib)
	if err != nil {
		t.logger.Debug("documents library not listed, using source root", "error", err)
		return t.client.BaseURL()
	}
	u, err := url.Parse(lib.link("collection"))
	if err != nil || u.Host == "" {
		return t.client.BaseURL()
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

func (t *Tree) page(ctx context.Context, rawURL string) (*xhtml.Node, error) {
	body, err := t.client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := xhtml.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	return doc, nil
}

// menuLinks returns the hrefs listed under the menu entry whose anchor text
// is label.
func menuLinks(doc *xhtml.Node, label string) []string {
	anchor := findElement(doc, func(n *xhtml.Node) bool {
		return n.Data == "a" && collapseSpace(textContent(n)) == label
	})
	if anchor == nil {
		return nil
	}
	var list *xhtml.Node
	for s := anchor.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == xhtml.ElementNode {
			if s.Data == "ul" {
				list = s
			}
			break
		}
	}
	if list == nil {
		return nil
	}
	var out []string
	for _, a := range findAll(list, func(n *xhtml.Node) bool { return n.Data == "a" }) {
		if href := strings.TrimSpace(attr(a, "href")); href != "" {
			out = append(out, href)
		}
	}
	return out
}

// Bulletins returns the press bulletins sorted by date.
func (t *Tree) Bulletins(ctx context.Context) ([]Bulletin, error) {
	listURL := t.documentsRoot(ctx) + bulletinsPath
	doc, err := t.page(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing bulletins: %w", err)
	}

	var out []Bulletin
	for _, href := range menuLinks(doc, bulletinsMenu) {
		if !bulletinLink.MatchString(href) {
			continue
		}
		b, err := t.bulletin(ctx, href)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *Tree) bulletin(ctx context.Context, rawURL string) (Bulletin, error) {
	doc, err := t.page(ctx, rawURL)
	if err != nil {
		return Bulletin{}, fmt.Errorf("fetching bulletin: %w", err)
	}

	b := Bulletin{Link: rawURL, Title: bulletinTitle(pageTitle(doc))}
	if b.Title == "" {
		t.logger.Error("unable to parse bulletin title", "url", rawURL)
	}
	if a := handleLink(doc); a != nil {
		b.Handle = collapseSpace(textContent(a))
	} else {
		t.logger.Error("unable to parse bulletin handle", "url", rawURL)
	}
	if a := findElement(doc, func(n *xhtml.Node) bool {
		return n.Data == "a" && collapseSpace(textContent(n)) == "Descargar"
	}); a != nil {
		b.DocumentURL = strings.TrimSpace(attr(a, "href"))
	} else {
		t.logger.Error("unable to parse bulletin document", "url", rawURL)
	}

	d, err := BulletinDate(b.Title)
	if err != nil {
		return Bulletin{}, fmt.Errorf("bulletin %s: %w", rawURL, err)
	}
	b.Date = d
	return b, nil
}

// bulletinTitle normalizes "Boletín Nº 5. Marzo de 2021" into
// "Boletín nº 5 - marzo de 2021".
func bulletinTitle(s string) string {
	s = strings.ReplaceAll(s, ". ", " - ")
	s = strings.ReplaceAll(s, "–", "-")
	return capitalize(strings.ToLower(s))
}

// BulletinDate parses the "<mes> [de] <año>" part after " - " in a
// bulletin title.
func BulletinDate(title string) (time.Time, error) {
	parts := strings.SplitN(title, " - ", 2)
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("%w: no date in bulletin title %q", ErrMalformed, title)
	}
	var fields []string
	for _, f := range strings.Fields(parts[1]) {
		if !strings.EqualFold(f, "de") {
			fields = append(fields, f)
		}
	}
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("%w: unexpected bulletin date %q", ErrMalformed, parts[1])
	}
	month, ok := parseMonth(fields[0])
	year, err := strconv.Atoi(fields[1])
	if !ok || err != nil {
		return time.Time{}, fmt.Errorf("%w: unexpected bulletin date %q", ErrMalformed, parts[1])
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
}

// Seminars returns the seminars sorted by date.
func (t *Tree) Seminars(ctx context.Context) ([]Seminar, error) {
	listURL := t.documentsRoot(ctx) + seminarsPath
	doc, err := t.page(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing seminars: %w", err)
	}

	var out []Seminar
	for _, href := range menuLinks(doc, seminarsMenu) {
		s, err := t.seminar(ctx, href)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *Tree) seminar(ctx context.Context, rawURL string) (Seminar, error) {
	doc, err := t.page(ctx, rawURL)
	if err != nil {
		return Seminar{}, fmt.Errorf("fetching seminar: %w", err)
	}

	s := Seminar{Link: rawURL, Title: pageTitle(doc)}
	if s.Title == "" {
		t.logger.Error("unable to parse seminar title", "url", rawURL)
	}

	if h3 := findElement(doc, func(n *xhtml.Node) bool {
		return n.Data == "h3" && collapseSpace(textContent(n)) == "Resumen:"
	}); h3 != nil {
		s.Summary = strings.TrimSpace(renderSiblings(h3.NextSibling, nil))
	} else {
		t.logger.Error("unable to parse seminar summary", "url", rawURL)
	}

	authors := findElement(doc, func(n *xhtml.Node) bool { return n.Data == "div" && attr(n, "id") == "div-authors" })
	if authors == nil {
		return Seminar{}, fmt.Errorf("%w: seminar %s has no speakers section", ErrMalformed, rawURL)
	}
	if span := findElement(authors, func(n *xhtml.Node) bool { return n.Data == "span" }); span != nil {
		s.Speakers = ParseSpeakers(textContent(span))
	}
	if len(s.Speakers) == 0 {
		return Seminar{}, fmt.Errorf("%w: seminar %s must have a speaker", ErrMalformed, rawURL)
	}

	bio, dateText := speakerDetails(authors)
	s.Bio = cleanBio(bio)
	d, err := SeminarDate(dateText)
	if err != nil {
		return Seminar{}, fmt.Errorf("seminar %s: %w", rawURL, err)
	}
	s.Date = d

	if pdf := findElement(doc, func(n *xhtml.Node) bool { return n.Data == "div" && attr(n, "id") == "entry-pdf" }); pdf != nil {
		if a := handleLink(pdf); a != nil {
			s.Handle = collapseSpace(textContent(a))
		}
	}
	if s.Handle == "" {
		t.logger.Error("unable to parse seminar handle", "url", rawURL)
	}
	return s, nil
}

// speakerDetails splits the speakers section: the nodes following the
// speakers list up to the next heading are the bio, and the paragraph after
// that heading holds the date.
func speakerDetails(section *xhtml.Node) (bio, date string) {
	var list *xhtml.Node
	for c := section.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && c.Data == "ul" {
			list = c
			break
		}
	}
	if list == nil {
		return "", ""
	}
	var heading *xhtml.Node
	for c := list.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && c.Data == "h3" {
			heading = c
			break
		}
	}
	bio = renderSiblings(list.NextSibling, heading)
	if heading == nil {
		return bio, ""
	}
	for c := heading.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode && c.Data == "p" {
			return bio, collapseSpace(textContent(c))
		}
	}
	return bio, ""
}

var (
	bioParagraphEnd = regexp.MustCompile(`\s*</p>\s*`)
	bioBreaks       = regexp.MustCompile(`\s*(?:<br/?>)+\s*`)
	bioUnavailable  = regexp.MustCompile(`<p>\s*\(información no disponible\)\s*</p>`)
	bioEmpty        = regexp.MustCompile(`<(p|span|div|strong|em|b|i)>\s*</(?:p|span|div|strong|em|b|i)>`)
)

func cleanBio(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "")
	s = bioParagraphEnd.ReplaceAllString(s, "</p>")
	s = bioBreaks.ReplaceAllString(s, "</p>\n<p>")
	s = bioUnavailable.ReplaceAllString(s, "")
	s = bioEmpty.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var speakerPattern = regexp.MustCompile(`([^(]+)\s*(?:\((.*?)\))?[,;]?`)

// ParseSpeakers reads "Name (Affiliation), Other Name (Other)" lists.
// Quotes inside affiliations are dropped.
func ParseSpeakers(s string) []AuthorMention {
	var out []AuthorMention
	for _, m := range speakerPattern.FindAllStringSubmatch(collapseSpace(s), -1) {
		name := strings.Trim(m[1], " ,;")
		if name == "" {
			continue
		}
		out = append(out, AuthorMention{
			Name:        name,
			Affiliation: strings.TrimSpace(strings.ReplaceAll(m[2], `"`, "")),
		})
	}
	return out
}

var seminarDatePattern = regexp.MustCompile(`^(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})(?:,\s*(\d{1,2}):(\d{2})\s*h\.?)?$`)

// SeminarDate parses "2 de marzo de 2021" or "2 de marzo de 2021, 16:00 h."
// as a UTC time.
func SeminarDate(s string) (time.Time, error) {
	m := seminarDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: unexpected seminar date %q", ErrMalformed, s)
	}
	month, ok := parseMonth(m[2])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month in %q", ErrMalformed, s)
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC), nil
}

// pageTitle returns the trimmed <h1> inside the page <header>.
func pageTitle(doc *xhtml.Node) string {
	header := findElement(doc, func(n *xhtml.Node) bool { return n.Data == "header" })
	if header == nil {
		return ""
	}
	if h1 := findElement(header, func(n *xhtml.Node) bool { return n.Data == "h1" }); h1 != nil {
		return collapseSpace(textContent(h1))
	}
	return ""
}

func handleLink(n *xhtml.Node) *xhtml.Node {
	return findElement(n, func(n *xhtml.Node) bool {
		return n.Data == "a" && strings.Contains(attr(n, "href"), "hdl.handle.net")
	})
}
