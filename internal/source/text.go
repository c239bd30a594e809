package source

import (
	"bytes"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

// titleRule strips a qualifier around a paper title. The first capture
// group is the clean title.
type titleRule struct {
	re       *regexp.Regexp
	abstract bool
}

func suffixRule(qualifier string, abstract bool) titleRule {
	return titleRule{re: regexp.MustCompile(`^«?(.*?)»?\s*\(` + qualifier + `\)\s*$`), abstract: abstract}
}

func prefixRule(qualifier string, abstract bool) titleRule {
	return titleRule{re: regexp.MustCompile(`^\s*` + qualifier + `\s*«?(.*?)»?\s*$`), abstract: abstract}
}

var titleRules = []titleRule{
	suffixRule(`(?:[Tt]ool\s*)?[Dd]emo(?:straci[oó]n)?`, false),
	suffixRule(`[Tt]utorial`, false),
	suffixRule(`[Ww]ork in [Pp]rogress`, false),
	suffixRule(`[Tt]rabajo en [Pp]rogreso`, false),
	suffixRule(`[Tt]rabajo [Oo]riginal`, false),
	suffixRule(`[Rr]esumen`, true),
	suffixRule(`[Aa]bstract`, true),
	suffixRule(`[Ss]ummary`, true),
	suffixRule(`[Ee]xtended [Aa]bstract`, true),
	suffixRule(`RELEVANTE YA PUBLICADO`, false),
	suffixRule(`YA PUBLICADO`, false),
	suffixRule(`Trabajo ya publicado`, false),
	suffixRule(`[Aa]rtículo [Rr]elevante`, false),
	suffixRule(`Trabajo de alto nivel`, false),
	prefixRule(`\([Aa]rtículo [Rr]elevante\)`, false),
	prefixRule(`[Tt]rabajo [Rr]elevante\s*\W*`, false),
	prefixRule(`\([Tt]rabajo [Rr]elevante\)`, false),
	prefixRule(`ART[IÍ]CULO RELEVANTE:`, false),
	prefixRule(`[Ee]xtended [Aa]bstract of`, true),
}

// CleanTitle removes editorial qualifiers such as "(Resumen)" or
// "(Artículo relevante)" from a paper title. The boolean reports whether the
// qualifier marks the paper as an abstract.
func CleanTitle(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range titleRules {
		if m := r.re.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1]), r.abstract
		}
	}
	return raw, false
}

var (
	acronymPattern = regexp.MustCompile(`\(\b([A-Z]+)\b\)`)
	yearPattern    = regexp.MustCompile(`\b((?:199|20[012])[0-9])\b`)
)

// Acronym extracts the parenthesized acronym of a conference title.
func Acronym(title string) (string, bool) {
	m := acronymPattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Year extracts the edition year from a title. The publication date the
// site reports is only reliable for recent editions.
func Year(title string) (int, bool) {
	m := yearPattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

var (
	quoted      = regexp.MustCompile(`^"(.*)"$`)
	trailingDot = regexp.MustCompile(`^(.*)\.$`)
)

// CleanKeyword trims a keyword, capitalizes every word and drops
// surrounding quotes and a trailing period.
func CleanKeyword(k string) string {
	k = capitalizeWords(strings.TrimSpace(html.UnescapeString(k)))
	k = quoted.ReplaceAllString(k, "$1")
	k = trailingDot.ReplaceAllString(k, "$1")
	return k
}

// capitalizeWords upper-cases the first letter of each whitespace-separated
// word, leaving the rest untouched.
func capitalizeWords(s string) string {
	var b strings.Builder
	start := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			start = true
			b.WriteRune(r)
			continue
		}
		if start {
			r = unicode.ToUpper(r)
			start = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// FirstParagraph returns the text of the first <p> element of an HTML
// fragment, with tags removed. Fragments without paragraphs yield their
// whole text.
func FirstParagraph(fragment string) string {
	nodes := parseFragment(fragment)
	for _, n := range nodes {
		if p := findElement(n, func(n *xhtml.Node) bool { return n.Data == "p" }); p != nil {
			return collapseSpace(textContent(p))
		}
	}
	return StripTags(fragment)
}

// StripTags returns the text content of an HTML fragment.
func StripTags(fragment string) string {
	var b strings.Builder
	for _, n := range parseFragment(fragment) {
		b.WriteString(textContent(n))
	}
	return collapseSpace(b.String())
}

func parseFragment(fragment string) []*xhtml.Node {
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body"}
	nodes, err := xhtml.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil
	}
	return nodes
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textContent concatenates the text nodes under n.
func textContent(n *xhtml.Node) string {
	if n.Type == xhtml.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// findElement returns the first element under n (n included) accepted by
// match, in document order.
func findElement(n *xhtml.Node, match func(*xhtml.Node) bool) *xhtml.Node {
	if n.Type == xhtml.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every element under n accepted by match.
func findAll(n *xhtml.Node, match func(*xhtml.Node) bool) []*xhtml.Node {
	var out []*xhtml.Node
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// renderSiblings serializes the nodes from first up to (not including)
// stop, skipping comments.
func renderSiblings(first, stop *xhtml.Node) string {
	var buf bytes.Buffer
	for n := first; n != nil && n != stop; n = n.NextSibling {
		if n.Type == xhtml.CommentNode {
			continue
		}
		_ = xhtml.Render(&buf, n)
	}
	return buf.String()
}

// innerHTML serializes the children of n.
func innerHTML(n *xhtml.Node) string {
	return renderSiblings(n.FirstChild, nil)
}
