// Package source reads the Sistedes digital library from its WordPress
// site: conferences, editions, tracks and articles from the REST API, and
// bulletins and seminars scraped from their HTML pages.
package source

import (
	"fmt"
	"strings"
	"time"
)

// Node holds the fields shared by the library hierarchy levels.
type Node struct {
	ID            string `json:"id"`
	Link          string `json:"link"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"` // HTML
	CollectionURL string `json:"collection_url,omitempty"`

	// ArticleURLs lists the articles attached directly to the node, in
	// source order.
	ArticleURLs []string `json:"article_urls,omitempty"`
}

// Conference is a top-level conference series, e.g. "Jornadas de
// Ingeniería del Software y Bases de Datos (JISBD)".
type Conference struct {
	Node
	Acronym string `json:"acronym"`
}

// Edition is one yearly edition of a conference.
type Edition struct {
	Node
	Conference string    `json:"conference"` // acronym of the owning conference
	Year       int       `json:"year"`
	Date       time.Time `json:"date"`
}

// ProceedingsName names the edition's proceedings, as used in collection
// abstracts and the is-part-of field of its papers.
func (e Edition) ProceedingsName() string {
	return "Actas de las " + e.Title
}

// Track is a session or thematic track of an edition. A track without
// articles is front matter (committees, preface, invited talks...).
type Track struct {
	Node
}

// AuthorMention is an author as written in the source.
type AuthorMention struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Article is a paper.
type Article struct {
	ID       string `json:"id"`
	Link     string `json:"link"`
	Title    string `json:"title"`
	RawTitle string `json:"raw_title,omitempty"`

	// IsAbstract is set when the title carried an abstract/summary
	// qualifier; such papers are linked to their authors as abstracts.
	IsAbstract bool `json:"is_abstract,omitempty"`

	Excerpt     string          `json:"excerpt,omitempty"`
	Abstract    string          `json:"abstract,omitempty"`
	License     License         `json:"license"`
	RawLicense  string          `json:"raw_license,omitempty"`
	Handle      string          `json:"handle,omitempty"`
	Authors     []AuthorMention `json:"authors,omitempty"`
	Keywords    []string        `json:"keywords,omitempty"`
	DocumentURL string          `json:"document_url,omitempty"`
}

// Bulletin is a press bulletin.
type Bulletin struct {
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Handle      string    `json:"handle,omitempty"`
	DocumentURL string    `json:"document_url,omitempty"`
}

// Description returns "Boletín de Sistedes. <Mes> de <año>."
func (b Bulletin) Description() string {
	return fmt.Sprintf("Boletín de Sistedes. %s de %d.", capitalize(monthName(b.Date.Month())), b.Date.Year())
}

// Seminar is a recorded talk.
type Seminar struct {
	Link     string          `json:"link"`
	Title    string          `json:"title"`
	Summary  string          `json:"summary,omitempty"` // HTML
	Bio      string          `json:"bio,omitempty"`     // HTML
	Speakers []AuthorMention `json:"speakers"`
	Date     time.Time       `json:"date"`
	Handle   string          `json:"handle,omitempty"`
}

// License is the publication license declared for a paper.
type License string

const (
	LicenseCCBY       License = "CC BY 4.0"
	LicenseCCBYNCND   License = "CC BY-NC-ND 4.0"
	LicenseRestricted License = "Restringida"
	LicensePublished  License = "Ya Publicado"
	LicenseUnknown    License = "Unknown"
)

// ParseLicense maps the source's authorization field to a License. The
// library uses "CreativeCommons" and "1" for CC BY in older entries.
func ParseLicense(s string) License {
	switch strings.TrimSpace(s) {
	case string(LicenseCCBY), "CreativeCommons", "1":
		return LicenseCCBY
	case string(LicenseCCBYNCND):
		return LicenseCCBYNCND
	case string(LicenseRestricted):
		return LicenseRestricted
	case string(LicensePublished):
		return LicensePublished
	}
	return LicenseUnknown
}

// URL returns the license deed, or "" for non-CC licenses.
func (l License) URL() string {
	switch l {
	case LicenseCCBY:
		return "https://creativecommons.org/licenses/by/4.0/"
	case LicenseCCBYNCND:
		return "https://creativecommons.org/licenses/by-nc-nd/4.0/"
	}
	return ""
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func monthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return spanishMonths[m-1]
}

func parseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "setiembre" {
		return time.September, true
	}
	for i, name := range spanishMonths {
		if s == name {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}
