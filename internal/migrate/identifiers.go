package migrate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/sistedes/dspace-migrator/internal/source"
)

// Fixed identifier segments below the root community.
const (
	segmentSistedes      = "SISTEDES"
	segmentAuthors       = "AUTHORS"
	segmentSeminars      = "SEMINARIOS"
	segmentBulletins     = "BOLETINES"
	segmentPreliminaries = "PRELIMINARES"
	segmentArticles      = "ARTICULOS"
)

// particles are skipped when building initials.
var particles = map[string]bool{
	"a": true, "de": true, "del": true, "en": true, "por": true, "y": true,
	"e": true, "la": true, "el": true, "ya": true, "the": true, "of": true,
	"and": true, "for": true, "on": true,
}

var (
	sessionPrefix = regexp.MustCompile(`^Sesi[oó]n\s+\d+[^\p{L}\p{N}]+`)
	ordinalPrefix = regexp.MustCompile(`^\d+\.[^\p{L}\p{N}]+`)
	labelPrefix   = regexp.MustCompile(`^\p{Lu}+:[^\p{L}\p{N}]+`)
	trackLabel    = regexp.MustCompile(`^Track (\p{Lu}+) `)
	upperLabel    = regexp.MustCompile(`^(\p{Lu}+): `)
	wordsLabel    = regexp.MustCompile(`^([\p{L}\p{N} ]+): `)
	bracketed     = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)
	notSegment    = regexp.MustCompile(`[^A-Z0-9]+`)
)

// join builds a child identifier.
func join(parent string, segments ...string) string {
	return strings.Join(append([]string{parent}, segments...), "/")
}

// TrackTitle strips session numbers, ordinals and short uppercase labels
// from a track title: "Sesión 1: Semántica" becomes "Semántica".
func TrackTitle(raw string) string {
	t := strings.TrimSpace(raw)
	t = sessionPrefix.ReplaceAllString(t, "")
	t = ordinalPrefix.ReplaceAllString(t, "")
	t = labelPrefix.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// TrackSuffix computes the identifier segment of a track collection:
//   - a single-word title is used whole, upper-cased
//   - "Track XYZ ..." and "XYZ: ..." yield XYZ
//   - "Some words: ..." yields the initials of the words before the colon
//   - otherwise the initials of the title, bracketed qualifiers excluded
func TrackSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	title := TrackTitle(raw)
	switch {
	case title != "" && !strings.Contains(title, " "):
		return segment(title)
	case trackLabel.MatchString(raw):
		return segment(trackLabel.FindStringSubmatch(raw)[1])
	}
	return labelSuffix(raw, title)
}

// PreliminariesSuffix computes the identifier segment of a front-matter
// item, e.g. "Comité de programa" yields "CP".
func PreliminariesSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	title := ordinalPrefix.ReplaceAllString(raw, "")
	if title != "" && !strings.Contains(title, " ") {
		return segment(title)
	}
	return labelSuffix(raw, title)
}

func labelSuffix(raw, title string) string {
	if m := upperLabel.FindStringSubmatch(raw); m != nil {
		return segment(m[1])
	}
	if m := wordsLabel.FindStringSubmatch(raw); m != nil {
		return initials(m[1])
	}
	return initials(bracketed.ReplaceAllString(title, ""))
}

// segment upper-cases s, strips accents and drops anything that cannot
// appear in a handle segment.
func segment(s string) string {
	s = notSegment.ReplaceAllString(strings.ToUpper(names.StripAccents(s)), "")
	if s == "" {
		return "X"
	}
	return s
}

func initials(s string) string {
	var b strings.Builder
	for _, w := range strings.FieldsFunc(names.StripAccents(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if particles[strings.ToLower(w)] {
			continue
		}
		b.WriteRune([]rune(w)[0])
	}
	return segment(b.String())
}

// suffixes hands out unique segments within one parent: a repeated
// segment gets a numeric suffix in order of appearance.
type suffixes map[string]int

func (s suffixes) unique(seg string) string {
	s[seg]++
	if n := s[seg]; n > 1 {
		return fmt.Sprintf("%s%d", seg, n)
	}
	return seg
}

const bibtexTag = `<p>Ver la referencia en formato <a href="#"  class="citaBibtex">Bibtex</a></p>`

// editionDescription drops the BibTeX citation widget the source appends
// to edition descriptions.
func editionDescription(desc string) string {
	if i := strings.Index(desc, bibtexTag); i >= 0 {
		desc = desc[:i]
	}
	return strings.TrimSpace(desc)
}

var (
	programCommittee = regexp.MustCompile(`(?i)comit[eé] de programa`)
	committees       = regexp.MustCompile(`(?i)comit[eé]s`)
	preliminaries    = regexp.MustCompile(`(?i)preliminares`)
	preface          = regexp.MustCompile(`(?i)prefacio|presentaci[oó]n`)
	invitedLecture   = regexp.MustCompile(`(?i)conferencia invitada`)
	invitedTalk      = regexp.MustCompile(`(?i)charla invitada|keynote`)
	index            = regexp.MustCompile(`(?i)[íi]ndice`)
	tutorial         = regexp.MustCompile(`(?i)tutorial`)
)

// frontMatter describes an empty track published as preliminaries.
type frontMatter struct {
	Title    string
	Abstract string
}

// describeFrontMatter derives the title and abstract of a front-matter
// item from its track title. edition is the edition title and proceedings
// the proceedings name.
func describeFrontMatter(raw, edition, proceedings string) frontMatter {
	title := strings.TrimSpace(ordinalPrefix.ReplaceAllString(strings.TrimSpace(raw), ""))
	before, after, hasColon := strings.Cut(title, ":")
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)

	fm := frontMatter{Title: title}
	switch {
	case programCommittee.MatchString(title):
		fm.Abstract = fmt.Sprintf("Comité de programa de las %s.", edition)
	case committees.MatchString(title):
		fm.Abstract = fmt.Sprintf("Comités de las %s.", edition)
	case preliminaries.MatchString(title):
		fm.Title = "Prefacio"
		fm.Abstract = fmt.Sprintf("Prefacio de las %s.", edition)
	case preface.MatchString(title):
		fm.Abstract = fmt.Sprintf("Prefacio de las %s.", edition)
	case invitedLecture.MatchString(title) && hasColon:
		fm.Abstract = fmt.Sprintf("Conferencia invitada en las %s, por el %s.", edition, after)
	case invitedLecture.MatchString(title):
		fm.Abstract = fmt.Sprintf("Conferencia invitada en las %s.", edition)
	case invitedTalk.MatchString(title):
		fm.Abstract = fmt.Sprintf("Conferencia invitada \"%s\" en las %s.", before, edition)
	case index.MatchString(title):
		fm.Abstract = fmt.Sprintf("Índice de las %s.", proceedings)
	case tutorial.MatchString(title) && hasColon:
		fm.Abstract = fmt.Sprintf("Tutorial \"%s\" en las %s.", after, edition)
	}
	return fm
}

var (
	emptyNbspParagraph = regexp.MustCompile(`<p>&nbsp;</p>`)
	spaceRuns          = regexp.MustCompile(`[ \x{00A0}]+`)
	styleAttr          = regexp.MustCompile(`(?s)\s*style=".*?"`)
	emptyElement       = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)(\s[^>]*)?>\s*</([a-zA-Z][a-zA-Z0-9]*)>`)
	heading            = regexp.MustCompile(`(?s)<[hH]\d>(.*?)</[hH]\d>`)
	underlinedPara     = regexp.MustCompile(`(?s)<[pP]>\s*<[uU]>(.*?)</[uU]>\s*</[pP]>`)
	strongPara         = regexp.MustCompile(`(?s)<[pP]>\s*<(?:strong|STRONG)>(.*?)</(?:strong|STRONG)>\s*</[pP]>`)
	underline          = regexp.MustCompile(`(?s)<[uU]>(.*?)</[uU]>`)
)

// cleanFrontMatter tidies the HTML content of a front-matter track:
// blank paragraphs, inline styles and empty elements go, headings and
// paragraphs made of a single underlined or bold run become <h2>.
func cleanFrontMatter(html string) string {
	s := emptyNbspParagraph.ReplaceAllString(html, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = styleAttr.ReplaceAllString(s, "")
	for {
		next := emptyElement.ReplaceAllStringFunc(s, func(m string) string {
			sub := emptyElement.FindStringSubmatch(m)
			if strings.EqualFold(sub[1], sub[3]) {
				return ""
			}
			return m
		})
		if next == s {
			break
		}
		s = next
	}
	s = heading.ReplaceAllString(s, "<h2>$1</h2>")
	s = underlinedPara.ReplaceAllString(s, "<h2>$1</h2>")
	s = strongPara.ReplaceAllString(s, "<h2>$1</h2>")
	s = underline.ReplaceAllString(s, "$1")

	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// articleIdentifier returns the identifier of an article: its source
// handle, or a path under its collection when the source has none.
func articleIdentifier(collection string, a source.Article) (string, bool) {
	if h := strings.TrimSpace(a.Handle); h != "" {
		return h, true
	}
	return join(collection, a.ID), false
}
