package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks: "Pérez" becomes "Perez", "Muñoz"
// becomes "Munoz". Characters without a canonical decomposition are kept.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// HasAccents reports whether s carries any character that StripAccents
// would change.
func HasAccents(s string) bool {
	return StripAccents(s) != s
}

// Key is the lookup form used by the frequency tables: accents stripped,
// upper-cased, "Mª"/"Ma" expanded to "MARIA" and the "del" particle dropped
// (composed names such as "María del Carmen" are registered as
// "MARIA CARMEN").
func Key(name string) string {
	name = strings.ReplaceAll(name, "ª", "a")
	fields := strings.Fields(strings.ToUpper(StripAccents(name)))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimSuffix(f, ".")
		switch f {
		case "DEL":
			continue
		case "MA":
			f = "MARIA"
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Normalize trims the name, puts a space after every period, turns en dashes
// into hyphens and collapses runs of whitespace.
func Normalize(fullName string) string {
	s := strings.TrimSpace(fullName)
	s = strings.ReplaceAll(s, ".", ". ")
	s = strings.ReplaceAll(s, "–", "-")
	return strings.Join(strings.Fields(s), " ")
}
