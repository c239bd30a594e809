// Package names splits free-text personal names into given and family names
// using first-name/surname frequency tables and a persisted exceptions cache.
package names

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsplittable is returned for names with fewer than two words.
var ErrUnsplittable = errors.New("name has a single word")

// surnameParticles introduce a surname when found after the first word.
var surnameParticles = map[string]bool{
	"de":  true,
	"y":   true,
	"van": true,
}

// Normalizer splits names. It is deterministic for a given pair of tables and
// exceptions cache.
type Normalizer struct {
	givenNames Table
	surnames   Table
	exceptions *Exceptions
}

// NewNormalizer creates a Normalizer. A nil exceptions cache is replaced by
// an empty in-memory one.
func NewNormalizer(givenNames, surnames Table, exceptions *Exceptions) *Normalizer {
	if givenNames == nil {
		givenNames = Table{}
	}
	if surnames == nil {
		surnames = Table{}
	}
	if exceptions == nil {
		exceptions = NewExceptions()
	}
	return &Normalizer{givenNames: givenNames, surnames: surnames, exceptions: exceptions}
}

// Exceptions returns the cache the normalizer records its splits in.
func (n *Normalizer) Exceptions() *Exceptions {
	return n.exceptions
}

// Split parses a full name. The email is only stored alongside the cached
// split for auditability.
//
// Rules, applied to the normalized name (see Normalize):
//   - a cached split for the same normalized name always wins
//   - two words split as given + family
//   - otherwise the first word is always given; scanning the rest, a word
//     with a period (an initial) stays in the given name, a hyphenated word or
//     one of "de", "y", "van" starts the surname, and any other word stays in
//     the given name while the words so far form a registered composed name
//     or the word is more frequent as a first name than as a surname
//   - a "del" right before the surname boundary moves into the surname
//   - at least the last word is always part of the surname
func (n *Normalizer) Split(fullName, email string) (Split, error) {
	normalized := Normalize(fullName)
	if normalized == "" {
		return Split{}, fmt.Errorf("%w: empty name", ErrUnsplittable)
	}
	if s, ok := n.exceptions.Lookup(normalized); ok {
		return s, nil
	}

	fields := strings.Split(normalized, " ")
	if len(fields) == 1 {
		return Split{}, fmt.Errorf("%w: %q", ErrUnsplittable, normalized)
	}

	boundary := 1
	if len(fields) > 2 {
		boundary = n.surnameStart(fields)
	}

	s := Split{
		FullName: normalized,
		Given:    strings.Join(fields[:boundary], " "),
		Family:   strings.Join(fields[boundary:], " "),
		Email:    strings.TrimSpace(email),
	}
	n.exceptions.Put(s)
	return s, nil
}

func (n *Normalizer) surnameStart(fields []string) int {
	start := 1
	for i := 1; i < len(fields); i++ {
		start = i
		tok := fields[i]
		if strings.Contains(tok, ".") {
			continue
		}
		if strings.Contains(tok, "-") || surnameParticles[strings.ToLower(tok)] {
			break
		}
		if n.givenNames.Contains(strings.Join(fields[:i+1], " ")) {
			continue
		}
		if n.givenNames.Count(tok) > n.surnames.Count(tok) {
			continue
		}
		break
	}
	if strings.EqualFold(fields[start-1], "del") && start > 1 {
		start--
	}
	return start
}
