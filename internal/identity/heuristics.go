package identity

import (
	"strings"
	"unicode/utf8"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/names"
)

// surnameHeuristic matches a mention against a candidate whose full name is
// not identical:
//   - normalized surnames are equal and the given names are equal or
//     abbreviation-compatible, or
//   - given names are equal (case-insensitive) and one side has a single
//     surname equal to the first surname of the other side's two.
func surnameHeuristic(a Author, c archive.Person) bool {
	if foldToken(a.Family) == foldToken(c.FamilyName) {
		if foldToken(a.Given) == foldToken(c.GivenName) || givenNamesCompatible(a.Given, c.GivenName) {
			return true
		}
	}
	if !strings.EqualFold(a.Given, c.GivenName) {
		return false
	}
	return surnameSwap(strings.Fields(a.Family), strings.Fields(c.FamilyName))
}

// surnameSwap reports a one-surname/two-surname pair sharing the first
// surname.
func surnameSwap(x, y []string) bool {
	if !(len(x) == 1 && len(y) == 2) && !(len(x) == 2 && len(y) == 1) {
		return false
	}
	return strings.EqualFold(x[0], y[0])
}

// givenNamesCompatible compares given names token by token: tokens must be
// equal, or one of them must be an initial sharing the other's first
// letter. "J. Manuel" is compatible with "José Manuel".
func givenNamesCompatible(x, y string) bool {
	xs := strings.Fields(strings.ToLower(names.StripAccents(x)))
	ys := strings.Fields(strings.ToLower(names.StripAccents(y)))
	if len(xs) == 0 || len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i] == ys[i] {
			continue
		}
		if (isInitial(xs[i]) || isInitial(ys[i])) && firstRune(xs[i]) == firstRune(ys[i]) {
			continue
		}
		return false
	}
	return true
}

func isInitial(tok string) bool {
	return strings.Contains(tok, ".") || utf8.RuneCountInString(tok) == 1
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
