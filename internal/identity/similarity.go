package identity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"

	"github.com/sistedes/dspace-migrator/internal/names"
)

// Distance thresholds of the automatic tiers.
const (
	nearExactBelow   = 0.1
	approximateBelow = 0.3
	weakBelow        = 0.7
)

// affiliationSimilarity is the Jaro-Winkler score above which two
// affiliations are taken to be the same institution.
const affiliationSimilarity = 0.9

var levenshtein = metrics.NewLevenshtein()

// NormalizedDistance is the Levenshtein distance divided by the longer
// length, in runes. Comparison is case-sensitive.
func NormalizedDistance(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.Distance(a, b)) / float64(longest)
}

// TierFor maps a normalized distance to its tier.
func TierFor(distance float64) Tier {
	switch {
	case distance == 0:
		return TierExact
	case distance < nearExactBelow:
		return TierNearExact
	case distance < approximateBelow:
		return TierApproximate
	case distance < weakBelow:
		return TierWeak
	}
	return TierNone
}

// SimilarAffiliation reports whether two affiliation strings are
// Jaro-Winkler similar.
func SimilarAffiliation(a, b string) bool {
	return metrics.NewJaroWinkler().Compare(a, b) >= affiliationSimilarity
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// foldToken lower-cases, strips accents and replaces punctuation runs with
// a hyphen so "García-López" and "garcia lopez" compare equal.
func foldToken(s string) string {
	return nonWord.ReplaceAllString(strings.ToLower(names.StripAccents(strings.TrimSpace(s))), "-")
}

// foldName is the accent- and case-insensitive form of a full name.
func foldName(s string) string {
	return strings.ToLower(names.StripAccents(strings.Join(strings.Fields(s), " ")))
}
