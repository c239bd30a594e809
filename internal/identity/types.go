// Package identity decides whether an author mention refers to an existing
// person record and computes what must be merged into that record.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

// Author is a normalized author mention.
type Author struct {
	Given       string `json:"given"`
	Family      string `json:"family"`
	Email       string `json:"email,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// FullName returns "Given Family".
func (a Author) FullName() string {
	return strings.TrimSpace(a.Given + " " + a.Family)
}

// Variant returns the mention in "Family, Given" form.
func (a Author) Variant() string {
	return archive.VariantOf(a.Given, a.Family)
}

// NewPerson builds the record created for an unmatched mention.
func (a Author) NewPerson() archive.Person {
	p := archive.Person{GivenName: a.Given, FamilyName: a.Family}
	if e := strings.TrimSpace(a.Email); e != "" {
		p.Emails = []string{strings.ToLower(e)}
	}
	if aff := strings.TrimSpace(a.Affiliation); aff != "" {
		p.Affiliations = []string{aff}
	}
	return p
}

// Tier is the confidence bucket of a matching decision.
type Tier string

const (
	TierExact       Tier = "exact"
	TierNearExact   Tier = "near-exact"
	TierApproximate Tier = "approximate"
	TierWeak        Tier = "weak"
	TierNone        Tier = "none"
	TierManual      Tier = "manual"
)

// Method names the rule that produced a match.
type Method string

const (
	MethodEmail             Method = "email"
	MethodName              Method = "name"
	MethodSurnameHeuristic  Method = "surname-heuristic"
	MethodAccentInsensitive Method = "accent-insensitive"
	MethodVariantEmail      Method = "variant-email"
	MethodOperator          Method = "operator"
)

// MatchResult is the outcome of one resolution call. Person is nil when no
// existing record was assigned.
type MatchResult struct {
	Tier     Tier            `json:"tier"`
	Method   Method          `json:"method,omitempty"`
	Distance float64         `json:"distance"`
	Person   *archive.Person `json:"person,omitempty"`

	// Declined is set when an email candidate was found but its name was too
	// far away to be assigned automatically.
	Declined *archive.Person `json:"declined,omitempty"`
}

// Assigned reports whether an existing person was matched.
func (m MatchResult) Assigned() bool {
	return m.Person != nil
}

// WeakPolicy controls what happens to matches in the weak band
// (0.3 <= distance < 0.7).
type WeakPolicy string

const (
	WeakAssign WeakPolicy = "assign"
	WeakReject WeakPolicy = "reject"
)

// ParseWeakPolicy validates a policy name. Empty means WeakAssign.
func ParseWeakPolicy(s string) (WeakPolicy, error) {
	switch WeakPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeakAssign:
		return WeakAssign, nil
	case WeakReject:
		return WeakReject, nil
	}
	return "", errors.New("weak match policy must be \"assign\" or \"reject\"")
}

// Directory looks up already-migrated persons with a free-text query (an
// email, a full name or a partial name).
type Directory interface {
	SearchPersons(ctx context.Context, query string) ([]archive.Person, error)
}

// Disambiguator lets an operator pick among candidates. It returns 0 for
// "none" or the 1-based index of the chosen candidate.
type Disambiguator interface {
	Choose(ctx context.Context, a Author, candidates []archive.Person) (int, error)
}

// DisambiguatorFunc adapts a function to the Disambiguator interface.
type DisambiguatorFunc func(ctx context.Context, a Author, candidates []archive.Person) (int, error)

// Choose calls f.
func (f DisambiguatorFunc) Choose(ctx context.Context, a Author, candidates []archive.Person) (int, error) {
	return f(ctx, a, candidates)
}
