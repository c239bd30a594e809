package identity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

// Resolver matches author mentions against the person directory.
type Resolver struct {
	dir           Directory
	disambiguator Disambiguator
	weakPolicy    WeakPolicy
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDisambiguator switches the resolver to interactive mode.
func WithDisambiguator(d Disambiguator) Option {
	return func(r *Resolver) { r.disambiguator = d }
}

// WithWeakPolicy sets what happens to weak email matches.
func WithWeakPolicy(p WeakPolicy) Option {
	return func(r *Resolver) {
		if p != "" {
			r.weakPolicy = p
		}
	}
}

// WithLogger sets the logger used to report declined matches.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over dir. Without a Disambiguator it runs
// the automatic rules only.
func NewResolver(dir Directory, opts ...Option) *Resolver {
	r := &Resolver{
		dir:        dir,
		weakPolicy: WeakAssign,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interactive reports whether an operator is consulted.
func (r *Resolver) Interactive() bool {
	return r.disambiguator != nil
}

// Resolve decides which existing person, if any, a mention refers to.
// A TierNone result with a nil error means a new person should be created.
func (r *Resolver) Resolve(ctx context.Context, a Author) (MatchResult, error) {
	if r.disambiguator != nil {
		return r.resolveInteractive(ctx, a)
	}
	return r.resolveAutomatic(ctx, a)
}

func (r *Resolver) resolveAutomatic(ctx context.Context, a Author) (MatchResult, error) {
	var declined *archive.Person

	if email := strings.TrimSpace(a.Email); email != "" {
		found, err := r.dir.SearchPersons(ctx, email)
		if err != nil {
			return MatchResult{}, fmt.Errorf("searching persons by email %q: %w", email, err)
		}
		best, dist := closestByEmail(a, found)
		if best != nil {
			tier := TierFor(dist)
			if r.assignable(tier) {
				return MatchResult{Tier: tier, Method: MethodEmail, Distance: dist, Person: best}, nil
			}
			r.logger.Info("not assigning email match",
				"author", a.FullName(),
				"candidate", best.FullName(),
				"email", email,
				"distance", fmt.Sprintf("%.3f", dist),
				"tier", tier)
			declined = best
		}
	}

	fullName := a.FullName()
	found, err := r.dir.SearchPersons(ctx, fullName)
	if err != nil {
		return MatchResult{}, fmt.Errorf("searching persons by name %q: %w", fullName, err)
	}
	for i := range found {
		if strings.EqualFold(found[i].FullName(), fullName) {
			return MatchResult{Tier: TierExact, Method: MethodName, Person: &found[i]}, nil
		}
	}
	for i := range found {
		if surnameHeuristic(a, found[i]) {
			return MatchResult{
				Tier:     TierApproximate,
				Method:   MethodSurnameHeuristic,
				Distance: NormalizedDistance(fullName, found[i].FullName()),
				Person:   &found[i],
			}, nil
		}
	}
	return MatchResult{Tier: TierNone, Distance: 1, Declined: declined}, nil
}

// closestByEmail returns the candidate recording a's email whose name is
// closest to a's, and that distance.
func closestByEmail(a Author, found []archive.Person) (*archive.Person, float64) {
	var best *archive.Person
	bestDist := 2.0
	for i := range found {
		if !found[i].HasEmail(a.Email) {
			continue
		}
		if d := NormalizedDistance(a.FullName(), found[i].FullName()); d < bestDist {
			best, bestDist = &found[i], d
		}
	}
	return best, bestDist
}

func (r *Resolver) assignable(t Tier) bool {
	switch t {
	case TierExact, TierNearExact, TierApproximate:
		return true
	case TierWeak:
		return r.weakPolicy == WeakAssign
	}
	return false
}

var twoSurnames = regexp.MustCompile(`[ -]+`)

func (r *Resolver) resolveInteractive(ctx context.Context, a Author) (MatchResult, error) {
	candidates, err := r.interactiveCandidates(ctx, a)
	if err != nil {
		return MatchResult{}, err
	}

	fullName := foldName(a.FullName())
	for i := range candidates {
		if foldName(candidates[i].FullName()) == fullName {
			return MatchResult{Tier: TierExact, Method: MethodAccentInsensitive, Person: &candidates[i]}, nil
		}
	}
	if a.Email != "" {
		variant := foldName(a.Variant())
		for i := range candidates {
			if !candidates[i].HasEmail(a.Email) {
				continue
			}
			for _, v := range candidates[i].NameVariants {
				if foldName(v) == variant {
					return MatchResult{
						Tier:     TierNearExact,
						Method:   MethodVariantEmail,
						Distance: NormalizedDistance(a.FullName(), candidates[i].FullName()),
						Person:   &candidates[i],
					}, nil
				}
			}
		}
	}
	if len(candidates) == 0 {
		return MatchResult{Tier: TierNone, Distance: 1}, nil
	}

	for {
		choice, err := r.disambiguator.Choose(ctx, a, candidates)
		if err != nil {
			return MatchResult{}, fmt.Errorf("disambiguating %q: %w", a.FullName(), err)
		}
		if choice < 0 || choice > len(candidates) {
			r.logger.Warn("selection out of range", "selection", choice, "candidates", len(candidates))
			continue
		}
		if choice == 0 {
			return MatchResult{Tier: TierNone, Method: MethodOperator, Distance: 1}, nil
		}
		p := &candidates[choice-1]
		return MatchResult{
			Tier:     TierManual,
			Method:   MethodOperator,
			Distance: NormalizedDistance(a.FullName(), p.FullName()),
			Person:   p,
		}, nil
	}
}

// interactiveCandidates widens the query until something is found: the
// full name with punctuation removed, then the email, then the given name
// with the first surname only.
func (r *Resolver) interactiveCandidates(ctx context.Context, a Author) ([]archive.Person, error) {
	queries := []string{strings.TrimSpace(nonWord.ReplaceAllString(a.FullName(), " "))}
	if e := strings.TrimSpace(a.Email); e != "" {
		queries = append(queries, e)
	}
	if surnames := twoSurnames.Split(strings.TrimSpace(a.Family), -1); len(surnames) > 1 {
		queries = append(queries, a.Given+" "+surnames[0])
	}

	for _, q := range queries {
		if q == "" {
			continue
		}
		found, err := r.dir.SearchPersons(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("searching persons for %q: %w", q, err)
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}
