package identity

import (
	"strings"
	"unicode/utf8"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/names"
)

// ChangeKind is the type of a single update to a person record.
type ChangeKind string

const (
	ChangeAddEmail       ChangeKind = "add_email"
	ChangeAddAffiliation ChangeKind = "add_affiliation"
	ChangeReplaceName    ChangeKind = "replace_name"
	ChangeAddVariant     ChangeKind = "add_variant"
)

// Change is one update. For ChangeReplaceName, Given/Family hold the new
// canonical name and Value the demoted "Family, Given" variant; for the other
// kinds Value is the added value.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Value  string     `json:"value"`
	Given  string     `json:"given,omitempty"`
	Family string     `json:"family,omitempty"`
}

// MergePlan lists the updates a mention brings to a matched person.
type MergePlan struct {
	PersonID string   `json:"person_id"`
	Changes  []Change `json:"changes,omitempty"`
}

// Empty reports whether the plan has nothing to update.
func (m MergePlan) Empty() bool {
	return len(m.Changes) == 0
}

// PlanMerge computes the updates for p given a matched mention:
//   - the email is added when it is not recorded yet
//   - the affiliation is added when none is recorded or none is
//     Jaro-Winkler similar to it
//   - a differing name replaces the canonical one (which is demoted to a
//     variant) when it is longer, carries accents the stored one lacks, or
//     drops hyphens/dots the stored one has while being at least as long;
//     otherwise it is added as a variant unless already present
func PlanMerge(p archive.Person, a Author) MergePlan {
	plan := MergePlan{PersonID: p.ID}

	if email := strings.ToLower(strings.TrimSpace(a.Email)); email != "" && !p.HasEmail(email) {
		plan.Changes = append(plan.Changes, Change{Kind: ChangeAddEmail, Value: email})
	}

	if aff := strings.TrimSpace(a.Affiliation); aff != "" && !knownAffiliation(p.Affiliations, aff) {
		plan.Changes = append(plan.Changes, Change{Kind: ChangeAddAffiliation, Value: aff})
	}

	incoming, stored := a.FullName(), p.FullName()
	if incoming != "" && incoming != stored {
		if supersedes(incoming, stored) {
			plan.Changes = append(plan.Changes, Change{
				Kind:   ChangeReplaceName,
				Value:  p.Variant(),
				Given:  a.Given,
				Family: a.Family,
			})
		} else if !p.HasVariant(a.Variant()) {
			plan.Changes = append(plan.Changes, Change{Kind: ChangeAddVariant, Value: a.Variant()})
		}
	}
	return plan
}

func knownAffiliation(known []string, aff string) bool {
	for _, k := range known {
		if SimilarAffiliation(k, aff) {
			return true
		}
	}
	return false
}

// supersedes reports whether incoming should become the canonical name in
// place of stored.
func supersedes(incoming, stored string) bool {
	in, st := utf8.RuneCountInString(incoming), utf8.RuneCountInString(stored)
	if in > st {
		return true
	}
	if names.HasAccents(incoming) && !names.HasAccents(stored) {
		return true
	}
	return !strings.ContainsAny(incoming, "-.") && strings.ContainsAny(stored, "-.") && in >= st
}

// Apply returns p with the plan's changes applied. Demoted names are kept
// as variants, never dropped.
func (m MergePlan) Apply(p archive.Person) archive.Person {
	out := p
	out.Emails = append([]string(nil), p.Emails...)
	out.Affiliations = append([]string(nil), p.Affiliations...)
	out.NameVariants = append([]string(nil), p.NameVariants...)

	for _, c := range m.Changes {
		switch c.Kind {
		case ChangeAddEmail:
			if !out.HasEmail(c.Value) {
				out.Emails = append(out.Emails, c.Value)
			}
		case ChangeAddAffiliation:
			out.Affiliations = append(out.Affiliations, c.Value)
		case ChangeReplaceName:
			out.GivenName, out.FamilyName = c.Given, c.Family
			if !out.HasVariant(c.Value) {
				out.NameVariants = append(out.NameVariants, c.Value)
			}
		case ChangeAddVariant:
			if !out.HasVariant(c.Value) {
				out.NameVariants = append(out.NameVariants, c.Value)
			}
		}
	}
	return out
}
