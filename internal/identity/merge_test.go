package identity

import (
	"reflect"
	"testing"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

func TestPlanMerge(t *testing.T) {
	tests := []struct {
		name   string
		stored archive.Person
		author Author
		want   []Change
	}{
		{
			name:   "identical mention",
			stored: archive.Person{GivenName: "Ana", FamilyName: "Gil", Emails: []string{"ana@us.es"}, Affiliations: []string{"Universidad de Sevilla"}},
			author: Author{Given: "Ana", Family: "Gil", Email: "ANA@us.es", Affiliation: "Universidad de Sevilla"},
		},
		{
			name:   "new email is lower-cased",
			stored: archive.Person{GivenName: "Ana", FamilyName: "Gil"},
			author: Author{Given: "Ana", Family: "Gil", Email: "Ana.Gil@US.es"},
			want:   []Change{{Kind: ChangeAddEmail, Value: "ana.gil@us.es"}},
		},
		{
			name:   "first affiliation",
			stored: archive.Person{GivenName: "Ana", FamilyName: "Gil"},
			author: Author{Given: "Ana", Family: "Gil", Affiliation: "Universidad de Sevilla"},
			want:   []Change{{Kind: ChangeAddAffiliation, Value: "Universidad de Sevilla"}},
		},
		{
			name:   "similar affiliation is not repeated",
			stored: archive.Person{GivenName: "Ana", FamilyName: "Gil", Affiliations: []string{"Universidad de Málaga"}},
			author: Author{Given: "Ana", Family: "Gil", Affiliation: "Universidad de Malaga"},
		},
		{
			name:   "different affiliation",
			stored: archive.Person{GivenName: "Ana", FamilyName: "Gil", Affiliations: []string{"Universidad de Málaga"}},
			author: Author{Given: "Ana", Family: "Gil", Affiliation: "IMDEA Software"},
			want:   []Change{{Kind: ChangeAddAffiliation, Value: "IMDEA Software"}},
		},
		{
			name:   "longer name supersedes",
			stored: archive.Person{GivenName: "M.", FamilyName: "García"},
			author: Author{Given: "María", Family: "García"},
			want:   []Change{{Kind: ChangeReplaceName, Value: "García, M.", Given: "María", Family: "García"}},
		},
		{
			name:   "accented name supersedes",
			stored: archive.Person{GivenName: "Maria", FamilyName: "Garcia"},
			author: Author{Given: "María", Family: "García"},
			want:   []Change{{Kind: ChangeReplaceName, Value: "Garcia, Maria", Given: "María", Family: "García"}},
		},
		{
			name:   "name without hyphen supersedes",
			stored: archive.Person{GivenName: "Ana", FamilyName: "García-López"},
			author: Author{Given: "Ana", Family: "García López"},
			want:   []Change{{Kind: ChangeReplaceName, Value: "García-López, Ana", Given: "Ana", Family: "García López"}},
		},
		{
			name:   "shorter name becomes a variant",
			stored: archive.Person{GivenName: "María", FamilyName: "García López"},
			author: Author{Given: "María", Family: "García"},
			want:   []Change{{Kind: ChangeAddVariant, Value: "García, María"}},
		},
		{
			name:   "known variant is not repeated",
			stored: archive.Person{GivenName: "María", FamilyName: "García López", NameVariants: []string{"García, María"}},
			author: Author{Given: "María", Family: "García"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanMerge(tt.stored, tt.author)
			if !reflect.DeepEqual(plan.Changes, tt.want) {
				t.Errorf("Changes = %+v, want %+v", plan.Changes, tt.want)
			}
			if plan.Empty() != (len(tt.want) == 0) {
				t.Errorf("Empty() = %v with %d changes", plan.Empty(), len(tt.want))
			}
		})
	}
}

func TestMergePlan_Apply(t *testing.T) {
	stored := archive.Person{
		ID:         "p1",
		GivenName:  "M.",
		FamilyName: "García",
		Emails:     []string{"mgarcia@uma.es"},
	}
	a := Author{Given: "María", Family: "García", Email: "maria.garcia@uma.es", Affiliation: "Universidad de Málaga"}

	merged := PlanMerge(stored, a).Apply(stored)

	if merged.FullName() != "María García" {
		t.Errorf("FullName() = %q, want %q", merged.FullName(), "María García")
	}
	if !merged.HasVariant("García, M.") {
		t.Errorf("NameVariants = %v, want demoted name kept", merged.NameVariants)
	}
	if !merged.HasEmail("mgarcia@uma.es") || !merged.HasEmail("maria.garcia@uma.es") {
		t.Errorf("Emails = %v, want both addresses", merged.Emails)
	}
	if len(merged.Affiliations) != 1 {
		t.Errorf("Affiliations = %v, want one entry", merged.Affiliations)
	}
	if len(stored.Emails) != 1 {
		t.Errorf("Apply modified the input: Emails = %v", stored.Emails)
	}

	// Re-applying the same mention is a no-op.
	if again := PlanMerge(merged, a); !again.Empty() {
		t.Errorf("second plan = %+v, want empty", again.Changes)
	}
}
