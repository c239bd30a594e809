package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

func TestConsoleDisambiguator(t *testing.T) {
	candidates := []archive.Person{
		{GivenName: "Marta", FamilyName: "López", Emails: []string{"marta@uv.es"}},
		{GivenName: "Manuel", FamilyName: "López", Affiliations: []string{"Universidad de Vigo"}},
	}
	a := Author{Given: "M.", Family: "López", Email: "mlopez@uv.es"}

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr error
	}{
		{name: "valid choice", input: "2\n", want: 2},
		{name: "none", input: "0\n", want: 0},
		{name: "out of range asks again", input: "7\n-1\n1\n", want: 1},
		{name: "non-numeric means none", input: "skip\n", want: 0},
		{name: "last line without newline", input: "1", want: 1},
		{name: "no input", input: "", wantErr: ErrNoInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsoleDisambiguator(strings.NewReader(tt.input), &out)

			got, err := c.Choose(context.Background(), a, candidates)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Choose() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Choose() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConsoleDisambiguator_Prompt(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleDisambiguator(strings.NewReader("0\n"), &out)
	candidates := []archive.Person{
		{GivenName: "Marta", FamilyName: "López", Emails: []string{"marta@uv.es"}, Affiliations: []string{"Universidad de Valencia"}},
	}

	if _, err := c.Choose(context.Background(), Author{Given: "M.", Family: "López"}, candidates); err != nil {
		t.Fatalf("Choose() error = %v", err)
	}

	for _, want := range []string{`"M. López"`, "[0] None of them", "[1] López, Marta <marta@uv.es> (Universidad de Valencia)", "[0-1]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("prompt missing %q:\n%s", want, out.String())
		}
	}
}
