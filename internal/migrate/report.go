package migrate

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/identity"
)

// Counts tallies find-or-create outcomes for one entity kind.
type Counts struct {
	Found   int `json:"found" yaml:"found"`
	Created int `json:"created" yaml:"created"`
	Planned int `json:"planned,omitempty" yaml:"planned,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Started         time.Time             `json:"started" yaml:"started"`
	Finished        time.Time             `json:"finished" yaml:"finished"`
	DryRun          bool                  `json:"dry_run" yaml:"dry_run"`
	Prefix          string                `json:"prefix" yaml:"prefix"`
	Communities     Counts                `json:"communities" yaml:"communities"`
	Collections     Counts                `json:"collections" yaml:"collections"`
	Items           Counts                `json:"items" yaml:"items"`
	PersonsCreated  int                   `json:"persons_created" yaml:"persons_created"`
	PersonsUpdated  int                   `json:"persons_updated" yaml:"persons_updated"`
	Decisions       map[identity.Tier]int `json:"decisions" yaml:"decisions"`
	Registered      int                   `json:"registered" yaml:"registered"`
	Files           int                   `json:"files" yaml:"files"`
	MissingFiles    []string              `json:"missing_files,omitempty" yaml:"missing_files,omitempty"`
	SkippedEditions []string              `json:"skipped_editions,omitempty" yaml:"skipped_editions,omitempty"`
}

func newReport(dryRun bool, now time.Time) *Report {
	return &Report{Started: now, DryRun: dryRun, Decisions: make(map[identity.Tier]int)}
}

func (r *Report) counts(k archive.Kind) *Counts {
	switch k {
	case archive.KindCommunity:
		return &r.Communities
	case archive.KindCollection:
		return &r.Collections
	}
	return &r.Items
}

// Created returns the number of entities created across all kinds.
func (r *Report) Created() int {
	return r.Communities.Created + r.Collections.Created + r.Items.Created
}

// WriteText prints the report for humans.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	mode := "live"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "Migration (%s) under %s, %s\n", mode, r.Prefix, r.Finished.Sub(r.Started).Round(time.Second))
	for _, row := range []struct {
		label string
		c     Counts
	}{
		{"communities", r.Communities},
		{"collections", r.Collections},
		{"items", r.Items},
	} {
		fmt.Fprintf(&b, "  %-12s %4d found %4d created", row.label, row.c.Found, row.c.Created)
		if r.DryRun {
			fmt.Fprintf(&b, " %4d planned", row.c.Planned)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  persons      %4d created %4d updated\n", r.PersonsCreated, r.PersonsUpdated)

	tiers := make([]string, 0, len(r.Decisions))
	for t := range r.Decisions {
		tiers = append(tiers, string(t))
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		fmt.Fprintf(&b, "  %-12s %4d\n", t, r.Decisions[identity.Tier(t)])
	}
	fmt.Fprintf(&b, "  handles      %4d registered\n", r.Registered)
	fmt.Fprintf(&b, "  files        %4d uploaded\n", r.Files)
	for _, m := range r.MissingFiles {
		fmt.Fprintf(&b, "  missing file: %s\n", m)
	}
	for _, e := range r.SkippedEditions {
		fmt.Fprintf(&b, "  skipped edition: %s\n", e)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
