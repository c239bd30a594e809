package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// Options filters what a run migrates and how.
type Options struct {
	// Prefix is the identifier prefix; empty means the site handle prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// StartYear and EndYear bound the editions migrated; zero leaves the
	// range open on that side.
	StartYear int `json:"start_year,omitempty" yaml:"start_year,omitempty"`
	EndYear   int `json:"end_year,omitempty" yaml:"end_year,omitempty"`

	// Conferences lists the acronyms to migrate; empty means all.
	Conferences []string `json:"conferences,omitempty" yaml:"conferences,omitempty"`

	DryRun           bool `json:"dry_run" yaml:"dry_run"`
	Interactive      bool `json:"interactive" yaml:"interactive"`
	MigrateDocuments bool `json:"migrate_documents" yaml:"migrate_documents"`
}

// Validate checks the year range.
func (o Options) Validate() error {
	if o.StartYear < 0 || o.EndYear < 0 {
		return errors.New("years must be positive")
	}
	if o.StartYear != 0 && o.EndYear != 0 && o.StartYear > o.EndYear {
		return fmt.Errorf("start year %d is after end year %d", o.StartYear, o.EndYear)
	}
	return nil
}

// IncludesConference reports whether the acronym passes the allow-list.
func (o Options) IncludesConference(acronym string) bool {
	if len(o.Conferences) == 0 {
		return true
	}
	for _, c := range o.Conferences {
		if strings.EqualFold(strings.TrimSpace(c), acronym) {
			return true
		}
	}
	return false
}

// IncludesYear reports whether year is inside the range.
func (o Options) IncludesYear(year int) bool {
	if o.StartYear != 0 && year < o.StartYear {
		return false
	}
	if o.EndYear != 0 && year > o.EndYear {
		return false
	}
	return true
}
