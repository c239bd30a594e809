package names

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Split is the result of splitting a full name.
type Split struct {
	FullName string `json:"full_name"`
	Given    string `json:"given"`
	Family   string `json:"family"`
	Email    string `json:"email,omitempty"`
}

// Exceptions is the persisted name-split cache. Every split computed by a
// Normalizer is recorded here; entries edited by an operator override the
// heuristic on later runs.
type Exceptions struct {
	mu      sync.Mutex
	entries map[string]Split
	dirty   bool
}

// NewExceptions returns an empty cache.
func NewExceptions() *Exceptions {
	return &Exceptions{entries: make(map[string]Split)}
}

// LoadExceptions reads an exceptions file with "fullname,given,family,email"
// records. A missing file yields an empty cache.
func LoadExceptions(path string) (*Exceptions, error) {
	e := NewExceptions()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, fmt.Errorf("opening exceptions: %w", err)
	}
	defer f.Close()

	if err := e.read(f); err != nil {
		return nil, fmt.Errorf("reading exceptions %s: %w", path, err)
	}
	return e, nil
}

func (e *Exceptions) read(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(rec) != 4 {
			continue
		}
		s := Split{
			FullName: strings.TrimSpace(rec[0]),
			Given:    strings.TrimSpace(rec[1]),
			Family:   strings.TrimSpace(rec[2]),
			Email:    strings.TrimSpace(rec[3]),
		}
		if s.FullName == "" {
			continue
		}
		e.entries[s.FullName] = s
	}
}

// Save rewrites the file sorted by full name. The write goes to a temporary
// file that is renamed over path.
func (e *Exceptions) Save(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating exceptions dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".exceptions-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	for _, s := range e.sortedLocked() {
		if err := w.Write([]string{s.FullName, s.Given, s.Family, s.Email}); err != nil {
			tmp.Close()
			return fmt.Errorf("writing exceptions: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing exceptions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing exceptions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing exceptions: %w", err)
	}
	e.dirty = false
	return nil
}

// Lookup returns the recorded split for a normalized full name. Entries with
// a blank given or family name are ignored.
func (e *Exceptions) Lookup(fullName string) (Split, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.entries[fullName]
	if !ok || s.Given == "" || s.Family == "" {
		return Split{}, false
	}
	return s, true
}

// Put records (or overrides) a split.
func (e *Exceptions) Put(s Split) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.entries[s.FullName]; ok && old == s {
		return
	}
	e.entries[s.FullName] = s
	e.dirty = true
}

// Dirty reports whether the cache changed since it was loaded or saved.
func (e *Exceptions) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Len returns the number of recorded splits.
func (e *Exceptions) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// List returns every recorded split sorted by full name.
func (e *Exceptions) List() []Split {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedLocked()
}

func (e *Exceptions) sortedLocked() []Split {
	out := make([]Split, 0, len(e.entries))
	for _, s := range e.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}
