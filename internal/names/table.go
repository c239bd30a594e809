package names

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table maps an upper-cased, accent-stripped name to its frequency.
type Table map[string]int

// ReadTable parses "NAME,count" lines. Lines starting with '#' and lines
// without a numeric count are ignored. When a name appears twice the first
// count wins.
func ReadTable(r io.Reader) (Table, error) {
	t := make(Table)
	if err := t.read(r); err != nil {
		return nil, err
	}
	return t, nil
}

func (t Table) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		key := Key(fields[0])
		if _, ok := t[key]; !ok {
			t[key] = count
		}
	}
	return scanner.Err()
}

// LoadTable reads and merges one or more frequency files into a single table.
// Earlier files take precedence for duplicated names.
func LoadTable(paths ...string) (Table, error) {
	t := make(Table)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening frequency table: %w", err)
		}
		err = t.read(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return t, nil
}

// Count returns the frequency of a single token, 0 when unknown.
func (t Table) Count(token string) int {
	return t[Key(token)]
}

// Contains reports whether the (possibly multi-word) name is registered.
func (t Table) Contains(name string) bool {
	_, ok := t[Key(name)]
	return ok
}
