// Package identity resolves source user ids to target user ids.
package identity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrEmptyMapping is returned when the mapping table is missing or holds no rows.
var ErrEmptyMapping = errors.New("user mapping table is missing or empty")

// Mapper is a read-only source id to target ids table.
// A source id may map to several target ids.
type Mapper struct {
	targets map[string][]string
}

// NewMapper builds a Mapper from source id to target ids pairs.
func NewMapper(pairs map[string][]string) *Mapper {
	m := &Mapper{targets: make(map[string][]string, len(pairs))}
	for src, targets := range pairs {
		for _, t := range targets {
			m.add(src, t)
		}
	}
	return m
}

// Load reads a two-column CSV table: source user id, target user id.
// Blank lines are skipped; surrounding whitespace is trimmed.
func Load(path string) (*Mapper, error) {
	if path == "" {
		return nil, ErrEmptyMapping
	}
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyMapping, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open user mapping: %w", err)
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read user mapping %s: %w", path, err)
	}
	return m, nil
}

// Read parses the CSV table from r.
func Read(r io.Reader) (*Mapper, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	m := &Mapper{targets: map[string][]string{}}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d", line, len(record))
		}
		src, target := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		if src == "" || target == "" {
			return nil, fmt.Errorf("line %d: empty user id", line)
		}
		m.add(src, target)
	}

	if len(m.targets) == 0 {
		return nil, ErrEmptyMapping
	}
	return m, nil
}

func (m *Mapper) add(src, target string) {
	if !slices.Contains(m.targets[src], target) {
		m.targets[src] = append(m.targets[src], target)
	}
}

// Resolve returns the target ids of a source user. ok is false when the user is unmapped.
func (m *Mapper) Resolve(sourceID string) (targets []string, ok bool) {
	if m == nil {
		return nil, false
	}
	targets, ok = m.targets[sourceID]
	return slices.Clone(targets), ok
}

// ByTarget inverts the table: target id to the source ids mapped to it, sorted.
func (m *Mapper) ByTarget() map[string][]string {
	out := map[string][]string{}
	if m == nil {
		return out
	}
	for src, targets := range m.targets {
		for _, t := range targets {
			out[t] = append(out[t], src)
		}
	}
	for t := range out {
		slices.Sort(out[t])
	}
	return out
}

// Len returns the number of mapped source users.
func (m *Mapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.targets)
}
