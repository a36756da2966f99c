package transform

import (
	"fmt"

	"github.com/gobwas/glob"
)

// FieldFilter selects the source fields of one object type.
// Patterns use shell-style globs matched against source field names.
type FieldFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFieldFilter compiles include and exclude patterns. Both empty keeps every field.
func NewFieldFilter(include, exclude []string) (*FieldFilter, error) {
	f := &FieldFilter{}
	var err error
	if f.include, err = compile(include); err != nil {
		return nil, fmt.Errorf("invalid include field: %w", err)
	}
	if f.exclude, err = compile(exclude); err != nil {
		return nil, fmt.Errorf("invalid exclude field: %w", err)
	}
	return f, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Keep reports whether the field survives the filter.
// A nil filter keeps every field.
func (f *FieldFilter) Keep(name string) bool {
	if f == nil {
		return true
	}
	if len(f.include) > 0 && !matchAny(f.include, name) {
		return false
	}
	return !matchAny(f.exclude, name)
}

// Apply returns the fields that survive the filter. The input map is not modified.
func (f *FieldFilter) Apply(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		if f.Keep(name) {
			out[name] = v
		}
	}
	return out
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
