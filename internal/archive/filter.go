package archive

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter decides which archive entries are extracted on import.
// Patterns use '/' as the separator, so "*.md" matches top-level files only.
type Filter struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewFilter compiles allow and deny patterns.
func NewFilter(allowed, denied []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range allowed {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern %q: %w", pattern, err)
		}
		f.allowed = append(f.allowed, g)
	}
	for _, pattern := range denied {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern %q: %w", pattern, err)
		}
		f.denied = append(f.denied, g)
	}
	return f, nil
}

// Allowed reports whether name passes the filter. Deny wins; an empty allow list allows everything.
func (f *Filter) Allowed(name string) bool {
	for _, g := range f.denied {
		if g.Match(name) {
			return false
		}
	}
	if len(f.allowed) == 0 {
		return true
	}
	for _, g := range f.allowed {
		if g.Match(name) {
			return true
		}
	}
	return false
}
