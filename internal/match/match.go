// Package match filters checkout-relative file paths with glob
// patterns. Patterns compile once into a Set; matching is allocation
// free on the walk hot path.
//
// Globs use '/' as the separator, so * stays within one path segment
// and ** crosses segments. Exclude patterns win over includes, and an
// empty include list admits every file. Paths under .git/ never match.
package match

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

type compiledPattern struct {
	raw string
	g   glob.Glob
}

// Set is a compiled include/exclude pattern set applied to
// slash-separated paths relative to a checkout root.
type Set struct {
	include []compiledPattern
	exclude []compiledPattern
}

// NewSet compiles the pattern lists. Invalid patterns are rejected by
// name so configuration mistakes surface at startup, not mid-walk.
func NewSet(include, exclude []string) (*Set, error) {
	s := &Set{}
	var err error
	if s.include, err = compileAll("include", include); err != nil {
		return nil, err
	}
	if s.exclude, err = compileAll("exclude", exclude); err != nil {
		return nil, err
	}
	return s, nil
}

func compileAll(kind string, patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", kind, p, err)
		}
		out = append(out, compiledPattern{raw: p, g: g})
	}
	return out, nil
}

// Match reports whether path belongs to the set. path must be
// slash-separated and relative to the checkout root.
func (s *Set) Match(path string) bool {
	ok, _ := s.Explain(path)
	return ok
}

// Explain returns the match decision together with the pattern that
// made it, for debug logging.
func (s *Set) Explain(path string) (bool, string) {
	if path == ".git" || strings.HasPrefix(path, ".git/") {
		return false, "git metadata"
	}

	for _, p := range s.exclude {
		if p.g.Match(path) {
			return false, fmt.Sprintf("excluded by %q", p.raw)
		}
	}

	if len(s.include) == 0 {
		return true, "no include patterns"
	}
	for _, p := range s.include {
		if p.g.Match(path) {
			return true, fmt.Sprintf("included by %q", p.raw)
		}
	}
	return false, "no include pattern matched"
}
