package expand

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// fnmatchLiterals holds gobwas operators that fnmatch treats as plain
// characters: brace alternation and the backslash escape.
var fnmatchLiterals = strings.NewReplacer(`\`, `\\`, "{", `\{`, "}", `\}`)

// Patterns is a compiled list of fnmatch-style globs ("*", "?", "[...]").
// Braces and backslashes match themselves.
// A nil Patterns matches nothing.
type Patterns struct {
	raw   []string
	globs []glob.Glob
}

// CompilePatterns compiles every pattern; an invalid pattern is an error.
func CompilePatterns(patterns []string) (Patterns, error) {
	p := Patterns{
		raw:   append([]string(nil), patterns...),
		globs: make([]glob.Glob, 0, len(patterns)),
	}
	for i, pattern := range patterns {
		// No separators: "*" spans any character.
		g, err := glob.Compile(fnmatchLiterals.Replace(pattern))
		if err != nil {
			return Patterns{}, fmt.Errorf("failed to compile glob pattern %q at index %d: %w", pattern, i, err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// MustCompilePatterns is CompilePatterns for literals known to be valid.
func MustCompilePatterns(patterns ...string) Patterns {
	p, err := CompilePatterns(patterns)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether any pattern matches any of the values.
func (p Patterns) Match(values ...string) bool {
	for _, g := range p.globs {
		for _, v := range values {
			if g.Match(v) {
				return true
			}
		}
	}
	return false
}

// Matching returns the raw patterns that match at least one value.
func (p Patterns) Matching(values ...string) []string {
	var out []string
	for i, g := range p.globs {
		for _, v := range values {
			if g.Match(v) {
				out = append(out, p.raw[i])
				break
			}
		}
	}
	return out
}

// Raw returns the source patterns.
func (p Patterns) Raw() []string {
	return append([]string(nil), p.raw...)
}

// Len returns the number of patterns.
func (p Patterns) Len() int {
	return len(p.globs)
}
