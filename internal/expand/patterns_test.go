package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsMatch(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"el*", "el9", true},
		{"el*", "el9-aarch64", true},
		{"el*", "fc41", false},
		{"el7-aarch64", "el7-aarch64", true},
		{"el7-aarch64", "el7-x86_64", false},
		{"el7-aarch64", "el8-aarch64", false},
		{"*", "anything", true},
		{"fc4?", "fc41", true},
		{"fc4?", "fc4", false},
		{"el[78]", "el8", true},
		{"el[78]", "el9", false},
		{"el{7,8}", "el7", false},
		{"el{7,8}", "el{7,8}", true},
		{`el\7`, `el\7`, true},
		{`el\7`, "el7", false},
	}
	for _, tt := range tests {
		p := MustCompilePatterns(tt.pattern)
		assert.Equal(t, tt.want, p.Match(tt.value), "%q vs %q", tt.pattern, tt.value)
	}
}

func TestPatternsEmptyMatchesNothing(t *testing.T) {
	var p Patterns
	assert.False(t, p.Match("el9"))
	assert.Zero(t, p.Len())
}

func TestPatternsMatching(t *testing.T) {
	p := MustCompilePatterns("el*", "fc41", "sles*")
	assert.Equal(t, []string{"el*", "fc41"}, p.Matching("el9", "fc41"))
	assert.Equal(t, []string{"el*", "fc41", "sles*"}, p.Raw())
}

func TestCompilePatternsInvalid(t *testing.T) {
	_, err := CompilePatterns([]string{"ok", "[unterminated"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unterminated")
}
