package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinPresets(t *testing.T) {
	presets := Builtin()
	assert.NotEmpty(t, presets)

	seen := make(map[string]bool)
	for _, p := range presets {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Content)
		assert.False(t, seen[p.Name], "duplicate preset name %q", p.Name)
		seen[p.Name] = true
	}
	assert.True(t, seen["Default"])
}
