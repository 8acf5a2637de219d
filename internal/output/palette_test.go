package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteColorIsStablePerHost(t *testing.T) {
	p := NewPalette()

	first := p.Color("web-1")
	assert.Equal(t, first, p.Color("web-1"))

	// Distinct hosts get distinct colors while the cycle has room.
	seen := map[string]bool{string(first): true}
	for _, host := range []string{"web-2", "db-1", "db-2"} {
		c := string(p.Color(host))
		assert.False(t, seen[c], "color %s reused early", c)
		seen[c] = true
	}
}

func TestPaletteColorCycles(t *testing.T) {
	p := NewPalette()

	hosts := make([]string, 0, len(hostColors)+1)
	for i := 0; i <= len(hostColors); i++ {
		hosts = append(hosts, strings.Repeat("h", i+1))
	}
	for _, host := range hosts {
		p.Color(host)
	}

	// Host number len(hostColors)+1 wraps to the first color in the cycle.
	assert.Equal(t, p.Color(hosts[0]), p.Color(hosts[len(hostColors)]))
}

func TestPromptPlain(t *testing.T) {
	p := NewPalette()

	assert.Equal(t, "[ web-1] ", p.Prompt("web-1", 6, false))
	assert.Equal(t, "[web-1] ", p.Prompt("web-1", 5, false))
}

func TestPromptColored(t *testing.T) {
	p := NewPalette()

	got := p.Prompt("web-1", 6, true)
	require.True(t, strings.HasPrefix(got, "\x1b["))
	assert.Contains(t, got, "[ web-1]")
	assert.True(t, strings.HasSuffix(got, "\x1b[0m "))
}

func TestEndMarker(t *testing.T) {
	p := NewPalette()

	assert.Equal(t, "----------", p.EndMarker("web-1", 10, false))

	colored := p.EndMarker("web-1", 10, true)
	assert.Contains(t, colored, "----------")
	assert.True(t, strings.HasSuffix(colored, "\x1b[0m"))
}
