package output

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/cwt/ananta/internal/ansi"
)

// hostColors are the ANSI indexes hosts cycle through. Bright variants are
// included so large fleets stay distinguishable.
var hostColors = []ansi.Color{
	"1", "2", "3", "4", "5", "6", "7",
	"9", "10", "11", "12", "13", "14",
}

// Palette assigns each host a stable display color for the lifetime of one
// run. Colors come from a shuffled round-robin so different runs look
// different, but within a run the same host always renders the same color.
type Palette struct {
	mu       sync.Mutex
	cycle    []ansi.Color
	next     int
	assigned map[string]ansi.Color
}

// NewPalette creates a palette with a freshly shuffled color cycle.
func NewPalette() *Palette {
	cycle := make([]ansi.Color, len(hostColors))
	copy(cycle, hostColors)
	rand.Shuffle(len(cycle), func(i, j int) {
		cycle[i], cycle[j] = cycle[j], cycle[i]
	})
	return &Palette{
		cycle:    cycle,
		assigned: make(map[string]ansi.Color),
	}
}

// Color returns the host's display color, assigning one on first reference.
func (p *Palette) Color(host string) ansi.Color {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.assigned[host]; ok {
		return c
	}
	c := p.cycle[p.next%len(p.cycle)]
	p.next++
	p.assigned[host] = c
	return c
}

// sgrReset restores default terminal attributes.
const sgrReset = "\x1b[0m"

// sgrForeground returns the escape sequence selecting an ANSI indexed
// foreground color.
func sgrForeground(c ansi.Color) string {
	var idx int
	if _, err := fmt.Sscanf(string(c), "%d", &idx); err != nil {
		return ""
	}
	if idx < 8 {
		return fmt.Sprintf("\x1b[%dm", 30+idx)
	}
	return fmt.Sprintf("\x1b[%dm", 90+idx-8)
}

// Prompt renders the host's attribution prefix: the name right-aligned to
// the longest host name, in brackets, followed by one space. With color the
// bracketed name is wrapped in the host's color and a reset.
func (p *Palette) Prompt(host string, maxNameLength int, color bool) string {
	padded := fmt.Sprintf("[%*s]", maxNameLength, host)
	if !color {
		return padded + " "
	}
	return sgrForeground(p.Color(host)) + padded + sgrReset + " "
}

// EndMarker renders the divider that closes a host's output: a full-width
// dashed line, colored to match the host's prompt.
func (p *Palette) EndMarker(host string, width int, color bool) string {
	dashes := strings.Repeat("-", width)
	if !color {
		return dashes
	}
	return sgrForeground(p.Color(host)) + dashes + sgrReset
}
