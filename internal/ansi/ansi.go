// Package ansi converts raw terminal output into styled text segments.
//
// The renderer is a small state machine: SGR ("select graphic rendition")
// sequences mutate a State that persists across fragments of the same
// stream, while any other CSI sequence is recognized and skipped so byte
// offsets never get corrupted. Cursor-control handling lives in the output
// package; this package only models text styling.
package ansi

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Color is a terminal color in lipgloss-compatible form: "default", an ANSI
// index ("0".."15"), a 256-palette index ("208"), or a hex triplet
// ("#0a141e") for truecolor.
type Color string

// DefaultColor is the terminal's default foreground/background.
const DefaultColor Color = "default"

// tabStop is the fixed tab expansion width.
const tabStop = 8

// State accumulates the styling applied by SGR sequences. One State is
// carried per output stream and persists across chunk boundaries within a
// command's lifetime.
type State struct {
	FG Color
	BG Color

	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Reverse   bool
	Conceal   bool
}

// NewState returns a State with default colors and no styles.
func NewState() *State {
	return &State{FG: DefaultColor, BG: DefaultColor}
}

// Reset clears all styles and restores default colors (SGR 0).
func (s *State) Reset() {
	*s = State{FG: DefaultColor, BG: DefaultColor}
}

// Style is the effective rendering style of a segment. Reverse and conceal
// are already resolved into the FG/BG values.
type Style struct {
	FG        Color
	BG        Color
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
}

// DefaultStyle is the style of unstyled text.
var DefaultStyle = Style{FG: DefaultColor, BG: DefaultColor}

// Effective resolves the segment style from the stored state. Reverse swaps
// the emitted foreground/background without mutating the stored colors;
// conceal renders the foreground identical to the background.
func (s *State) Effective() Style {
	st := Style{
		FG:        s.FG,
		BG:        s.BG,
		Bold:      s.Bold,
		Italic:    s.Italic,
		Underline: s.Underline,
		Strike:    s.Strike,
	}
	if s.Reverse {
		st.FG, st.BG = st.BG, st.FG
	}
	if s.Conceal {
		st.FG = st.BG
	}
	return st
}

// Segment is a run of text sharing one style.
type Segment struct {
	Style Style
	Text  string
}

// Render consumes a raw fragment, mutating state as SGR sequences are
// applied, and returns the fragment's text as styled segments. Consecutive
// runs with identical effective styles are merged. The fragment must not
// split an escape sequence across calls; the producer buffers whole lines.
func Render(state *State, fragment string) []Segment {
	var segments []Segment
	var buf strings.Builder
	style := state.Effective()
	col := 0

	flush := func() {
		if buf.Len() > 0 {
			segments = append(segments, Segment{Style: style, Text: buf.String()})
			buf.Reset()
		}
	}

	i := 0
	for i < len(fragment) {
		c := fragment[i]

		if c == 0x1b {
			params, final, n := scanCSI(fragment[i:])
			if n == 0 {
				// Lone ESC, drop it.
				i++
				continue
			}
			if final == 'm' {
				applySGR(state, params)
				next := state.Effective()
				if next != style {
					flush()
					style = next
				}
			}
			// Any other CSI (cursor movement, erase) is skipped here;
			// the output router decides what to do with those.
			i += n
			continue
		}

		if c == '\t' {
			pad := tabStop - col%tabStop
			buf.WriteString(strings.Repeat(" ", pad))
			col += pad
			i++
			continue
		}

		// Column positions count runes, not bytes, so tab stops stay put
		// after multi-byte text.
		_, size := utf8.DecodeRuneInString(fragment[i:])
		buf.WriteString(fragment[i : i+size])
		col++
		i += size
	}

	flush()
	return segments
}

// scanCSI parses an escape sequence starting at s[0] == ESC. It returns the
// parameter string, the final byte, and the total byte length consumed.
// A zero length means s does not start a CSI sequence. Parameter bytes
// (0x30-0x3f, which includes the private-mode markers ?<=>) and intermediate
// bytes (0x20-0x2f) are consumed per ECMA-48, so sequences like the \x1b[?25l
// cursor-hide emitted by progress bars are skipped whole.
func scanCSI(s string) (params string, final byte, n int) {
	if len(s) < 2 || s[1] != '[' {
		return "", 0, 0
	}
	for j := 2; j < len(s); j++ {
		c := s[j]
		if c >= 0x40 && c <= 0x7e {
			return s[2:j], c, j + 1
		}
		if c < 0x20 || c > 0x3f {
			// Malformed sequence, consume up to here.
			return "", 0, j + 1
		}
	}
	// Unterminated sequence at end of fragment, consume the rest.
	return "", 0, len(s)
}

// applySGR applies a semicolon-separated SGR parameter list to the state.
func applySGR(s *State, params string) {
	if params == "" {
		s.Reset()
		return
	}

	codes := strings.Split(params, ";")
	for i := 0; i < len(codes); i++ {
		code, err := strconv.Atoi(codes[i])
		if err != nil {
			continue
		}
		switch {
		case code == 0:
			s.Reset()
		case code == 1:
			s.Bold = true
		case code == 22:
			s.Bold = false
		case code == 3:
			s.Italic = true
		case code == 23:
			s.Italic = false
		case code == 4:
			s.Underline = true
		case code == 24:
			s.Underline = false
		case code == 7:
			s.Reverse = true
		case code == 27:
			s.Reverse = false
		case code == 8:
			s.Conceal = true
		case code == 28:
			s.Conceal = false
		case code == 9:
			s.Strike = true
		case code == 29:
			s.Strike = false
		case code >= 30 && code <= 37:
			s.FG = Color(strconv.Itoa(code - 30))
		case code >= 90 && code <= 97:
			s.FG = Color(strconv.Itoa(code - 90 + 8))
		case code == 39:
			s.FG = DefaultColor
		case code >= 40 && code <= 47:
			s.BG = Color(strconv.Itoa(code - 40))
		case code >= 100 && code <= 107:
			s.BG = Color(strconv.Itoa(code - 100 + 8))
		case code == 49:
			s.BG = DefaultColor
		case code == 38 || code == 48:
			color, consumed := parseExtendedColor(codes[i+1:])
			if consumed == 0 {
				return // malformed tail, ignore the rest
			}
			if code == 38 {
				s.FG = color
			} else {
				s.BG = color
			}
			i += consumed
		}
	}
}

// parseExtendedColor parses the sub-parameters of SGR 38/48: "5;n" selects
// an indexed 256-palette entry, "2;r;g;b" an arbitrary truecolor value.
// It returns the color and how many parameters were consumed.
func parseExtendedColor(codes []string) (Color, int) {
	if len(codes) == 0 {
		return DefaultColor, 0
	}
	switch codes[0] {
	case "5":
		if len(codes) < 2 {
			return DefaultColor, 0
		}
		n, err := strconv.Atoi(codes[1])
		if err != nil || n < 0 || n > 255 {
			return DefaultColor, 0
		}
		return Color(strconv.Itoa(n)), 2
	case "2":
		if len(codes) < 4 {
			return DefaultColor, 0
		}
		var rgb [3]int
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(codes[1+i])
			if err != nil || v < 0 || v > 255 {
				return DefaultColor, 0
			}
			rgb[i] = v
		}
		return Color(fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])), 4
	}
	return DefaultColor, 0
}
