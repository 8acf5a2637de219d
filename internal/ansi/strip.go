package ansi

import (
	"regexp"
	"strings"
)

// csiPattern matches any CSI escape sequence, private-mode parameter bytes
// (?<=>) included; the final byte decides whether it is SGR (kept) or
// cursor/erase control (stripped).
var csiPattern = regexp.MustCompile(`\x1b\[[0-9;?<=>]*[ -/]*[a-zA-Z]`)

// StripControl removes cursor and screen control sequences from a line while
// keeping SGR styling intact. A carriage return followed by more text means
// the remote redrew the line, so only the text after the last such return is
// kept; a bare trailing "\r" or "\r\n" survives untouched.
func StripControl(line string) string {
	out := csiPattern.ReplaceAllStringFunc(line, func(seq string) string {
		if seq[len(seq)-1] == 'm' {
			return seq
		}
		return ""
	})

	// Preserve line endings before resolving redraws.
	suffix := ""
	if strings.HasSuffix(out, "\r\n") {
		suffix = "\r\n"
		out = strings.TrimSuffix(out, "\r\n")
	} else if strings.HasSuffix(out, "\r") {
		suffix = "\r"
		out = strings.TrimSuffix(out, "\r")
	}

	if idx := strings.LastIndexByte(out, '\r'); idx >= 0 {
		out = out[idx+1:]
	}
	return out + suffix
}
