package output

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// csiSeq matches any CSI sequence, private-mode parameter bytes (?<=>)
	// included; only SGR ('m') and line erases ('K') survive when cursor
	// control is disabled.
	csiSeq = regexp.MustCompile(`\x1b\[[0-9;?<=>]*[ -/]*[a-zA-Z]`)
	// eraseSeq matches erase-to-start and erase-whole-line, both of which
	// wipe the prompt off the screen.
	eraseSeq = regexp.MustCompile(`\x1b\[[12]K`)
	// columnSeq matches an absolute cursor column move.
	columnSeq = regexp.MustCompile(`\x1b\[(\d+)G`)
)

// AdjustCursor rewrites a line of remote output so that in-place redraws
// (progress bars, spinners) keep the host prompt visible. Line erases get the
// prompt re-printed at column one with the cursor position saved and
// restored; a bare carriage-return redraw gets the prompt re-printed inline.
// With cursor control allowed, absolute column moves are shifted right past
// the prompt; without it, every non-SGR control sequence other than a line
// erase is stripped. Trailing spaces and tabs are dropped either way.
func AdjustCursor(line, prompt string, maxNameLength int, allowCursorControl bool) string {
	if !allowCursorControl {
		line = csiSeq.ReplaceAllStringFunc(line, func(seq string) string {
			switch seq[len(seq)-1] {
			case 'm', 'K':
				return seq
			}
			return ""
		})
	}

	line = eraseSeq.ReplaceAllStringFunc(line, func(seq string) string {
		return seq + "\x1b[s\x1b[G" + prompt + "\x1b[u"
	})

	if strings.ContainsRune(line, '\r') {
		line = insertPromptAfterReturns(line, prompt)
	}

	if allowCursorControl {
		line = columnSeq.ReplaceAllStringFunc(line, func(seq string) string {
			m := columnSeq.FindStringSubmatch(seq)
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return seq
			}
			return "\x1b[" + strconv.Itoa(n+maxNameLength+3) + "G"
		})
	}

	return strings.TrimRight(line, " \t")
}

// insertPromptAfterReturns re-prints the prompt after each carriage return
// that starts a redraw. Returns that are part of a newline, or immediately
// followed by a line erase (which re-prints the prompt itself), are left
// alone.
func insertPromptAfterReturns(line, prompt string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		b.WriteByte(line[i])
		if line[i] != '\r' {
			continue
		}
		rest := line[i+1:]
		if strings.HasPrefix(rest, "\n") ||
			strings.HasPrefix(rest, "\x1b[1K") ||
			strings.HasPrefix(rest, "\x1b[2K") {
			continue
		}
		b.WriteString(prompt)
	}
	return b.String()
}
