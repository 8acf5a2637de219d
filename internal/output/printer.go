package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// PrinterOptions control how remote output is rendered.
type PrinterOptions struct {
	// Color enables per-host colored prompts and end markers.
	Color bool
	// AllowEmptyLine prints blank output lines instead of skipping them.
	AllowEmptyLine bool
	// AllowCursorControl passes absolute cursor moves through (shifted past
	// the prompt) instead of stripping them.
	AllowCursorControl bool
	// Separate treats each line event as a host's complete captured output,
	// printed as one contiguous block.
	Separate bool
}

// Printer writes host-attributed output lines to a shared writer. All hosts'
// consumers share one Printer; the writer lock keeps interleaved lines whole
// and keeps a captured block contiguous.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	palette *Palette

	maxNameLength int
	width         int
	opts          PrinterOptions
}

// NewPrinter creates a printer. maxNameLength aligns the prompts of every
// host; width sizes the end markers to the local terminal.
func NewPrinter(w io.Writer, palette *Palette, maxNameLength, width int, opts PrinterOptions) *Printer {
	return &Printer{
		w:             w,
		palette:       palette,
		maxNameLength: maxNameLength,
		width:         width,
		opts:          opts,
	}
}

// Consume drains a host's queue, printing each event as it arrives. It
// returns when the end-of-stream event is printed or ctx is cancelled.
func (p *Printer) Consume(ctx context.Context, host string, q *Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.Events():
			switch ev.Kind {
			case KindLine:
				if p.opts.Separate {
					p.printBlockLines(host, ev.Text)
				} else {
					p.printLine(host, ev.Text)
				}
			case KindError:
				p.PrintMessage(host, ev.Text)
			case KindEnd:
				p.PrintEnd(host)
				return
			}
		}
	}
}

func (p *Printer) printLine(host, text string) {
	line := strings.TrimRight(text, "\r\n")
	if line == "" && !p.opts.AllowEmptyLine {
		return
	}
	prompt := p.palette.Prompt(host, p.maxNameLength, p.opts.Color)
	line = AdjustCursor(line, prompt, p.maxNameLength, p.opts.AllowCursorControl)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s%s%s\n", prompt, line, sgrReset)
}

// PrintMessage prints a single attributed line, bypassing empty-line
// suppression and cursor rewriting. Used for connection and decode failures.
func (p *Printer) PrintMessage(host, text string) {
	prompt := p.palette.Prompt(host, p.maxNameLength, p.opts.Color)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s%s%s\n", prompt, text, sgrReset)
}

// PrintBlock prints a host's full captured output followed by its end
// marker.
func (p *Printer) PrintBlock(host, block string) {
	p.printBlockLines(host, block)
	p.PrintEnd(host)
}

// printBlockLines prints a multi-line block in one locked pass so no other
// host's lines land in the middle of it.
func (p *Printer) printBlockLines(host, block string) {
	prompt := p.palette.Prompt(host, p.maxNameLength, p.opts.Color)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(block, "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" && !p.opts.AllowEmptyLine {
			continue
		}
		fmt.Fprintf(p.w, "%s%s%s\n", prompt, line, sgrReset)
	}
}

// PrintEnd prints the host's end-of-output marker.
func (p *Printer) PrintEnd(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.palette.EndMarker(host, p.width, p.opts.Color))
}
