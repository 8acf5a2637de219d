// Package sshtest provides scripted stand-ins for real SSH connections so
// orchestration and display code can be tested without a server.
package sshtest

import (
	"context"
	"sync"

	"github.com/cwt/ananta/internal/output"
)

// Runner is a scripted sshutil.Runner. Capture returns the configured
// output; Stream replays the configured lines onto the queue.
type Runner struct {
	// Output and Err script Capture.
	Output string
	Err    error

	// Lines and StreamErr script Stream; StreamErr is pushed after the
	// lines when non-empty.
	Lines     []string
	StreamErr string

	mu       sync.Mutex
	closed   bool
	captured []string
}

// Capture returns the scripted output and records the command.
func (r *Runner) Capture(ctx context.Context, command string, width int, color bool) (string, error) {
	r.mu.Lock()
	r.captured = append(r.captured, command)
	r.closed = true
	r.mu.Unlock()
	return r.Output, r.Err
}

// Stream replays the scripted lines onto the queue.
func (r *Runner) Stream(ctx context.Context, command string, width int, color bool, q *output.Queue) {
	r.mu.Lock()
	r.captured = append(r.captured, command)
	r.mu.Unlock()
	for _, line := range r.Lines {
		if q.PushLine(ctx, line) != nil {
			return
		}
	}
	if r.StreamErr != "" {
		q.PushError(ctx, r.StreamErr)
	}
}

// Close marks the runner closed.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close or Capture has run.
func (r *Runner) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Commands returns the commands passed to Capture and Stream.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.captured...)
}
