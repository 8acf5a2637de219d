package sshutil

import (
	"context"

	"github.com/cwt/ananta/internal/output"
)

// Runner is the per-host execution surface the orchestrator drives. The
// real Client implements it; tests substitute a scripted fake.
type Runner interface {
	// Capture runs a command to completion and returns its full output.
	// The underlying connection is closed afterwards.
	Capture(ctx context.Context, command string, width int, color bool) (string, error)

	// Stream runs a command and pushes output lines onto the queue as they
	// arrive, leaving the connection open.
	Stream(ctx context.Context, command string, width int, color bool, q *output.Queue)

	// Close closes the connection.
	Close() error
}
