// Package output routes per-host command output to the display.
//
// Each host gets its own Queue fed by the command executor and drained by a
// consumer (the batch Printer or the interactive session). Events are a
// tagged variant of Line | Error | End so that end-of-stream never collides
// with real output. The invariant the rest of the program leans on: exactly
// one End event is pushed per command execution, on every success and
// failure path, and it is the last event on that host's queue.
package output

import "context"

// Kind discriminates queue events.
type Kind int

const (
	// KindLine is a chunk of remote output.
	KindLine Kind = iota
	// KindError is a descriptive failure message shown in place of output.
	KindError
	// KindEnd signals that no further events will arrive for this host.
	KindEnd
)

// Event is one entry on a host's output queue.
type Event struct {
	Kind Kind
	Text string
}

// queueDepth buffers enough events that a producer rarely blocks; the
// consumer always drains to End, and a cancelled context unblocks a writer
// whose consumer is gone.
const queueDepth = 64

// Queue is a FIFO of output events for a single host. It is owned by that
// host's task chain: one producer, one consumer.
type Queue struct {
	ch chan Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ch: make(chan Event, queueDepth)}
}

// Push enqueues an event, giving up if ctx is cancelled.
func (q *Queue) Push(ctx context.Context, ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PushLine enqueues a line of remote output.
func (q *Queue) PushLine(ctx context.Context, text string) error {
	return q.Push(ctx, Event{Kind: KindLine, Text: text})
}

// PushError enqueues a failure message for display on this host's channel.
func (q *Queue) PushError(ctx context.Context, text string) error {
	return q.Push(ctx, Event{Kind: KindError, Text: text})
}

// PushEnd enqueues the end-of-stream marker. The producer must call this
// exactly once, as its last write.
func (q *Queue) PushEnd(ctx context.Context) error {
	return q.Push(ctx, Event{Kind: KindEnd})
}

// Events exposes the receive side for the consumer.
func (q *Queue) Events() <-chan Event {
	return q.ch
}
