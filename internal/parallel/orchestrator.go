// Package parallel fans one command out to every host in the fleet at the
// same time. Each host gets a producer task (connect, execute, feed the
// queue) and a consumer task (drain the queue to the printer); a failure on
// one host becomes a message on that host's channel, never an abort of the
// run.
package parallel

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/cwt/ananta/internal/config"
	"github.com/cwt/ananta/internal/logger"
	"github.com/cwt/ananta/internal/output"
	"github.com/cwt/ananta/pkg/sshutil"
	"golang.org/x/sync/errgroup"
)

// Options configure a fan-out run.
type Options struct {
	Command string
	// SeparateOutput captures each host's complete output and prints it as
	// one block instead of interleaving lines as they arrive.
	SeparateOutput bool
	Color          bool
	// LocalWidth is the local terminal width; the remote width is what
	// remains after the prompt column.
	LocalWidth    int
	MaxNameLength int
	// DefaultKey is the run-wide key used by hosts whose entry names none.
	DefaultKey string
	Logger     logger.Logger
}

// connectHost is a seam for tests: selecting keys and dialing are replaced
// by scripted runners.
var connectHost = func(ctx context.Context, host config.Host, defaultKey string, log logger.Logger) (sshutil.Runner, error) {
	keys, err := sshutil.SelectKeys(host.Name, host.KeyPath, defaultKey)
	if err != nil {
		return nil, err
	}
	return sshutil.Dial(ctx, sshutil.Target{
		Name:     host.Name,
		Address:  net.JoinHostPort(host.Address, strconv.Itoa(host.Port)),
		Username: host.Username,
		KeyPaths: keys,
	}, sshutil.DialOptions{
		Timeout:    sshutil.DefaultTimeout,
		MaxRetries: sshutil.DefaultMaxRetries,
		Logger:     log,
	})
}

// Run executes the command on every host concurrently and blocks until all
// output has been printed. The returned error reflects context
// cancellation only; per-host failures are printed on the host's channel.
func Run(ctx context.Context, hosts []config.Host, printer *output.Printer, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	remoteWidth := opts.LocalWidth - opts.MaxNameLength - 3

	g, ctx := errgroup.WithContext(ctx)
	for _, host := range hosts {
		host := host
		q := output.NewQueue()
		g.Go(func() error {
			produce(ctx, host, q, remoteWidth, opts, log)
			return nil
		})
		g.Go(func() error {
			printer.Consume(ctx, host.Name, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// produce connects to one host, runs the command, and feeds the host's
// queue. The end-of-stream event is pushed on every path, exactly once.
func produce(ctx context.Context, host config.Host, q *output.Queue, remoteWidth int, opts Options, log logger.Logger) {
	defer q.PushEnd(ctx)

	runner, err := connectHost(ctx, host, opts.DefaultKey, log)
	if err != nil {
		q.PushError(ctx, fmt.Sprintf("Error connecting to %s: %v", host.Name, err))
		return
	}

	if opts.SeparateOutput {
		// Capture closes the connection itself.
		out, err := runner.Capture(ctx, opts.Command, remoteWidth, opts.Color)
		if err != nil {
			q.PushError(ctx, fmt.Sprintf("Error executing command on %s: %v", host.Name, err))
			return
		}
		q.PushLine(ctx, out)
		return
	}

	defer runner.Close()
	runner.Stream(ctx, opts.Command, remoteWidth, opts.Color, q)
}
