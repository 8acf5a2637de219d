package sshutil

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"unicode/utf8"

	"github.com/cwt/ananta/internal/errors"
	"github.com/cwt/ananta/internal/output"
	"golang.org/x/crypto/ssh"
)

// sessionLines is the PTY height advertised to the remote; tall enough that
// full-screen tools never paginate.
const sessionLines = 1000

// commandLine wraps the user's command so the remote sees the width the
// local display can actually render.
func commandLine(cmd string, width int) string {
	return fmt.Sprintf("env COLUMNS=%d LINES=%d %s", width, sessionLines, cmd)
}

func termType(color bool) string {
	if color {
		return "ansi"
	}
	return "dumb"
}

func requestPTY(session *ssh.Session, width int, color bool) error {
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	return session.RequestPty(termType(color), sessionLines, width, modes)
}

// Capture runs the command on a PTY, waits for completion, and returns the
// full output. The connection is closed on every path: a captured run is
// the connection's last use. A non-zero exit still returns whatever the
// command printed.
func (c *Client) Capture(ctx context.Context, command string, width int, color bool) (string, error) {
	defer c.Close()

	session, err := c.Client.NewSession()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Error executing command",
			"The connection may have dropped. Try rerunning.")
	}
	defer session.Close()

	if err := requestPTY(session, width, color); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Error executing command",
			"The remote host refused a pseudo-terminal.")
	}

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf

	done := make(chan error, 1)
	go func() { done <- session.Run(commandLine(command, width)) }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if !stderrors.As(err, &exitErr) {
			return "", errors.WrapWithCode(err, errors.ErrExec,
				"Error executing command",
				"Check that the command exists on the remote host.")
		}
	}

	if !utf8.Valid(buf.Bytes()) {
		return "Host returns output that cannot be decoded as UTF-8", nil
	}
	return buf.String(), nil
}

// Stream runs the command on a PTY and pushes each output line onto the
// host's queue as it arrives. Failures are reported on the queue rather
// than returned, and the connection is left open for the caller.
func (c *Client) Stream(ctx context.Context, command string, width int, color bool, q *output.Queue) {
	session, err := c.Client.NewSession()
	if err != nil {
		q.PushError(ctx, fmt.Sprintf("Error executing command: %v", err))
		return
	}
	defer session.Close()

	if err := requestPTY(session, width, color); err != nil {
		q.PushError(ctx, fmt.Sprintf("Error executing command: %v", err))
		return
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		q.PushError(ctx, fmt.Sprintf("Error executing command: %v", err))
		return
	}

	if err := session.Start(commandLine(command, width)); err != nil {
		q.PushError(ctx, fmt.Sprintf("Error executing command: %v", err))
		return
	}

	// Tear the session down if the run is cancelled mid-stream so the
	// reader below unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-stop:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !utf8.Valid(line) {
			if q.PushError(ctx, "Host returns line with bytes that cannot be decoded as UTF-8") != nil {
				return
			}
			continue
		}
		if q.PushLine(ctx, string(line)+"\n") != nil {
			return
		}
	}

	if err := session.Wait(); err != nil && ctx.Err() == nil {
		var exitErr *ssh.ExitError
		if !stderrors.As(err, &exitErr) {
			q.PushError(ctx, fmt.Sprintf("Error executing command: %v", err))
		}
	}
}
