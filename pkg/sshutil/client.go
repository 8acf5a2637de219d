package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cwt/ananta/internal/errors"
	"github.com/cwt/ananta/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Client wraps an SSH connection with host metadata.
type Client struct {
	*ssh.Client
	Host    string // display name from the hosts file
	Address string // resolved host:port
}

// Target identifies one remote host to connect to.
type Target struct {
	Name     string
	Address  string // host:port
	Username string
	KeyPaths []string
}

// DialOptions tune connection establishment.
type DialOptions struct {
	// Timeout bounds each individual connection attempt.
	Timeout time.Duration
	// MaxRetries is the number of attempts made after the first one fails.
	MaxRetries int
	Logger     logger.Logger
}

const (
	// DefaultTimeout bounds a single connection attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxRetries retries twice after the initial attempt.
	DefaultMaxRetries = 2
)

// Older devices (switches, BMCs, embedded boards) often negotiate faster
// with a short preferred suite, so it is offered first and widened only if
// key exchange fails.
var (
	preferredCiphers = []string{"chacha20-poly1305@openssh.com", "aes128-ctr", "aes256-ctr"}
	preferredMACs    = []string{"hmac-sha2-256", "hmac-sha1"}
)

// Seams for tests: connection attempts and the inter-attempt pause are
// swappable so retry behavior can be exercised without a server.
var (
	attemptDial = sshDial
	retrySleep  = time.Second
)

// Dial connects to a target, retrying on failure. Key exchange failures
// permanently relax the algorithm suite and retry without pausing; every
// other failure waits one beat before the next attempt. Host keys are not
// verified: fleet hosts are frequently reimaged and their keys churn.
func Dial(ctx context.Context, target Target, opts DialOptions) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	auth, err := buildAuth(target.KeyPaths, log)
	if err != nil {
		return nil, err
	}

	narrow := true
	timedOut := false
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client, err := attemptDial(target.Address, clientConfig(target.Username, auth, timeout, narrow))
		if err == nil {
			log.Debug("connected to %s (%s)", target.Name, target.Address)
			return &Client{Client: client, Host: target.Name, Address: target.Address}, nil
		}
		lastErr = err
		timedOut = isTimeout(err)
		log.Debug("attempt %d to %s failed: %v", attempt+1, target.Address, err)

		pause := retrySleep
		if !timedOut && narrow && isKexFailure(err) {
			narrow = false
			pause = 0
		}
		if attempt < opts.MaxRetries && pause > 0 {
			if err := sleepCtx(ctx, pause); err != nil {
				return nil, err
			}
		}
	}

	if timedOut {
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("Connection to %s timed out after %s", target.Address, timeout),
			"The host may be offline or firewalled. Try: ssh "+target.Address)
	}
	return nil, errors.WrapWithCode(lastErr, errors.ErrSSH,
		fmt.Sprintf("Error connecting to %s", target.Address),
		"Try connecting manually: ssh "+target.Address)
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// sshDial performs one TCP dial plus SSH handshake.
func sshDial(address string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := net.DialTimeout("tcp", address, config.Timeout)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func clientConfig(user string, auth []ssh.AuthMethod, timeout time.Duration, narrow bool) *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         timeout,
	}
	if narrow {
		cfg.Ciphers = preferredCiphers
		cfg.MACs = preferredMACs
	}
	return cfg
}

// buildAuth turns key files into auth methods, with the SSH agent as an
// additional method when it holds keys. Unreadable or passphrase-protected
// files are skipped; the agent may still hold their decrypted counterparts.
func buildAuth(keyPaths []string, log logger.Logger) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	var signers []ssh.Signer
	for _, path := range keyPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug("skipping key %s: %v", path, err)
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			log.Debug("skipping key %s: %v", path, err)
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}

	if len(methods) == 0 {
		return nil, errors.New(errors.ErrKey,
			fmt.Sprintf("None of the SSH keys could be loaded: %s", strings.Join(keyPaths, ", ")),
			"Encrypted keys need the agent: ssh-add <key>")
	}
	return methods, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method backed by the SSH agent, or nil when
// no agent is reachable or it holds no keys. The agent connection is shared
// across all hosts in the run.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the shared SSH agent connection, if one was opened.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}

// isKexFailure recognizes a failed algorithm negotiation. The ssh package
// reports these only through error text.
func isKexFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no common algorithm") ||
		strings.Contains(msg, "key exchange")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
