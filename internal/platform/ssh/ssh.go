// Package ssh provides the remote command session used to bootstrap the
// provisioned EC2 host. It handles connection establishment with retry
// logic, key-based authentication, and command execution with context
// support.
//
// A freshly provisioned instance takes a while to accept connections, so
// dialing retries with backoff until the caller's timeout elapses.
//
// Security: Host key verification is disabled by default for ephemeral
// infrastructure. Configure HostKeyCallback for persistent hosts.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/k3dops/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 60
	defaultRetryDelay  = 5 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// ErrTimedOut marks a command that exceeded its deadline. The remote command
// may still be running: a timeout is not evidence the installation never
// started, so callers must not treat it as a clean failure.
var ErrTimedOut = errors.New("remote command timed out; it may still be in progress on the host")

// Session is the remote execution surface the bootstrapper depends on.
type Session interface {
	// Execute runs a command on the remote host and returns combined output.
	Execute(ctx context.Context, command string) (string, error)

	// Mode reports the current privilege mode of the session.
	Mode() Mode

	// MarkPrivilegePending records that a group membership change was made
	// that only takes effect on a new session.
	MarkPrivilegePending()

	// Reconnect re-establishes the session, promoting a pending privilege
	// change to effective.
	Reconnect(ctx context.Context) error
}

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used (suitable for ephemeral
	// infrastructure).
	HostKeyCallback ssh.HostKeyCallback
}

// Client executes commands on a remote host via SSH. It parses the private
// key once during construction and dials on demand per Execute call.
type Client struct {
	config *Config
	signer ssh.Signer
	mode   Mode
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Default for ephemeral infrastructure
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
		mode:   ModeUnprivileged,
	}, nil
}

// Execute runs a command on the remote host with connection retry logic.
// Returns command output (stdout+stderr) and any execution error.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	out, err := c.runCommand(ctx, client, command)
	return out, wrapTimeout(ctx, command, err)
}

// wrapTimeout labels err as ErrTimedOut only when the context deadline
// expired. A deliberate cancel keeps the original error so callers do not
// retry work the operator asked to abandon.
func wrapTimeout(ctx context.Context, command string, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimedOut, command)
	}
	return err
}

// Mode implements Session.
func (c *Client) Mode() Mode {
	return c.mode
}

// MarkPrivilegePending implements Session.
func (c *Client) MarkPrivilegePending() {
	if c.mode == ModeUnprivileged {
		c.mode = ModePrivilegedPendingRestart
	}
}

// Reconnect implements Session. It dials a fresh connection and, when a
// privilege change was pending, promotes the session to privileged: group
// membership only applies to sessions opened after the usermod.
func (c *Client) Reconnect(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	_ = client.Close()

	if c.mode == ModePrivilegedPendingRestart {
		c.mode = ModePrivileged
	}
	return nil
}

// connect establishes the SSH connection with retry logic. Cloud instances
// can take minutes before sshd accepts connections after boot.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	var client *ssh.Client

	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s after %d retry attempts: %w",
			addr, c.config.MaxRetries, err)
	}

	return client, nil
}

// runCommand executes a command on an established SSH connection.
func (c *Client) runCommand(ctx context.Context, client *ssh.Client, command string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	type execResult struct {
		output []byte
		err    error
	}
	done := make(chan execResult, 1)

	go func() {
		output, runErr := session.CombinedOutput(command)
		done <- execResult{output: output, err: runErr}
	}()

	select {
	case <-ctx.Done():
		// Closing the session interrupts the wait, not the remote process.
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return string(res.output), fmt.Errorf("command failed on %s: %w\nCommand: %s\nOutput: %s",
				c.config.Host, res.err, command, string(res.output))
		}
		return string(res.output), nil
	}
}
