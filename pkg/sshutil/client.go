package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"golang.org/x/crypto/ssh"
)

// DefaultConnectTimeout bounds dial plus handshake when Options.Timeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// Options describes how to reach and authenticate to a host.
type Options struct {
	// Host can be an SSH config alias, a hostname, user@hostname or hostname:port.
	Host string
	// Port overrides ssh_config and any port in Host when > 0.
	Port int
	// User overrides ssh_config and any user in Host when set.
	User         string
	Password     string
	IdentityFile string
	UseAgent     bool

	// SSHConfigPath is consulted for HostName/Port/User/IdentityFile. Empty skips it.
	SSHConfigPath string

	// HostKeyPolicy is PolicyStrict (default), PolicyAcceptNew or PolicyInsecure.
	HostKeyPolicy  string
	KnownHostsPath string

	// Timeout bounds TCP dial plus SSH handshake.
	Timeout time.Duration

	Logger logger.Logger
}

func (o Options) logger() logger.Logger {
	if o.Logger == nil {
		return logger.Noop()
	}
	return o.Logger
}

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)

	closeOnce  sync.Once
	closeErr   error
	closeAgent func()
}

// Dial establishes an SSH connection. Dial and handshake both run under
// opts.Timeout and are abandoned as soon as ctx is done.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	settings := resolveSettings(opts)
	log := opts.logger()

	auth, closeAgent, err := authMethods(settings, opts)
	if err != nil {
		return nil, err
	}

	callback, err := hostKeyCallback(opts.HostKeyPolicy, opts.KnownHostsPath)
	if err != nil {
		closeAgent()
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Couldn't set up host key checking for '%s'", opts.Host),
			"Check remote.known_hosts and remote.host_key_policy")
	}

	config := &ssh.ClientConfig{
		User:            settings.user,
		Auth:            auth,
		HostKeyCallback: callback,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := settings.address()
	log.Debug("Dialing %s as %s", address, settings.user)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		closeAgent()
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Can't reach '%s' at %s", opts.Host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own: bound it with the deadline and
	// unblock it early on cancellation.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, handshakeError(ctx, opts.Host, err, settings.encryptedKeys)
	}
	_ = conn.SetDeadline(time.Time{})

	log.Debug("Connected to %s", address)
	return &Client{
		Client:     ssh.NewClient(sshConn, chans, reqs),
		Host:       opts.Host,
		Address:    address,
		closeAgent: closeAgent,
	}, nil
}

func handshakeError(ctx context.Context, host string, err error, encryptedKeys []string) error {
	var mismatch *HostKeyMismatchError
	if stderrors.As(err, &mismatch) {
		return errors.WrapWithCode(mismatch, errors.ErrConnection, mismatch.Error(), mismatch.Suggestion())
	}

	var unknown *UnknownHostError
	if stderrors.As(err, &unknown) {
		return errors.WrapWithCode(unknown, errors.ErrConnection, unknown.Error(), unknown.Suggestion())
	}

	var netErr net.Error
	if ctx.Err() != nil || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("SSH handshake with '%s' timed out", host),
			"The port accepted the connection but no SSH server answered. Check remote.port.")
	}

	return errors.WrapWithCode(err, errors.ErrConnection,
		fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
		suggestionForHandshakeError(err, encryptedKeys))
}

// Close closes the SSH connection. Safe to call more than once.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.Client != nil {
			c.closeErr = c.Client.Close()
		}
		if c.closeAgent != nil {
			c.closeAgent()
		}
	})
	return c.closeErr
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Check remote.host and remote.port."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	if strings.Contains(errStr, "no such host") {
		return "The hostname didn't resolve. Check remote.host for typos."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return encryptedKeySuggestion(encryptedKeys)
		}
		return "Auth failed. Check remote.user and remote.password (GEA_REMOTE_PASSWORD) or your keys: ssh-add -l"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}
