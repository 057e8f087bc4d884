// Package remote owns one connection to the host holding the category files
// and runs shell commands on it with a per-command timeout.
package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	localexec "github.com/gea-smc/gea/internal/exec"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/pkg/sshutil"
)

// Output is the result of one command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs commands on the remote host. Non-zero exit codes are
// returned in Output, not as errors.
type Executor interface {
	Run(ctx context.Context, cmd string, stdin io.Reader) (Output, error)
}

// DialFunc opens the underlying client. Replaced in tests.
type DialFunc func(ctx context.Context, opts sshutil.Options) (sshutil.SSHClient, error)

// Session is a single connection used for one logical operation.
// It is not shared across concurrent operations.
type Session struct {
	client         sshutil.SSHClient
	commandTimeout time.Duration
	log            logger.Logger
	metrics        *metrics.Metrics

	closeOnce sync.Once
	closeErr  error
}

var _ Executor = (*Session)(nil)

// Option configures Connect and NewSession.
type Option func(*sessionOptions)

type sessionOptions struct {
	dial    DialFunc
	log     logger.Logger
	metrics *metrics.Metrics
}

// WithDialer replaces the SSH dialer.
func WithDialer(d DialFunc) Option {
	return func(o *sessionOptions) { o.dial = d }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(o *sessionOptions) { o.log = l }
}

// WithMetrics records command latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *sessionOptions) { o.metrics = m }
}

func defaultDial(ctx context.Context, opts sshutil.Options) (sshutil.SSHClient, error) {
	client, err := sshutil.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildOptions(opts []Option) sessionOptions {
	o := sessionOptions{dial: defaultDial, log: logger.Noop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connect opens a session to the configured host. Failures are ErrConnection.
func Connect(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	if cfg.Remote.Mode == config.ModeLocal {
		o.log.Debug("Using local shell transport")
		return newSession(localexec.NewLocalClient(""), cfg.Remote.CommandTimeout, o), nil
	}

	client, err := o.dial(ctx, SSHOptions(cfg, o.log))
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.WrapWithCode(err, errors.ErrConnection,
				"Can't connect to "+cfg.Remote.Host, "Check remote.host and your network")
		}
		return nil, err
	}

	return newSession(client, cfg.Remote.CommandTimeout, o), nil
}

// SSHOptions maps the remote config onto dial options.
func SSHOptions(cfg *config.Config, log logger.Logger) sshutil.Options {
	r := cfg.Remote
	return sshutil.Options{
		Host:           r.Host,
		Port:           r.Port,
		User:           r.User,
		Password:       r.Password,
		IdentityFile:   r.IdentityFile,
		UseAgent:       r.UseAgent,
		SSHConfigPath:  r.SSHConfig,
		HostKeyPolicy:  r.HostKeyPolicy,
		KnownHostsPath: r.KnownHosts,
		Timeout:        r.ConnectTimeout,
		Logger:         log,
	}
}

// NewSession wraps an existing client.
func NewSession(client sshutil.SSHClient, commandTimeout time.Duration, opts ...Option) *Session {
	return newSession(client, commandTimeout, buildOptions(opts))
}

func newSession(client sshutil.SSHClient, commandTimeout time.Duration, o sessionOptions) *Session {
	return &Session{
		client:         client,
		commandTimeout: commandTimeout,
		log:            o.log,
		metrics:        o.metrics,
	}
}

// Host returns the host the session is connected to.
func (s *Session) Host() string {
	if s == nil || s.client == nil {
		return ""
	}
	return s.client.GetHost()
}

// Run executes cmd with optional stdin, bounded by the command timeout.
// Channel failures and timeouts are ErrRemote.
func (s *Session) Run(ctx context.Context, cmd string, stdin io.Reader) (Output, error) {
	if s == nil || s.client == nil {
		return Output{ExitCode: -1}, errors.New(errors.ErrRemote, "No open session", "")
	}

	if s.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, code, err := s.client.ExecInput(ctx, cmd, stdin)
	elapsed := time.Since(start)
	s.metrics.ObserveCommand(elapsed, err)

	if err != nil {
		s.log.Debug("Command failed after %s: %v", elapsed, err)
		if errors.CodeOf(err) == "" {
			err = errors.WrapWithCode(err, errors.ErrRemote, "Remote command failed", "")
		}
		return Output{ExitCode: -1}, err
	}

	out := Output{Stdout: string(stdout), Stderr: string(stderr), ExitCode: code}
	if code != 0 {
		s.log.Debug("Command exited %d after %s: %s", code, elapsed, strings.TrimSpace(out.Stderr))
	} else {
		s.log.Debug("Command ok after %s", elapsed)
	}
	return out, nil
}

// Execute runs cmd and returns stdout and the exit status.
func (s *Session) Execute(ctx context.Context, cmd string) (string, int, error) {
	out, err := s.Run(ctx, cmd, nil)
	return out.Stdout, out.ExitCode, err
}

// ExecuteInput runs cmd with stdin streamed over the channel.
func (s *Session) ExecuteInput(ctx context.Context, cmd string, stdin io.Reader) (string, int, error) {
	out, err := s.Run(ctx, cmd, stdin)
	return out.Stdout, out.ExitCode, err
}

// Close releases the connection. Idempotent and nil-safe.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.closeErr = s.client.Close()
		}
	})
	return s.closeErr
}

// CommandError builds an ErrRemote error for a command that exited non-zero.
func CommandError(what string, out Output) error {
	detail := strings.TrimSpace(out.Stderr)
	if detail == "" {
		detail = "no error output"
	}
	return errors.New(errors.ErrRemote,
		fmt.Sprintf("%s failed with exit status %d: %s", what, out.ExitCode, detail),
		"Check permissions on remote.dir and that the remote shell is POSIX sh")
}
