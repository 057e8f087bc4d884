// Package exec runs the remote command protocol through a local /bin/sh.
// It backs remote.mode "local" and the shell handler of the test SSH server.
package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/pkg/sshutil"
)

// Shell is the interpreter used for every command. The command protocol is
// POSIX sh, so the user's $SHELL is deliberately not consulted.
const Shell = "/bin/sh"

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// children after the shell itself was killed.
const waitDelay = time.Second

// ExecuteLocal runs a command locally, streaming output to the provided writers.
// Returns the exit code and any execution error. A non-zero exit is not an error.
func ExecuteLocal(ctx context.Context, cmd, workDir string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	command := exec.CommandContext(ctx, Shell, "-c", cmd)
	command.WaitDelay = waitDelay

	if workDir != "" {
		command.Dir = workDir
	}

	command.Stdin = stdin
	command.Stdout = stdout
	command.Stderr = stderr

	runErr := command.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return -1, errors.WrapWithCode(ctxErr, errors.ErrRemote,
				"Local command timed out",
				"Raise remote.command_timeout if the disk is slow")
		}
		return -1, errors.WrapWithCode(ctxErr, errors.ErrRemote, "Local command cancelled", "")
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.WrapWithCode(runErr, errors.ErrRemote,
			"Couldn't run the command locally",
			"Make sure "+Shell+" exists and is executable.")
	}

	return 0, nil
}

// LocalClient satisfies sshutil.SSHClient by running commands through the local shell.
type LocalClient struct {
	workDir string

	mu     sync.Mutex
	closed bool
}

var _ sshutil.SSHClient = (*LocalClient)(nil)

// NewLocalClient returns a client whose commands run in workDir (the process cwd when empty).
func NewLocalClient(workDir string) *LocalClient {
	return &LocalClient{workDir: workDir}
}

// Exec runs a command and captures its output.
func (c *LocalClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return c.ExecInput(ctx, cmd, nil)
}

// ExecInput runs a command with stdin and captures its output.
func (c *LocalClient) ExecInput(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, -1, errors.New(errors.ErrRemote, "Local session is closed", "")
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = ExecuteLocal(ctx, cmd, c.workDir, stdin, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Close marks the client closed. Safe to call more than once.
func (c *LocalClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// GetHost returns "localhost".
func (c *LocalClient) GetHost() string {
	return "localhost"
}

// GetAddress returns "local".
func (c *LocalClient) GetAddress() string {
	return "local"
}
