package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	"golang.org/x/crypto/ssh"
)

// killGrace is how long a cancelled session gets to wind down before the
// whole connection is torn down.
const killGrace = 2 * time.Second

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return c.ExecInput(ctx, cmd, nil)
}

// ExecInput runs a command with stdin streamed over the channel.
func (c *Client) ExecInput(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, cancelledError(err)
	}

	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrRemote,
			"Failed to create SSH session",
			"Connection may have been closed. Try again.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		select {
		case <-done:
		case <-time.After(killGrace):
			// Peer stopped answering; dropping the connection unblocks Run.
			_ = c.Client.Close()
			<-done
		}
		return nil, nil, -1, cancelledError(ctx.Err())
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrRemote,
			"Remote command failed before reporting an exit status",
			"The connection may have dropped. Try again.")
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}

func cancelledError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapWithCode(err, errors.ErrRemote,
			"Remote command timed out",
			"Raise remote.command_timeout if the server is slow")
	}
	return errors.WrapWithCode(err, errors.ErrRemote, "Remote command cancelled", "")
}
