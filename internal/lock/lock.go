// Package lock implements a per-file advisory lock on the remote host.
// mkdir is the atomic primitive: it fails if the lock directory exists.
package lock

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/util"
)

// Suffix is appended to a file path to name its lock directory.
const Suffix = ".lock"

const infoName = "info.json"

// cleanupTimeout bounds removal of a half-created lock after a failed write.
const cleanupTimeout = 10 * time.Second

// Exit codes of the acquire script.
const (
	exitHeld     = 1
	exitNoParent = 2
)

// Handle is a held lock.
type Handle interface {
	Release(ctx context.Context) error
}

// Locker acquires the lock guarding one remote file.
type Locker interface {
	Acquire(ctx context.Context, ex remote.Executor, path string) (Handle, error)
}

// Manager acquires locks with the configured timeouts.
type Manager struct {
	cfg     config.LockConfig
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ Locker = (*Manager)(nil)

// NewManager returns a lock manager. log and m may be nil.
func NewManager(cfg config.LockConfig, log logger.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logger.Noop()
	}
	return &Manager{cfg: cfg, log: log, metrics: m, now: time.Now}
}

// Lock is an acquired lock on a remote file.
type Lock struct {
	Dir  string    // The lock directory path on the remote
	Info *LockInfo // Info about the lock holder (us)
	ex   remote.Executor
}

// Dir returns the lock directory guarding path.
func Dir(path string) string {
	return path + Suffix
}

// Acquire takes the lock for path, waiting up to the configured timeout.
// Locks older than the stale threshold are removed and retried immediately.
func (m *Manager) Acquire(ctx context.Context, ex remote.Executor, path string) (Handle, error) {
	if ex == nil {
		return nil, errors.New(errors.ErrLock,
			"Cannot acquire lock: no connection",
			"Establish a session first")
	}

	lockDir := Dir(path)
	infoFile := lockDir + "/" + infoName
	info := NewLockInfo(path)

	acquireCmd := fmt.Sprintf("mkdir -p -- %s || exit %d; mkdir -- %s 2>/dev/null || exit %d",
		util.ShellQuotePreserveTilde(util.RemoteDir(path)), exitNoParent,
		util.ShellQuotePreserveTilde(lockDir), exitHeld)

	deadline := m.now().Add(m.cfg.Timeout)
	contended := false

	for {
		out, err := ex.Run(ctx, acquireCmd, nil)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrLock,
				"Failed to run lock command for "+path, "Check the connection to the remote host")
		}

		switch out.ExitCode {
		case 0:
			if err := m.writeInfo(ctx, ex, lockDir, infoFile, info); err != nil {
				return nil, err
			}
			m.metrics.RecordLock("acquired")
			m.log.Debug("Acquired lock %s", lockDir)
			return &Lock{Dir: lockDir, Info: info, ex: ex}, nil

		case exitNoParent:
			return nil, errors.New(errors.ErrLock,
				"Cannot create directory for "+path+": "+strings.TrimSpace(out.Stderr),
				"Check permissions on remote.dir")

		case exitHeld:
		default:
			return nil, remote.CommandError("Lock", out)
		}

		holder, _ := readInfo(ctx, ex, infoFile)
		if IsStale(holder, m.cfg.Stale) {
			m.log.Warn("Removing stale lock %s held by %s", lockDir, holder)
			if err := removeIfOwner(ctx, ex, lockDir, infoFile, holder.ID); err == nil {
				m.metrics.RecordLock("stale_removed")
				continue
			}
		}

		if !contended {
			contended = true
			m.metrics.RecordLock("contended")
			m.log.Info("Waiting for lock on %s (held by %s)", path, describe(holder))
		}

		if !m.now().Add(m.cfg.RetryInterval).Before(deadline) {
			m.metrics.RecordLock("timeout")
			return nil, errors.New(errors.ErrLock,
				fmt.Sprintf("Timed out waiting for lock on %s after %s", path, m.cfg.Timeout),
				fmt.Sprintf("Lock held by: %s. Wait for it to finish, or remove %s if the holder is gone.", describe(holder), lockDir))
		}

		select {
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrLock, "Cancelled while waiting for lock on "+path, "")
		case <-time.After(m.cfg.RetryInterval):
		}
	}
}

func (m *Manager) writeInfo(ctx context.Context, ex remote.Executor, lockDir, infoFile string, info *LockInfo) error {
	data, err := info.Marshal()
	if err == nil {
		var out remote.Output
		out, err = ex.Run(ctx, "cat > "+util.ShellQuotePreserveTilde(infoFile), bytes.NewReader(data))
		if err == nil && out.ExitCode != 0 {
			err = remote.CommandError("Writing lock info", out)
		}
	}
	if err != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		_, _ = ex.Run(cctx, "rm -rf -- "+util.ShellQuotePreserveTilde(lockDir), nil)
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to write lock info file",
			"Check disk space and permissions on remote.dir")
	}
	return nil
}

// Release removes the lock directory if it still carries our id.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.ex == nil {
		return nil
	}
	err := removeIfOwner(ctx, l.ex, l.Dir, l.Dir+"/"+infoName, l.Info.ID)
	l.ex = nil
	return err
}

// Holder reports who holds the lock for path, or nil when it is free.
func Holder(ctx context.Context, ex remote.Executor, path string) (*LockInfo, error) {
	return readInfo(ctx, ex, Dir(path)+"/"+infoName)
}

// Break removes the lock for path if it is still held by holder.
// A lock taken over by someone else in the meantime is left in place.
func Break(ctx context.Context, ex remote.Executor, path string, holder *LockInfo) error {
	if holder == nil {
		return nil
	}
	lockDir := Dir(path)
	return removeIfOwner(ctx, ex, lockDir, lockDir+"/"+infoName, holder.ID)
}

// Locked reports whether the lock directory for path exists, with or
// without a readable info file.
func Locked(ctx context.Context, ex remote.Executor, path string) (bool, error) {
	out, err := ex.Run(ctx, "test -d "+util.ShellQuotePreserveTilde(Dir(path)), nil)
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0, nil
}

// ForceBreak removes the lock directory for path whoever holds it.
func ForceBreak(ctx context.Context, ex remote.Executor, path string) error {
	out, err := ex.Run(ctx, "rm -rf -- "+util.ShellQuotePreserveTilde(Dir(path)), nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to remove lock directory "+Dir(path), "Check the connection to the remote host")
	}
	if out.ExitCode != 0 {
		return remote.CommandError("Removing lock", out)
	}
	return nil
}

// IsStale reports whether info is older than the stale threshold.
// A zero threshold never treats a lock as stale.
func IsStale(info *LockInfo, stale time.Duration) bool {
	return info != nil && stale > 0 && info.Age() > stale
}

func readInfo(ctx context.Context, ex remote.Executor, infoFile string) (*LockInfo, error) {
	out, err := ex.Run(ctx, "cat -- "+util.ShellQuotePreserveTilde(infoFile)+" 2>/dev/null", nil)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, nil
	}
	return ParseLockInfo([]byte(out.Stdout))
}

// removeIfOwner deletes lockDir only if its info file still names id.
func removeIfOwner(ctx context.Context, ex remote.Executor, lockDir, infoFile, id string) error {
	cmd := fmt.Sprintf("if grep -q -F -- %s %s 2>/dev/null; then rm -rf -- %s; else exit 4; fi",
		util.ShellQuote(id), util.ShellQuotePreserveTilde(infoFile), util.ShellQuotePreserveTilde(lockDir))

	out, err := ex.Run(ctx, cmd, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Failed to remove lock directory "+lockDir, "Check the connection to the remote host")
	}
	switch out.ExitCode {
	case 0:
		return nil
	case 4:
		return errors.New(errors.ErrLock,
			"Lock "+lockDir+" is no longer ours",
			"Another process removed it as stale; check lock.stale is longer than an append takes")
	}
	return remote.CommandError("Removing lock", out)
}

func describe(info *LockInfo) string {
	if info == nil {
		return "unknown"
	}
	return info.String()
}
