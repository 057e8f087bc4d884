package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/lock"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/util"
)

// writeTestName is touched and removed by RemoteWritePermCheck.
const writeTestName = ".gea-write-test"

// ConnectionResult reports the outcome of opening the session the remote
// checks run on.
func ConnectionResult(host string, err error) CheckResult {
	if err != nil {
		return CheckResult{
			Name:       "connection",
			Category:   "REMOTE",
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot connect to %s", host),
			Suggestion: err.Error(),
		}
	}
	return CheckResult{
		Name:     "connection",
		Category: "REMOTE",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Connected to %s", host),
	}
}

// RemoteDirCheck verifies the base directory exists on the remote host.
type RemoteDirCheck struct {
	Dir  string
	Exec remote.Executor
}

func (c *RemoteDirCheck) Name() string     { return "remote_dir" }
func (c *RemoteDirCheck) Category() string { return "REMOTE" }

func (c *RemoteDirCheck) Run(ctx context.Context) CheckResult {
	if c.Exec == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Base directory: no connection",
		}
	}

	out, err := c.Exec.Run(ctx, "test -d "+util.ShellQuotePreserveTilde(c.Dir), nil)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot check directory: %v", err),
			Suggestion: "Check SSH connection",
		}
	}

	if out.ExitCode != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Base directory does not exist: %s", c.Dir),
			Suggestion: "It will be created with the first record, or run 'gea doctor --fix'",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Base directory exists: %s", c.Dir),
	}
}

func (c *RemoteDirCheck) Fix(ctx context.Context) error {
	if c.Exec == nil {
		return fmt.Errorf("no connection")
	}

	out, err := c.Exec.Run(ctx, "mkdir -p -- "+util.ShellQuotePreserveTilde(c.Dir), nil)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return remote.CommandError("Creating "+c.Dir, out)
	}
	return nil
}

// RemoteWritePermCheck verifies write permission to the base directory.
type RemoteWritePermCheck struct {
	Dir  string
	Exec remote.Executor
}

func (c *RemoteWritePermCheck) Name() string     { return "remote_write" }
func (c *RemoteWritePermCheck) Category() string { return "REMOTE" }

func (c *RemoteWritePermCheck) Run(ctx context.Context) CheckResult {
	if c.Exec == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Write permission: no connection",
		}
	}

	dir := util.ShellQuotePreserveTilde(c.Dir)
	testFile := util.ShellQuotePreserveTilde(c.Dir + "/" + writeTestName)
	cmd := fmt.Sprintf("test -d %s || exit 3; touch %s && rm -f %s", dir, testFile, testFile)

	out, err := c.Exec.Run(ctx, cmd, nil)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot test write permission",
			Suggestion: "Check SSH connection",
		}
	}

	switch out.ExitCode {
	case 0:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Write permission: OK",
		}
	case 3:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass, // Directory doesn't exist yet, will be created
			Message: "Write permission: N/A (directory does not exist)",
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    fmt.Sprintf("No write permission to %s", c.Dir),
		Suggestion: "Check directory ownership and permissions on the remote host",
	}
}

func (c *RemoteWritePermCheck) Fix(context.Context) error {
	return nil // Permission issues require manual intervention
}

// CategoryFilesCheck reports which category files exist yet.
type CategoryFilesCheck struct {
	Paths map[record.Category]string
	Exec  remote.Executor
}

func (c *CategoryFilesCheck) Name() string     { return "category_files" }
func (c *CategoryFilesCheck) Category() string { return "REMOTE" }

func (c *CategoryFilesCheck) Run(ctx context.Context) CheckResult {
	if c.Exec == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Category files: no connection",
		}
	}

	var missing []string
	for _, cat := range record.All {
		path := c.Paths[cat]
		out, err := c.Exec.Run(ctx, "test -f "+util.ShellQuotePreserveTilde(path), nil)
		if err != nil {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("Cannot check %s: %v", path, err),
				Suggestion: "Check SSH connection",
			}
		}
		if out.ExitCode != 0 {
			missing = append(missing, cat.String())
		}
	}

	present := len(record.All) - len(missing)
	msg := fmt.Sprintf("%d of %d category files exist", present, len(record.All))
	if len(missing) > 0 {
		msg += "; created on first record: " + util.JoinOrNone(missing)
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: msg,
	}
}

func (c *CategoryFilesCheck) Fix(context.Context) error {
	return nil
}

// RemoteStaleLockCheck looks for locks left behind by crashed writers.
type RemoteStaleLockCheck struct {
	Paths      map[record.Category]string
	Exec       remote.Executor
	LockConfig config.LockConfig
}

func (c *RemoteStaleLockCheck) Name() string     { return "remote_locks" }
func (c *RemoteStaleLockCheck) Category() string { return "REMOTE" }

func (c *RemoteStaleLockCheck) stale(ctx context.Context) (map[string]*lock.LockInfo, error) {
	found := make(map[string]*lock.LockInfo)
	for _, cat := range record.All {
		path := c.Paths[cat]
		info, err := lock.Holder(ctx, c.Exec, path)
		if err != nil {
			return nil, err
		}
		if info == nil {
			// A lock directory without an info file has no live holder to wait for.
			locked, err := lock.Locked(ctx, c.Exec, path)
			if err != nil {
				return nil, err
			}
			if locked {
				found[path] = nil
			}
			continue
		}
		if lock.IsStale(info, c.LockConfig.Stale) {
			found[path] = info
		}
	}
	return found, nil
}

func (c *RemoteStaleLockCheck) Run(ctx context.Context) CheckResult {
	if c.Exec == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass, // Can't check without connection
			Message: "Lock check: no connection",
		}
	}

	if !c.LockConfig.Enabled {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Locking disabled",
		}
	}

	stale, err := c.stale(ctx)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Cannot check locks",
		}
	}

	if len(stale) > 0 {
		var desc []string
		for path, info := range stale {
			if info == nil {
				desc = append(desc, lock.Dir(path)+" (holder unknown)")
				continue
			}
			desc = append(desc, fmt.Sprintf("%s (held by %s for %s)",
				lock.Dir(path), info.User, formatDuration(info.Age())))
		}
		sort.Strings(desc)
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    util.CountNoun(len(stale), "stale lock", "stale locks") + " found",
			Suggestion: "Stale locks: " + strings.Join(desc, ", ") + "\nRemove with: gea doctor --fix or gea unlock <category>",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "No stale locks found",
	}
}

func (c *RemoteStaleLockCheck) Fix(ctx context.Context) error {
	if c.Exec == nil {
		return fmt.Errorf("no connection")
	}

	stale, err := c.stale(ctx)
	if err != nil {
		return err
	}
	for path, info := range stale {
		var err error
		if info == nil {
			err = lock.ForceBreak(ctx, c.Exec, path)
		} else {
			err = lock.Break(ctx, c.Exec, path, info)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// NewLocalChecks creates the checks that need no connection.
func NewLocalChecks(configPath string, cfg *config.Config, loadErr error) []Check {
	checks := []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigSchemaCheck{Config: cfg, LoadErr: loadErr},
	}
	if cfg == nil {
		return checks
	}
	return append(checks,
		&NotifyCheck{Config: cfg},
		&SSHAuthCheck{Remote: cfg.Remote},
		&KnownHostsCheck{Remote: cfg.Remote},
	)
}

// NewRemoteChecks creates all remote checks run over ex.
func NewRemoteChecks(cfg *config.Config, ex remote.Executor) []Check {
	paths := cfg.Paths()
	return []Check{
		&RemoteDirCheck{Dir: cfg.Remote.Dir, Exec: ex},
		&RemoteWritePermCheck{Dir: cfg.Remote.Dir, Exec: ex},
		&CategoryFilesCheck{Paths: paths, Exec: ex},
		&RemoteStaleLockCheck{Paths: paths, Exec: ex, LockConfig: cfg.Lock},
	}
}
