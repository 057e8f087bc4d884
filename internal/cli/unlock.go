package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/lock"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/ui"
	"github.com/gea-smc/gea/internal/util"
)

// UnlockOptions holds options for the unlock command.
type UnlockOptions struct {
	Category string // Category to unlock (empty with All)
	All      bool   // Check every category
	Yes      bool   // Skip the confirmation
	Connect  ConnectFlags
	In       *os.File
	Out      io.Writer
	Err      io.Writer

	// confirm replaces the huh prompt in tests.
	confirm func(title string) (bool, error)
}

// UnlockOutput is the --json result of the unlock command.
type UnlockOutput struct {
	Released []UnlockedLock `json:"released"`
	Free     []string       `json:"free"`
}

// UnlockedLock describes one removed lock.
type UnlockedLock struct {
	Category string         `json:"category"`
	Holder   *lock.LockInfo `json:"holder"`
}

type unlockResult int

const (
	unlockResultReleased unlockResult = iota
	unlockResultNotLocked
	unlockResultKept
)

// unlockCommand removes the lock of one or every category file.
func unlockCommand(ctx context.Context, opts UnlockOptions) error {
	cats, err := unlockTargets(opts)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, opts.Err)
	if err := opts.Connect.Apply(cfg, opts.In, opts.Err); err != nil {
		return err
	}

	sess, err := remote.Connect(ctx, cfg, remote.WithLogger(log), remote.WithMetrics(runMetrics))
	if err != nil {
		return err
	}
	defer sess.Close()

	return unlockCategories(ctx, sess, cfg, cats, opts)
}

func unlockTargets(opts UnlockOptions) ([]record.Category, error) {
	switch {
	case opts.All && opts.Category != "":
		return nil, errors.Validation(
			"--all and a category cannot be used together",
			"Pass either a category or --all")
	case opts.All:
		return record.All, nil
	case opts.Category == "":
		return nil, errors.Validation(
			"No category given",
			"Pass one of: "+joinKeys()+", or --all")
	}
	c, err := record.ParseCategory(opts.Category)
	if err != nil {
		return nil, err
	}
	return []record.Category{c}, nil
}

// unlockCategories breaks the lock of each category over ex.
func unlockCategories(ctx context.Context, ex remote.Executor, cfg *config.Config, cats []record.Category, opts UnlockOptions) error {
	ask := opts.confirm
	if ask == nil {
		ask = confirm
	}
	canAsk := !opts.Yes && !machineMode && (opts.confirm != nil || ui.Interactive())

	var out UnlockOutput
	var released, free, kept int

	for _, c := range cats {
		path := cfg.Path(c)
		// An unreadable info file is handled like a missing one.
		holder, _ := lock.Holder(ctx, ex, path)

		result, err := unlockOne(ctx, ex, path, holder, cfg.Lock, canAsk, ask, opts.Out)
		if err != nil {
			return err
		}
		switch result {
		case unlockResultReleased:
			released++
			out.Released = append(out.Released, UnlockedLock{Category: c.String(), Holder: holder})
		case unlockResultNotLocked:
			free++
			out.Free = append(out.Free, c.String())
		case unlockResultKept:
			kept++
		}
	}

	if machineMode {
		return WriteJSONSuccess(opts.Out, out)
	}

	if len(cats) > 1 {
		fmt.Fprintln(opts.Out)
		fmt.Fprintf(opts.Out, "Released %s, %s free",
			util.CountNoun(released, "lock", "locks"), util.CountNoun(free, "file", "files"))
		if kept > 0 {
			fmt.Fprintf(opts.Out, ", %d kept", kept)
		}
		fmt.Fprintln(opts.Out)
	}
	return nil
}

func unlockOne(ctx context.Context, ex remote.Executor, path string, holder *lock.LockInfo, lockCfg config.LockConfig,
	canAsk bool, ask func(string) (bool, error), w io.Writer) (unlockResult, error) {
	human := !machineMode

	if holder == nil {
		locked, err := lock.Locked(ctx, ex, path)
		if err != nil {
			return 0, errors.WrapWithCode(err, errors.ErrLock,
				"Couldn't check the lock of "+path, "Check the connection to the remote host")
		}
		if !locked {
			if human {
				fmt.Fprintf(w, "%s %s: no lock held\n", ui.MutedStyle().Render(ui.SymbolPending), path)
			}
			return unlockResultNotLocked, nil
		}
		// No info file: the holder died between creating the lock and describing it.
		if err := lock.ForceBreak(ctx, ex, path); err != nil {
			return 0, err
		}
		if human {
			fmt.Fprintf(w, "%s %s: lock released (holder unknown)\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
		}
		return unlockResultReleased, nil
	}

	if canAsk && !lock.IsStale(holder, lockCfg.Stale) {
		ok, err := ask(fmt.Sprintf("%s is locked by %s and the lock is recent. Remove it anyway?", path, holder))
		if err != nil {
			return 0, err
		}
		if !ok {
			if human {
				fmt.Fprintf(w, "%s %s: lock kept\n", ui.WarningStyle().Render(ui.SymbolSkipped), path)
			}
			return unlockResultKept, nil
		}
	}

	if err := lock.Break(ctx, ex, path, holder); err != nil {
		return 0, err
	}
	if human {
		fmt.Fprintf(w, "%s %s: lock released (was held by %s)\n",
			ui.SuccessStyle().Render(ui.SymbolSuccess), path, holder)
	}
	return unlockResultReleased, nil
}
