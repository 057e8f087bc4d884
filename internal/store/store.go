// Package store creates category files on the remote host and appends
// record blocks to them. Record content only ever travels over stdin.
package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/util"
)

// Exit codes of the store scripts.
const (
	exitNoDir      = 2
	exitCreate     = 3
	exitIsDir      = 5
	exitShort      = 3
	exitIncomplete = 4
)

// Store writes to category files through a remote executor.
type Store struct {
	log logger.Logger
}

// New returns a Store. log may be nil.
func New(log logger.Logger) *Store {
	if log == nil {
		log = logger.Noop()
	}
	return &Store{log: log}
}

// ensureScript creates the parent directory, then creates the file with the
// creation marker. The marker goes to a temp file that is hard linked into
// place, so the file never exists without it. ln fails if another writer got
// there first, and that file is left alone.
func ensureScript(path string) string {
	p := util.ShellQuotePreserveTilde(path)
	dir := util.ShellQuotePreserveTilde(util.RemoteDir(path))
	tmpl := util.ShellQuotePreserveTilde(path + ".XXXXXX")
	marker := util.ShellQuote(record.CreationMarker)

	return fmt.Sprintf(
		"mkdir -p -- %[1]s || exit %[5]d; "+
			"if [ -d %[2]s ]; then echo 'target is a directory' >&2; exit %[6]d; fi; "+
			"[ -e %[2]s ] && exit 0; "+
			"tmp=$(mktemp %[3]s) || exit %[7]d; "+
			"trap 'rm -f -- \"$tmp\"' EXIT; "+
			"printf '%%s\\n' %[4]s > \"$tmp\" || exit %[7]d; "+
			"chmod 644 \"$tmp\"; "+
			"if ln -- \"$tmp\" %[2]s 2>/dev/null; then echo created; "+
			"elif [ ! -e %[2]s ]; then echo 'cannot create file' >&2; exit %[7]d; fi",
		dir, p, tmpl, marker, exitNoDir, exitIsDir, exitCreate)
}

// appendScript receives the block on stdin into a temp file next to the
// target, checks its size, and only then appends it.
func appendScript(path string, size int) string {
	p := util.ShellQuotePreserveTilde(path)
	tmpl := util.ShellQuotePreserveTilde(path + ".XXXXXX")

	return fmt.Sprintf(
		"tmp=$(mktemp %[2]s) || exit %[4]d; "+
			"trap 'rm -f -- \"$tmp\"' EXIT; "+
			"cat > \"$tmp\" || exit %[4]d; "+
			"got=$(wc -c < \"$tmp\" | tr -d ' '); "+
			"if [ \"$got\" -ne %[3]d ]; then echo \"short transfer: $got of %[3]d bytes\" >&2; exit %[5]d; fi; "+
			"before=$(wc -c 2>/dev/null < %[1]s | tr -d ' '); before=${before:-0}; "+
			"cat -- \"$tmp\" >> %[1]s || exit %[6]d; "+
			"after=$(wc -c < %[1]s | tr -d ' '); "+
			"if [ $((after - before)) -lt %[3]d ]; then echo \"append incomplete\" >&2; exit %[6]d; fi",
		p, tmpl, size, exitNoDir, exitShort, exitIncomplete)
}

// EnsureFile makes sure the file at path exists, creating it with the
// creation marker if it does not. An existing file is never modified.
func (s *Store) EnsureFile(ctx context.Context, ex remote.Executor, path string) error {
	out, err := ex.Run(ctx, ensureScript(path), nil)
	if err != nil {
		return err
	}

	switch out.ExitCode {
	case 0:
		if strings.TrimSpace(out.Stdout) == "created" {
			s.log.Info("Created %s", path)
		}
		return nil
	case exitNoDir:
		return errors.New(errors.ErrRemote,
			"Cannot create directory for "+path+": "+strings.TrimSpace(out.Stderr),
			"Check that remote.dir is writable by remote.user")
	case exitIsDir:
		return errors.New(errors.ErrRemote,
			path+" is a directory",
			"Point files.<category> at a regular file name")
	}
	return remote.CommandError("Creating "+path, out)
}

// Append adds the entry's block to the end of the file at path.
// Nothing is appended unless the whole block reached the remote host.
func (s *Store) Append(ctx context.Context, ex remote.Executor, path string, entry record.Entry) error {
	block := entry.Block()

	out, err := ex.Run(ctx, appendScript(path, len(block)), bytes.NewReader(block))
	if err != nil {
		return err
	}

	switch out.ExitCode {
	case 0:
		s.log.Debug("Appended %d bytes to %s", len(block), path)
		return nil
	case exitShort:
		return errors.New(errors.ErrRemote,
			"Record transfer to "+path+" was incomplete; nothing was appended",
			"Try again. "+strings.TrimSpace(out.Stderr))
	case exitIncomplete:
		return errors.New(errors.ErrRemote,
			"Append to "+path+" may be incomplete: "+strings.TrimSpace(out.Stderr),
			"Check free disk space on the remote host and inspect the end of the file")
	}
	return remote.CommandError("Appending to "+path, out)
}
