package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gea-smc/gea/internal/capture"
	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/ui"
)

// AppendOptions holds options for the append command.
type AppendOptions struct {
	Category string   // Category key, code or label; asked for when empty
	Args     []string // Content given on the command line
	File     string   // Content file, "-" for stdin
	Template bool     // Prefill the form with the category template
	NoNotify bool
	Connect  ConnectFlags

	In  *os.File
	Out io.Writer
	Err io.Writer

	// interactive overrides terminal detection in tests.
	interactive *bool
	// prompt replaces the huh form in tests.
	prompt func(cat *record.Category, content *string, prefill bool) error
}

// AppendOutput is the --json result of the append command.
type AppendOutput struct {
	Category    record.Category `json:"category"`
	Label       string          `json:"label"`
	Path        string          `json:"path"`
	Timestamp   time.Time       `json:"timestamp"`
	Notified    bool            `json:"notified"`
	NotifyError string          `json:"notify_error,omitempty"`
}

// appendCommand resolves the category and content, then saves the record.
func appendCommand(ctx context.Context, opts AppendOptions) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, opts.Err)

	cat, content, err := resolveRecord(opts)
	if err != nil {
		return err
	}

	if err := opts.Connect.Apply(cfg, opts.In, opts.Err); err != nil {
		return err
	}

	svcOpts := []capture.Option{
		capture.WithLogger(log),
		capture.WithMetrics(runMetrics),
	}
	if opts.NoNotify {
		svcOpts = append(svcOpts, capture.WithNotifier(nil))
	}

	var pd *ui.PhaseDisplay
	if !quiet && !machineMode {
		pd = ui.NewPhaseDisplay(opts.Err, ui.IsTerminal(os.Stderr)).Soft(capture.PhaseNotify)
		svcOpts = append(svcOpts, capture.WithObserver(pd))
	}

	res, err := capture.New(cfg, svcOpts...).Submit(ctx, cat, content)
	if err != nil {
		return err
	}

	if machineMode {
		out := AppendOutput{
			Category:  cat,
			Label:     cat.Label(),
			Path:      res.Path,
			Timestamp: res.Entry.Timestamp(),
			Notified:  res.Notified,
		}
		if res.NotifyErr != nil {
			out.NotifyError = res.NotifyErr.Error()
		}
		return WriteJSONSuccess(opts.Out, out)
	}

	if pd != nil && !res.Notified && res.NotifyErr == nil {
		pd.RenderSkipped(capture.PhaseNotify, skipReason(cfg, opts.NoNotify))
	}
	renderAppendResult(opts.Out, res)
	return nil
}

// resolveRecord works out the category and content from flags, input
// sources and, on a terminal, the interactive form.
func resolveRecord(opts AppendOptions) (record.Category, string, error) {
	var cat record.Category
	if opts.Category != "" {
		c, err := record.ParseCategory(opts.Category)
		if err != nil {
			return 0, "", err
		}
		cat = c
	}

	content, ok, err := readContent(opts.Args, opts.File, opts.In)
	if err != nil {
		return 0, "", err
	}

	interactive := ui.Interactive()
	if opts.interactive != nil {
		interactive = *opts.interactive
	}

	if !ok && !interactive && opts.In != nil && !ui.IsTerminal(opts.In) {
		// Piped input without --file - behaves like --file -.
		content, ok, err = readContent(nil, "-", opts.In)
		if err != nil {
			return 0, "", err
		}
	}

	if cat != 0 && ok {
		return cat, content, nil
	}
	if !interactive || machineMode {
		if cat == 0 {
			return 0, "", errors.Validation(
				"No category given",
				"Pass --category with one of: "+joinKeys())
		}
		return 0, "", errors.Validation(
			"No record content given",
			"Pass the content as an argument, with --file, or run in a terminal for the form")
	}

	prompt := opts.prompt
	if prompt == nil {
		prompt = promptRecord
	}
	if ok {
		// Content is settled; only the category is missing.
		if err := prompt(&cat, nil, false); err != nil {
			return 0, "", err
		}
		return cat, content, nil
	}
	if err := prompt(&cat, &content, opts.Template); err != nil {
		return 0, "", err
	}
	return cat, content, nil
}

func skipReason(cfg *config.Config, noNotify bool) string {
	switch {
	case noNotify:
		return "--no-notify"
	case !cfg.NotificationsEnabled():
		return "not configured"
	}
	return ""
}

func renderAppendResult(w io.Writer, res *capture.Result) {
	c := res.Entry.Category()
	fmt.Fprintf(w, "%s Saved %s record to %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), c.Label(), res.Path)
	fmt.Fprintf(w, "  %s\n", ui.MutedStyle().Render(res.Entry.Header()))

	if res.NotifyErr != nil {
		fmt.Fprintf(w, "%s The record is saved, but the notification failed:\n", ui.WarningStyle().Render(ui.SymbolWarning))
		fmt.Fprintf(w, "  %s\n", ui.MutedStyle().Render(firstLine(res.NotifyErr)))
	}
}
