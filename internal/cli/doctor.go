package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/doctor"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/ui"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Fix     bool
	Connect ConnectFlags
	In      *os.File
	Out     io.Writer
	Err     io.Writer

	// connect replaces remote.Connect in tests.
	connect func(ctx context.Context, cfg *config.Config) (*remote.Session, error)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Fixed      []string         `json:"fixed,omitempty"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand implements the doctor command logic.
func doctorCommand(ctx context.Context, opts DoctorOptions) error {
	cfgPath, _ := config.Find(Config())

	// Load errors are reported by the schema check rather than returned.
	var cfg *config.Config
	var loadErr error
	if cfgPath != "" {
		cfg, loadErr = config.Load(cfgPath)
	} else {
		cfg, loadErr = config.LoadFromEnv()
	}
	if cfg != nil {
		loadedConfig = cfg
	}
	newLogger(cfg, opts.Err)

	checks := doctor.NewLocalChecks(Config(), cfg, loadErr)
	results := doctor.RunAll(ctx, checks)

	var connResult *doctor.CheckResult
	if cfg != nil && loadErr == nil && config.Validate(cfg) == nil {
		if err := opts.Connect.Apply(cfg, opts.In, opts.Err); err != nil {
			return err
		}
		sess, r := connectForDoctor(ctx, cfg, opts)
		connResult = &r
		if sess != nil {
			defer sess.Close()
			remoteChecks := doctor.NewRemoteChecks(cfg, sess)
			checks = append(checks, remoteChecks...)
			results = append(results, doctor.RunAll(ctx, remoteChecks)...)
		}
	}

	var fixed []string
	if opts.Fix {
		var err error
		fixed, err = doctor.FixAll(ctx, checks, results)
		if err != nil {
			fmt.Fprintf(opts.Err, "%s %v\n", ui.ErrorStyle().Render(ui.SymbolFail), err)
		}
		if len(fixed) > 0 {
			results = doctor.RunAll(ctx, checks)
		}
	}

	if connResult != nil {
		results = insertConnection(results, *connResult)
	}

	if machineMode {
		if err := WriteJSONSuccess(opts.Out, buildDoctorOutput(results, fixed)); err != nil {
			return err
		}
	} else {
		renderDoctorText(opts.Out, results, fixed, opts.Fix)
	}

	if doctor.HasFailures(results) {
		return exitError{code: 1}
	}
	return nil
}

// connectForDoctor opens the session for the remote checks. The returned
// result describes the attempt either way.
func connectForDoctor(ctx context.Context, cfg *config.Config, opts DoctorOptions) (*remote.Session, doctor.CheckResult) {
	connect := opts.connect
	if connect == nil {
		connect = func(ctx context.Context, cfg *config.Config) (*remote.Session, error) {
			return remote.Connect(ctx, cfg, remote.WithMetrics(runMetrics))
		}
	}

	host := cfg.Remote.Host
	if cfg.Remote.Mode == config.ModeLocal {
		host = "local shell"
	}

	var spinner *ui.Spinner
	if !quiet && !machineMode {
		spinner = ui.NewSpinner(opts.Err, "Connecting to "+host, ui.IsTerminal(os.Stderr))
		spinner.Start()
	}

	sess, err := connect(ctx, cfg)
	if spinner != nil {
		if err != nil {
			spinner.Fail()
		} else {
			spinner.Success()
		}
	}
	return sess, doctor.ConnectionResult(host, err)
}

// insertConnection places the connection result first among the REMOTE results.
func insertConnection(results []doctor.CheckResult, conn doctor.CheckResult) []doctor.CheckResult {
	out := make([]doctor.CheckResult, 0, len(results)+1)
	inserted := false
	for _, r := range results {
		if !inserted && r.Category == conn.Category {
			out = append(out, conn)
			inserted = true
		}
		out = append(out, r)
	}
	if !inserted {
		out = append(out, conn)
	}
	return out
}

func buildDoctorOutput(results []doctor.CheckResult, fixed []string) DoctorOutput {
	order, grouped := doctor.GroupByCategory(results)
	output := DoctorOutput{
		Categories: make([]CategoryOutput, 0, len(order)),
		Fixed:      fixed,
	}
	for _, cat := range order {
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0,
	}
	return output
}

// renderDoctorText outputs results in human-readable format.
func renderDoctorText(w io.Writer, results []doctor.CheckResult, fixed []string, fixRequested bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.HeaderStyle().Render("gea Diagnostic Report"))
	fmt.Fprintln(w)

	order, grouped := doctor.GroupByCategory(results)
	for _, cat := range order {
		fmt.Fprintln(w, ui.HeaderStyle().Render(cat))
		for _, r := range grouped[cat] {
			renderCheckResult(w, r)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, ui.FormatDivider(60))
	fmt.Fprintln(w)

	for _, name := range fixed {
		fmt.Fprintf(w, "%s Fixed %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), name)
	}

	summary := doctor.Summary(results)
	counts := doctor.CountByStatus(results)
	if counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0 {
		fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), summary)
	} else {
		fmt.Fprintf(w, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), summary)
		if doctor.FixableCount(results) > 0 && !fixRequested {
			fmt.Fprintf(w, "\n  Run with %s to attempt automatic fixes where possible.\n",
				ui.MutedStyle().Render("--fix"))
		}
	}
	fmt.Fprintln(w)
}

// renderCheckResult renders a single check result.
func renderCheckResult(w io.Writer, r doctor.CheckResult) {
	var symbol string
	var style lipgloss.Style

	switch r.Status {
	case doctor.StatusPass:
		symbol, style = ui.SymbolComplete, ui.SuccessStyle()
	case doctor.StatusWarn:
		symbol, style = ui.SymbolComplete, ui.WarningStyle()
	default:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), r.Message)

	if r.Suggestion != "" && r.Status != doctor.StatusPass {
		for _, line := range strings.Split(strings.TrimSpace(r.Suggestion), "\n") {
			fmt.Fprintf(w, "    %s\n", ui.MutedStyle().Render(line))
		}
	}
}
