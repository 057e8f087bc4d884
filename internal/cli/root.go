package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/metrics"
	"github.com/gea-smc/gea/internal/ui"
)

// Global flags
var (
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool
)

// runMetrics collects this invocation's metrics for the textfile output.
var runMetrics = metrics.New()

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "gea",
	Short: "Capture academic records on a remote host",
	Long: `gea appends articles, theses, conferences and funding records to
per-category files on a remote host, notifies by mail after each record,
and reports how many lines every category file holds.

Examples:
  gea append --category article "Título: ..."
  gea append --category thesis --file tesis.txt
  gea stats
  gea doctor`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || os.Getenv("NO_COLOR") != "" || machineMode {
			ui.DisableColors()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gea.yaml or ~/.config/gea/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "machine-readable JSON output")
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	flushMetrics()

	if err == nil {
		return
	}
	var exit exitError
	if stderrors.As(err, &exit) {
		os.Exit(exit.code)
	}
	if machineMode {
		_ = WriteJSONFromError(os.Stdout, err)
	} else {
		printError(os.Stderr, err)
	}
	os.Exit(1)
}

// exitError ends the process with code after the command has already
// reported its own outcome.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// printError renders err for a human. Structured errors already carry
// their own symbol and layout.
func printError(w io.Writer, err error) {
	var geaErr *errors.Error
	if stderrors.As(err, &geaErr) {
		fmt.Fprint(w, ui.ErrorStyle().Render(strings.TrimRight(geaErr.Error(), "\n"))+"\n")
		return
	}

	msg := err.Error()
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			msg = fmt.Sprintf("Unknown command %q. Run 'gea --help' to see the available commands.", name)
		}
	}
	fmt.Fprintln(w, ui.ErrorStyle().Render(ui.SymbolFail+" "+msg))
}

// isUnknownCommandError reports whether cobra rejected the command line itself.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

var unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)

// extractUnknownCommand returns the command name from a cobra unknown-command error.
func extractUnknownCommand(err error) string {
	m := unknownCommandRe.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}

// loadedConfig is the config of the running command, kept for flushMetrics.
var loadedConfig *config.Config

// loadConfig finds, loads and validates the config. An absent file falls
// back to GEA_* environment variables.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrEnv(Config())
	if err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	loadedConfig = cfg
	return cfg, path, nil
}

// newLogger builds the command logger. Logs go to stderr so stdout stays
// parseable; --verbose and --quiet override the configured level.
func newLogger(cfg *config.Config, w io.Writer) logger.Logger {
	lc := logger.Config{Level: "info", Format: "console"}
	if cfg != nil {
		lc = logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	}
	switch {
	case verbose:
		lc.Level = "debug"
	case quiet || machineMode:
		lc.Level = "error"
	}
	l := logger.New(lc, w)
	logger.SetDefault(l)
	return l
}

// flushMetrics writes the metrics textfile when one is configured.
func flushMetrics() {
	if loadedConfig == nil || loadedConfig.Metrics.Textfile == "" {
		return
	}
	if err := runMetrics.WriteTextfile(loadedConfig.Metrics.Textfile); err != nil {
		logger.Default().Warn("Writing metrics to %s: %v", loadedConfig.Metrics.Textfile, err)
	}
}
