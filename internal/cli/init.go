package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/ui"
)

// defaultRemoteDir is suggested when no directory is given.
const defaultRemoteDir = "~/registros"

// InitOptions holds options for the init command.
type InitOptions struct {
	Host           string // Pre-specified SSH host/alias
	User           string // Pre-specified remote user
	Dir            string // Pre-specified remote directory
	Path           string // Output path, ./gea.yaml when empty
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts and the connection test
	Out            io.Writer
}

// Init creates a new gea.yaml configuration file.
func Init(ctx context.Context, opts InitOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	configPath := opts.Path
	if configPath == "" {
		configPath = filepath.Join(".", config.ConfigFileName)
	}

	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}
		overwrite, err := confirm(fmt.Sprintf("Config file '%s' already exists. Overwrite?", configPath))
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(opts.Out, "Cancelled.")
			return nil
		}
	}

	host, user, dir := opts.Host, opts.User, opts.Dir
	if opts.NonInteractive {
		if host == "" {
			return errors.New(errors.ErrConfig,
				"SSH host is required in non-interactive mode",
				"Provide --host or run interactively")
		}
		if dir == "" {
			dir = defaultRemoteDir
		}
	} else if err := promptInit(&host, &user, &dir); err != nil {
		return err
	}

	cfg := config.SampleConfig(strings.TrimSpace(host), strings.TrimSpace(user), strings.TrimSpace(dir))

	if !opts.NonInteractive {
		if err := testConnection(ctx, cfg, opts.Out); err != nil {
			saveAnyway, ferr := confirm("Save config anyway? (You can fix the connection later)")
			if ferr != nil || !saveAnyway {
				return err
			}
		}
	}

	if err := config.WriteFile(configPath, cfg, true); err != nil {
		return err
	}

	fmt.Fprintf(opts.Out, "%s Created %s\n\n", ui.SuccessStyle().Render(ui.SymbolSuccess), configPath)
	fmt.Fprintln(opts.Out, "Next steps:")
	fmt.Fprintln(opts.Out, "  gea doctor             - Check configuration and remote access")
	fmt.Fprintln(opts.Out, "  gea append -c article  - Save a first record")
	fmt.Fprintln(opts.Out, "  gea stats              - Count records per category")
	fmt.Fprintln(opts.Out, "\nSet GEA_SMTP_HOST, GEA_SMTP_PASSWORD and GEA_NOTIFY_RECIPIENT to enable notifications.")
	return nil
}

func promptInit(host, user, dir *string) error {
	if *dir == "" {
		*dir = defaultRemoteDir
	}
	required := func(what string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", what)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host or alias").
				Description("Hostname, IP, or an alias from ~/.ssh/config").
				Placeholder("archivo.example.org").
				Value(host).
				Validate(required("SSH host")),
			huh.NewInput().
				Title("Remote user").
				Description("Leave empty to use ~/.ssh/config or your local user").
				Value(user),
			huh.NewInput().
				Title("Remote directory").
				Description("Where the category files live (supports ${USER}, ${HOME})").
				Value(dir).
				Validate(required("remote directory")),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive")
	}
	return nil
}

// testConnection dials the new config once with a spinner.
func testConnection(ctx context.Context, cfg *config.Config, w io.Writer) error {
	fmt.Fprintln(w)
	spinner := ui.NewSpinner(w, "Testing connection to "+cfg.Remote.Host, ui.IsTerminal(os.Stdout))
	spinner.Start()

	sess, err := remote.Connect(ctx, cfg)
	if err != nil {
		spinner.Fail()
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(err.Error(), "\n"))
		return err
	}
	_ = sess.Close()
	spinner.Success()
	fmt.Fprintln(w)
	return nil
}
