package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
)

// Command-specific flags
var (
	appendCategoryFlag string
	appendFileFlag     string
	appendTemplateFlag bool
	appendNoNotifyFlag bool
	appendConnectFlags ConnectFlags
	statsConnectFlags  ConnectFlags
	doctorFixFlag      bool
	doctorConnectFlags ConnectFlags
	unlockAllFlag      bool
	unlockYesFlag      bool
	unlockConnectFlags ConnectFlags
	initHostFlag       string
	initUserFlag       string
	initDirFlag        string
	initOutputFlag     string
	initForce          bool
	initNonInteractive bool
)

// appendCmd saves one record to its category file on the remote host
var appendCmd = &cobra.Command{
	Use:     "append [content]",
	Aliases: []string{"add"},
	Short:   "Save a record to its category file",
	Long: `Append one record to the file of its category on the remote host,
creating the file first if needed, then send the notification mail.

The content comes from the arguments, from --file (use - for stdin), or
from an interactive form when running in a terminal.

Examples:
  gea append --category article "Título: ..."
  gea append -c tesis --file registro.txt
  pbpaste | gea append -c funding --file -
  gea append                       # interactive form`,
	ValidArgsFunction: cobra.NoFileCompletions,
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendCommand(cmd.Context(), AppendOptions{
			Category: appendCategoryFlag,
			Args:     args,
			File:     appendFileFlag,
			Template: appendTemplateFlag,
			NoNotify: appendNoNotifyFlag,
			Connect:  appendConnectFlags,
			In:       os.Stdin,
			Out:      cmd.OutOrStdout(),
			Err:      cmd.ErrOrStderr(),
		})
	},
}

// statsCmd counts the lines of every category file
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many lines each category file holds",
	Long: `Count the lines of every category file on the remote host and show
the total with the largest and smallest categories. A file that does not
exist yet counts as zero.

Examples:
  gea stats
  gea stats --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsCommand(cmd.Context(), StatsOptions{
			Connect: statsConnectFlags,
			In:      os.Stdin,
			Out:     cmd.OutOrStdout(),
			Err:     cmd.ErrOrStderr(),
		})
	},
}

// templateCmd prints the suggested input for a category
var templateCmd = &cobra.Command{
	Use:   "template <category>",
	Short: "Print the suggested format of a category's records",
	Long: `Print the suggested input for a category. Categories can be given by
key (article), short code (art) or label (Artículo).

Examples:
  gea template article
  gea template tes > registro.txt`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: record.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateCommand(cmd.OutOrStdout(), args[0])
	},
}

// doctorCmd diagnoses the configuration and the remote host
var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Aliases: []string{"check"},
	Short:   "Diagnose configuration and remote access",
	Long: `Check the config file, the local SSH setup, and the remote directory:
that it exists and is writable, which category files exist, and whether
any file lock has been left behind.

Examples:
  gea doctor
  gea doctor --fix
  gea doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), DoctorOptions{
			Fix:     doctorFixFlag,
			Connect: doctorConnectFlags,
			In:      os.Stdin,
			Out:     cmd.OutOrStdout(),
			Err:     cmd.ErrOrStderr(),
		})
	},
}

// unlockCmd removes the lock guarding a category file
var unlockCmd = &cobra.Command{
	Use:   "unlock [category]",
	Short: "Remove a leftover lock from a category file",
	Long: `Remove the lock directory next to a category file. Use this when a
process died while saving a record and later appends time out waiting
for the lock.

Examples:
  gea unlock article
  gea unlock --all --yes`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: record.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := UnlockOptions{
			All:     unlockAllFlag,
			Yes:     unlockYesFlag,
			Connect: unlockConnectFlags,
			In:      os.Stdin,
			Out:     cmd.OutOrStdout(),
			Err:     cmd.ErrOrStderr(),
		}
		if len(args) == 1 {
			opts.Category = args[0]
		}
		return unlockCommand(cmd.Context(), opts)
	},
}

// initCmd creates a config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a gea.yaml config file",
	Long: `Create a gea.yaml config file in the current directory.

Without --non-interactive a short form asks for the remote host, user and
directory, then tests the connection before saving.

Examples:
  gea init
  gea init --host archivo.example.org --user captura --dir '~/registros' --non-interactive`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(cmd.Context(), InitOptions{
			Host:           initHostFlag,
			User:           initUserFlag,
			Dir:            initDirFlag,
			Path:           initOutputFlag,
			Overwrite:      initForce,
			NonInteractive: initNonInteractive,
			Out:            cmd.OutOrStdout(),
		})
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for gea.

Examples:
  # Bash
  gea completion bash > /etc/bash_completion.d/gea

  # Zsh
  gea completion zsh > "${fpath[1]}/_gea"

  # Fish
  gea completion fish > ~/.config/fish/completions/gea.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.Validation(
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// append command flags
	appendCmd.Flags().StringVarP(&appendCategoryFlag, "category", "c", "", "record category: "+strings.Join(record.Keys(), ", "))
	appendCmd.Flags().StringVarP(&appendFileFlag, "file", "f", "", "read the content from a file (- for stdin)")
	appendCmd.Flags().BoolVar(&appendTemplateFlag, "template", false, "start the interactive form from the category template")
	appendCmd.Flags().BoolVar(&appendNoNotifyFlag, "no-notify", false, "do not send the notification mail")
	AddConnectFlags(appendCmd, &appendConnectFlags)
	_ = appendCmd.RegisterFlagCompletionFunc("category", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return record.Keys(), cobra.ShellCompDirectiveNoFileComp
	})

	// stats command flags
	AddConnectFlags(statsCmd, &statsConnectFlags)

	// doctor command flags
	doctorCmd.Flags().BoolVar(&doctorFixFlag, "fix", false, "attempt automatic fixes where possible")
	AddConnectFlags(doctorCmd, &doctorConnectFlags)

	// unlock command flags
	unlockCmd.Flags().BoolVar(&unlockAllFlag, "all", false, "check every category")
	unlockCmd.Flags().BoolVarP(&unlockYesFlag, "yes", "y", false, "do not ask for confirmation")
	AddConnectFlags(unlockCmd, &unlockConnectFlags)

	// init command flags
	initCmd.Flags().StringVar(&initHostFlag, "host", "", "remote host or ~/.ssh/config alias")
	initCmd.Flags().StringVar(&initUserFlag, "user", "", "remote user")
	initCmd.Flags().StringVar(&initDirFlag, "dir", "", "remote directory holding the category files")
	initCmd.Flags().StringVarP(&initOutputFlag, "output", "o", "", "where to write the config (default: ./gea.yaml)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "use flags only, no prompts")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
