package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/ui"
)

// ConnectFlags holds the connection flags shared by commands that reach the remote host.
type ConnectFlags struct {
	AskPassword bool
}

// AddConnectFlags registers --ask-password on a command.
func AddConnectFlags(cmd *cobra.Command, flags *ConnectFlags) {
	cmd.Flags().BoolVar(&flags.AskPassword, "ask-password", false, "prompt for the SSH password instead of reading GEA_REMOTE_PASSWORD")
}

// Apply prompts for the SSH password when requested and none is configured.
func (f ConnectFlags) Apply(cfg *config.Config, in *os.File, prompt io.Writer) error {
	if !f.AskPassword || cfg.Remote.Mode != config.ModeSSH || cfg.Remote.Password != "" {
		return nil
	}
	if !ui.IsTerminal(in) {
		return errors.New(errors.ErrConfig,
			"--ask-password needs a terminal",
			"Set GEA_REMOTE_PASSWORD instead when running non-interactively")
	}

	fmt.Fprintf(prompt, "Password for %s: ", cfg.Remote.Host)
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't read the password", "")
	}
	cfg.Remote.Password = string(pw)
	return nil
}

// readContent resolves the record content from the positional arguments
// or --file. "-" reads stdin. ok is false when neither source was given.
func readContent(args []string, file string, stdin io.Reader) (content string, ok bool, err error) {
	if len(args) > 0 && file != "" {
		return "", false, errors.Validation(
			"Content given both as an argument and with --file",
			"Use one or the other")
	}
	if len(args) > 0 {
		return strings.Join(args, " "), true, nil
	}

	var data []byte
	switch file {
	case "":
		return "", false, nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", false, errors.WrapWithCode(err, errors.ErrValidation,
			"Couldn't read the record content from "+describeSource(file),
			"Check the path passed to --file")
	}
	return strings.TrimRight(string(data), "\n"), true, nil
}

func describeSource(file string) string {
	if file == "-" {
		return "stdin"
	}
	return file
}
