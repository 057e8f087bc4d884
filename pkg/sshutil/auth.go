package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gea-smc/gea/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// authMethods collects auth methods in order: identity file, agent, default
// keys (only without a password or identity file), then password.
// The returned closer releases the agent connection, if one was opened.
func authMethods(settings *sshSettings, opts Options) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	closer := func() {}

	tryKeyFile := func(keyPath string) error {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return err
		}
		methods = append(methods, keyAuth)
		return nil
	}

	if settings.identityFile != "" {
		err := tryKeyFile(settings.identityFile)
		var encErr *EncryptedKeyError
		if err != nil && !stderrors.As(err, &encErr) {
			return nil, closer, errors.WrapWithCode(err, errors.ErrConnection,
				"Can't use identity file "+settings.identityFile,
				"Check remote.identity_file points at a readable private key")
		}
	}

	if opts.UseAgent {
		if agentAuth, closeAgent := sshAgentAuth(); agentAuth != nil {
			methods = append(methods, agentAuth)
			closer = closeAgent
		}
	}

	if opts.Password == "" && settings.identityFile == "" {
		for _, keyPath := range defaultKeyPaths() {
			_ = tryKeyFile(keyPath)
		}
	}

	if opts.Password != "" {
		password := opts.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}))
	}

	if len(methods) == 0 {
		closer()
		msg := "No SSH auth methods available"
		suggestion := "Set remote.password (or GEA_REMOTE_PASSWORD), remote.identity_file, or load a key: ssh-add -l"
		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = encryptedKeySuggestion(settings.encryptedKeys)
		}
		return nil, func() {}, errors.New(errors.ErrConnection, msg, suggestion)
	}

	return methods, closer, nil
}

func defaultKeyPaths() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// sshAgentAuth returns an auth method using the SSH agent if it has keys loaded.
// An empty agent causes auth failures when placed before other methods.
func sshAgentAuth() (ssh.AuthMethod, func()) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil
	}

	client := agent.NewClient(conn)
	signers, err := client.Signers()
	if err != nil || len(signers) == 0 {
		conn.Close()
		return nil, nil
	}

	return ssh.PublicKeysCallback(client.Signers), func() { conn.Close() }
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

func encryptedKeySuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}
