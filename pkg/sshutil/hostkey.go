package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Host key policies.
const (
	// PolicyStrict only accepts hosts already present in known_hosts.
	PolicyStrict = "strict"
	// PolicyAcceptNew records unknown hosts on first use and rejects changed keys.
	PolicyAcceptNew = "accept-new"
	// PolicyInsecure skips host key verification.
	PolicyInsecure = "insecure"
)

// knownHostsMu serializes appends to known_hosts within the process.
var knownHostsMu sync.Mutex

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// UnknownHostError is returned under the strict policy for hosts missing from known_hosts.
type UnknownHostError struct {
	Hostname    string
	Fingerprint string
	KnownHosts  string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("host %s is not in %s (key %s)", e.Hostname, e.KnownHosts, e.Fingerprint)
}

// Suggestion explains how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	host, port := stripPort(e.Hostname), "22"
	if _, p, err := net.SplitHostPort(e.Hostname); err == nil {
		port = p
	}
	return fmt.Sprintf(
		"Verify the fingerprint %s with the server admin, then either:\n"+
			"  ssh-keyscan -p %s %s >> %s\n"+
			"  or set remote.host_key_policy: accept-new for a one-time trust on first use",
		e.Fingerprint, port, host, e.KnownHosts)
}

// hostKeyCallback builds the verification callback for a policy.
func hostKeyCallback(policy, knownHostsPath string) (ssh.HostKeyCallback, error) {
	switch policy {
	case PolicyInsecure:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // User explicitly disabled host key checking
	case PolicyStrict, PolicyAcceptNew, "":
	default:
		return nil, fmt.Errorf("unknown host key policy %q", policy)
	}

	if knownHostsPath == "" {
		knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}

	if err := ensureKnownHosts(knownHostsPath); err != nil {
		return nil, err
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}

		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}

		if policy == PolicyAcceptNew {
			return appendKnownHost(knownHostsPath, hostname, key)
		}

		return &UnknownHostError{
			Hostname:    hostname,
			Fingerprint: ssh.FingerprintSHA256(key),
			KnownHosts:  knownHostsPath,
		}
	}, nil
}

// ensureKnownHosts creates an empty known_hosts file if it doesn't exist.
func ensureKnownHosts(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("failed to create known_hosts directory: %w", err)
		}
		if err := os.WriteFile(path, []byte{}, 0o600); err != nil {
			return fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}
	return nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	return nil
}

func stripPort(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
