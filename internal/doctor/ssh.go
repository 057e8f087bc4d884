package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gea-smc/gea/internal/config"
)

// SSHAuthCheck verifies that at least one SSH auth method is available.
type SSHAuthCheck struct {
	Remote config.RemoteConfig
}

func (c *SSHAuthCheck) Name() string     { return "ssh_auth" }
func (c *SSHAuthCheck) Category() string { return "SSH" }

func (c *SSHAuthCheck) Run(context.Context) CheckResult {
	r := c.Remote
	if r.Mode == config.ModeLocal {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Local transport: no SSH auth needed"}
	}

	if r.IdentityFile != "" {
		if _, err := os.Stat(r.IdentityFile); err != nil {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("Identity file not readable: %s", r.IdentityFile),
				Suggestion: "Fix remote.identity_file or generate a key with: ssh-keygen -t ed25519",
			}
		}
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Identity file: " + r.IdentityFile}
	}

	if r.Password != "" {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Password authentication configured"}
	}

	if r.UseAgent && os.Getenv("SSH_AUTH_SOCK") != "" {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH agent available"}
	}

	if key := defaultKey(); key != "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("SSH key found: ~/.ssh/%s", filepath.Base(key)),
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    "No SSH auth method available",
		Suggestion: "Set " + config.EnvKey("remote.password") + ", remote.identity_file, or start ssh-agent",
	}
}

func (c *SSHAuthCheck) Fix(context.Context) error {
	// Could generate a key, but that's probably too invasive for auto-fix
	return nil
}

func defaultKey() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// KnownHostsCheck verifies the host key policy can be satisfied.
type KnownHostsCheck struct {
	Remote config.RemoteConfig
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return "SSH" }

func (c *KnownHostsCheck) Run(context.Context) CheckResult {
	r := c.Remote
	if r.Mode == config.ModeLocal {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Local transport: no host key"}
	}

	switch r.HostKeyPolicy {
	case config.HostKeyInsecure:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Host key verification is disabled",
			Suggestion: "Set remote.host_key_policy to strict or accept-new",
		}
	case config.HostKeyAcceptNew:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Unknown host keys are trusted on first use and added to " + r.KnownHosts,
		}
	}

	if _, err := os.Stat(r.KnownHosts); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "known_hosts file not found: " + r.KnownHosts,
			Suggestion: fmt.Sprintf("Run: ssh-keyscan %s >> %s", r.Host, r.KnownHosts),
		}
	}

	return CheckResult{Name: c.Name(), Status: StatusPass, Message: "known_hosts: " + r.KnownHosts}
}

func (c *KnownHostsCheck) Fix(context.Context) error {
	return nil // Trusting a host key needs a human
}
