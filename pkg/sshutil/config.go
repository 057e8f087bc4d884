package sshutil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	alias         string
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // Keys that exist but are encrypted
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSettings parses the host string and fills the gaps from ssh_config.
// Values set explicitly in opts always win over ssh_config.
func resolveSettings(opts Options) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: currentUser(),
	}

	host := opts.Host
	explicitUser := false
	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		settings.user = host[:atIdx]
		host = host[atIdx+1:]
		explicitUser = true
	}

	explicitPort := false
	if h, p, err := net.SplitHostPort(host); err == nil {
		if _, convErr := strconv.Atoi(p); convErr == nil {
			host = h
			settings.port = p
			explicitPort = true
		}
	}

	settings.alias = host
	settings.hostname = host

	if opts.SSHConfigPath != "" {
		applySSHConfig(settings, opts, host, explicitUser, explicitPort)
	}

	if opts.User != "" {
		settings.user = opts.User
	}
	if opts.Port > 0 {
		settings.port = strconv.Itoa(opts.Port)
	}
	if opts.IdentityFile != "" {
		settings.identityFile = expandPath(opts.IdentityFile)
	}

	return settings
}

func applySSHConfig(settings *sshSettings, opts Options, host string, explicitUser, explicitPort bool) {
	// The kevinburke/ssh_config library doesn't support Match, so we only
	// parse content before the first Match block.
	content, matchLine, err := preprocessSSHConfig(opts.SSHConfigPath)
	if err != nil {
		return
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		opts.logger().Warn("Ignoring unreadable ssh config %s: %v", opts.SSHConfigPath, err)
		return
	}

	hostFound := false

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}
	if port, _ := cfg.Get(host, "Port"); port != "" && !explicitPort {
		settings.port = port
		hostFound = true
	}
	if user, _ := cfg.Get(host, "User"); user != "" && !explicitUser {
		settings.user = user
		hostFound = true
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" && !isDefaultIdentity(identity) {
		settings.identityFile = expandPath(identity)
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		opts.logger().Warn("Host '%s' not found in %s (a Match block at line %d may hide later entries)",
			host, opts.SSHConfigPath, matchLine)
	}
}

// isDefaultIdentity reports whether ssh_config returned its built-in default.
func isDefaultIdentity(identity string) bool {
	return identity == "~/.ssh/identity"
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
