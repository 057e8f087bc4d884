package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gea-smc/gea/internal/errors"
	"gopkg.in/yaml.v3"
)

// sectionComments are written above each top-level key of a generated config.
var sectionComments = map[string]string{
	"version": "gea config schema version",
	"remote":  "Host holding the category files. Secrets can come from GEA_REMOTE_PASSWORD.",
	"files":   "One bare filename per category, created under remote.dir on first append",
	"smtp":    "Mail submission for notifications. Leave host empty to disable. GEA_SMTP_PASSWORD overrides password.",
	"notify":  "Who receives a notice after every successful append",
	"lock":    "Per-file advisory lock held while creating and appending",
	"stats":   "concurrency: parallel count commands (1 = sequential)",
	"log":     "level: debug|info|warn|error, format: console|json",
	"metrics": "Prometheus textfile written after each command when set",
}

// SampleConfig returns the defaults with placeholder connection details filled in.
func SampleConfig(host, user, dir string) *Config {
	cfg := DefaultConfig()
	cfg.Remote.Host = host
	cfg.Remote.User = user
	cfg.Remote.Dir = dir
	cfg.Remote.SSHConfig = "~/.ssh/config"
	cfg.Remote.KnownHosts = "~/.ssh/known_hosts"
	return cfg
}

// Marshal renders cfg as commented YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}

	for i := 0; i < len(root.Content)-1; i += 2 {
		key := root.Content[i]
		if c, ok := sectionComments[key.Value]; ok {
			key.HeadComment = c
		}
	}

	// Secrets are never written; they belong in the environment.
	for _, section := range []string{"remote", "smtp"} {
		if pw := findMapValue(findMapValue(&root, section), "password"); pw != nil {
			pw.Value = ""
			pw.Tag = "!!str"
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes cfg to path. An existing file is only replaced when force is set.
func WriteFile(path string, cfg *Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Use --force to overwrite it")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render config", "")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot create config directory "+dir, "Check directory permissions")
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file "+path, "Check directory permissions")
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
