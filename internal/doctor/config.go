package doctor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gea-smc/gea/internal/config"
)

// ConfigFileCheck verifies that a config file exists.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Error finding config: %v", err),
			Suggestion: "Check file permissions or run 'gea init' to create a config",
		}
	}

	if path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No config file found; using GEA_* environment variables only",
			Suggestion: "Run 'gea init' to create a gea.yaml config file",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", filepath.Base(path)),
	}
}

func (c *ConfigFileCheck) Fix(context.Context) error {
	return nil // init is interactive
}

// ConfigSchemaCheck verifies that the loaded config passes validation.
type ConfigSchemaCheck struct {
	Config  *config.Config
	LoadErr error
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return "CONFIG" }

func (c *ConfigSchemaCheck) Run(context.Context) CheckResult {
	if c.LoadErr != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Failed to load config: %v", c.LoadErr),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}

	if err := config.Validate(c.Config); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Schema error: %v", err),
			Suggestion: "Fix the configuration errors in gea.yaml",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Schema valid",
	}
}

func (c *ConfigSchemaCheck) Fix(context.Context) error {
	return nil // Schema issues require manual intervention
}

// NotifyCheck reports whether post-append notifications will be sent.
type NotifyCheck struct {
	Config *config.Config
}

func (c *NotifyCheck) Name() string     { return "notify" }
func (c *NotifyCheck) Category() string { return "CONFIG" }

func (c *NotifyCheck) Run(context.Context) CheckResult {
	if c.Config == nil || !c.Config.NotificationsEnabled() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Notifications disabled",
			Suggestion: "Set smtp.host and notify.recipient to mail a notice after each record",
		}
	}

	smtp := c.Config.SMTP
	if smtp.User != "" && smtp.Password == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("SMTP user %s has no password", smtp.User),
			Suggestion: "Set " + config.EnvKey("smtp.password"),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Notifications to %s via %s:%d", c.Config.Notify.Recipient, smtp.Host, smtp.Port),
	}
}

func (c *NotifyCheck) Fix(context.Context) error {
	return nil
}
