package config

import (
	"path"
	"time"

	"github.com/gea-smc/gea/internal/record"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Host key policies for the SSH session.
const (
	HostKeyStrict    = "strict"
	HostKeyAcceptNew = "accept-new"
	HostKeyInsecure  = "insecure"
)

// Transport modes.
const (
	ModeSSH   = "ssh"
	ModeLocal = "local"
)

// Config represents the complete gea.yaml configuration file.
type Config struct {
	Version int           `yaml:"version" mapstructure:"version" validate:"gte=0"`
	Remote  RemoteConfig  `yaml:"remote" mapstructure:"remote"`
	Files   FilesConfig   `yaml:"files" mapstructure:"files"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
	Notify  NotifyConfig  `yaml:"notify" mapstructure:"notify"`
	Lock    LockConfig    `yaml:"lock" mapstructure:"lock"`
	Stats   StatsConfig   `yaml:"stats" mapstructure:"stats"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// RemoteConfig defines the remote host holding the category files.
type RemoteConfig struct {
	// Mode is "ssh" (default) or "local" to run the same commands through /bin/sh.
	Mode string `yaml:"mode" mapstructure:"mode" validate:"oneof=ssh local"`

	// Host is a hostname, IP, or ~/.ssh/config alias.
	Host string `yaml:"host" mapstructure:"host" validate:"required_if=Mode ssh"`

	// Port overrides the port from ssh_config (22 when neither is set).
	Port int `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`

	User         string `yaml:"user" mapstructure:"user"`
	Password     string `yaml:"password" mapstructure:"password"`
	IdentityFile string `yaml:"identity_file" mapstructure:"identity_file"`
	UseAgent     bool   `yaml:"use_agent" mapstructure:"use_agent"`

	// SSHConfig is the ssh_config file used to resolve host aliases. Empty disables lookup.
	SSHConfig string `yaml:"ssh_config" mapstructure:"ssh_config"`

	// HostKeyPolicy is "strict", "accept-new" (trust on first use), or "insecure".
	HostKeyPolicy string `yaml:"host_key_policy" mapstructure:"host_key_policy" validate:"oneof=strict accept-new insecure"`
	KnownHosts    string `yaml:"known_hosts" mapstructure:"known_hosts"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout" validate:"gt=0"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout" validate:"gt=0"`

	// Dir is the base directory for all category files.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`
}

// FilesConfig maps every category to the filename it is appended to.
type FilesConfig struct {
	Article    string `yaml:"article" mapstructure:"article" validate:"required,filename"`
	Thesis     string `yaml:"thesis" mapstructure:"thesis" validate:"required,filename"`
	Conference string `yaml:"conference" mapstructure:"conference" validate:"required,filename"`
	Funding    string `yaml:"funding" mapstructure:"funding" validate:"required,filename"`
}

// SMTPConfig holds the mail submission settings. An empty Host disables notifications.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`

	// From defaults to User when empty.
	From string `yaml:"from" mapstructure:"from" validate:"omitempty,email"`

	// SSL uses implicit TLS (port 465) instead of STARTTLS.
	SSL     bool          `yaml:"ssl" mapstructure:"ssl"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// NotifyConfig controls post-append notifications.
type NotifyConfig struct {
	Recipient string `yaml:"recipient" mapstructure:"recipient" validate:"omitempty,email"`
}

// LockConfig controls the per-file advisory lock held across ensure-and-append.
type LockConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Timeout is how long to wait for a lock before giving up.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// Stale is when to consider a lock abandoned (holder probably crashed).
	Stale time.Duration `yaml:"stale" mapstructure:"stale" validate:"gte=0"`

	// RetryInterval is the wait between attempts while the lock is held.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval" validate:"gt=0"`
}

// StatsConfig controls statistics collection.
type StatsConfig struct {
	// Concurrency bounds how many count commands run at once. 1 is sequential.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=4"`
}

// LogConfig selects the logger backend settings.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	// Textfile is written after every command when set (node_exporter textfile collector).
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Filename returns the configured filename for a category.
func (f FilesConfig) Filename(c record.Category) string {
	switch c {
	case record.Article:
		return f.Article
	case record.Thesis:
		return f.Thesis
	case record.Conference:
		return f.Conference
	case record.Funding:
		return f.Funding
	}
	return ""
}

// Path returns the remote path of a category's file.
// Remote paths always use forward slashes regardless of the local OS.
func (c *Config) Path(cat record.Category) string {
	return path.Join(c.Remote.Dir, c.Files.Filename(cat))
}

// Paths returns the remote path of every category, keyed by category.
func (c *Config) Paths() map[record.Category]string {
	paths := make(map[record.Category]string, len(record.All))
	for _, cat := range record.All {
		paths[cat] = c.Path(cat)
	}
	return paths
}

// NotificationsEnabled reports whether both an SMTP host and a recipient are set.
func (c *Config) NotificationsEnabled() bool {
	return c.SMTP.Host != "" && c.Notify.Recipient != ""
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Remote: RemoteConfig{
			Mode:           ModeSSH,
			UseAgent:       true,
			SSHConfig:      "~/.ssh/config",
			HostKeyPolicy:  HostKeyStrict,
			KnownHosts:     "~/.ssh/known_hosts",
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 30 * time.Second,
		},
		Files: FilesConfig{
			Article:    "articulos.txt",
			Thesis:     "tesis.txt",
			Conference: "congresos.txt",
			Funding:    "financiamiento.txt",
		},
		SMTP: SMTPConfig{
			Port:    587,
			Timeout: 15 * time.Second,
		},
		Lock: LockConfig{
			Enabled:       true,
			Timeout:       30 * time.Second,
			Stale:         5 * time.Minute,
			RetryInterval: 500 * time.Millisecond,
		},
		Stats: StatsConfig{
			Concurrency: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
