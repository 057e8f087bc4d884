package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "gea.yaml"
	// LegacyConfigFileName is accepted next to it for TOML-based secrets files.
	LegacyConfigFileName = "gea.toml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/gea"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides (GEA_REMOTE_PASSWORD).
	EnvPrefix = "GEA"
)

// Load reads config from the specified path, applies environment overrides
// and defaults, and expands local paths. It does not validate.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'gea init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML or TOML")
	}

	return parseConfig(v, path)
}

// LoadFromEnv builds a config from defaults and GEA_* environment variables only.
func LoadFromEnv() (*Config, error) {
	return parseConfig(newViper(), "")
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. gea.yaml or gea.toml in current directory
// 3. ~/.config/gea/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	for _, name := range []string{ConfigFileName, LegacyConfigFileName} {
		local := filepath.Join(cwd, name)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, _ := os.UserHomeDir(); home != "" {
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// LoadOrEnv loads config from the found path, or from the environment if no file exists.
func LoadOrEnv(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg, err := LoadFromEnv()
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the syntax in "+where)
	}

	cfg.Remote.IdentityFile = ExpandTilde(cfg.Remote.IdentityFile)
	cfg.Remote.KnownHosts = ExpandTilde(cfg.Remote.KnownHosts)
	cfg.Remote.SSHConfig = ExpandTilde(cfg.Remote.SSHConfig)
	cfg.Remote.Dir = ExpandRemote(cfg.Remote.Dir)
	cfg.Metrics.Textfile = ExpandTilde(cfg.Metrics.Textfile)
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("remote.mode", d.Remote.Mode)
	v.SetDefault("remote.host", "")
	v.SetDefault("remote.port", 0)
	v.SetDefault("remote.user", "")
	v.SetDefault("remote.password", "")
	v.SetDefault("remote.identity_file", "")
	v.SetDefault("remote.use_agent", d.Remote.UseAgent)
	v.SetDefault("remote.ssh_config", d.Remote.SSHConfig)
	v.SetDefault("remote.host_key_policy", d.Remote.HostKeyPolicy)
	v.SetDefault("remote.known_hosts", d.Remote.KnownHosts)
	v.SetDefault("remote.connect_timeout", d.Remote.ConnectTimeout.String())
	v.SetDefault("remote.command_timeout", d.Remote.CommandTimeout.String())
	v.SetDefault("remote.dir", "")

	v.SetDefault("files.article", d.Files.Article)
	v.SetDefault("files.thesis", d.Files.Thesis)
	v.SetDefault("files.conference", d.Files.Conference)
	v.SetDefault("files.funding", d.Files.Funding)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.ssl", false)
	v.SetDefault("smtp.timeout", d.SMTP.Timeout.String())

	v.SetDefault("notify.recipient", "")

	v.SetDefault("lock.enabled", d.Lock.Enabled)
	v.SetDefault("lock.timeout", d.Lock.Timeout.String())
	v.SetDefault("lock.stale", d.Lock.Stale.String())
	v.SetDefault("lock.retry_interval", d.Lock.RetryInterval.String())

	v.SetDefault("stats.concurrency", d.Stats.Concurrency)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.textfile", "")
}
