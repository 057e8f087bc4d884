package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
version: 1
remote:
  host: investigacion.example.org
  port: 2222
  user: capturista
  dir: /srv/registros
  host_key_policy: accept-new
  command_timeout: 45s
files:
  article: articulos.txt
  thesis: tesis.txt
  conference: congresos.txt
  funding: financiamiento.txt
smtp:
  host: smtp.example.org
  user: avisos@example.org
notify:
  recipient: jefatura@example.org
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "gea.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "investigacion.example.org", cfg.Remote.Host)
	assert.Equal(t, 2222, cfg.Remote.Port)
	assert.Equal(t, HostKeyAcceptNew, cfg.Remote.HostKeyPolicy)
	assert.Equal(t, 45*time.Second, cfg.Remote.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.Remote.ConnectTimeout, "default kept")
	assert.Equal(t, 587, cfg.SMTP.Port, "default kept")
	assert.Equal(t, "avisos@example.org", cfg.SMTP.From, "from falls back to user")
	assert.True(t, cfg.Lock.Enabled)
	assert.Equal(t, 1, cfg.Stats.Concurrency)
	assert.True(t, cfg.NotificationsEnabled())
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "/srv/registros/congresos.txt", cfg.Path(record.Conference))
	assert.Len(t, cfg.Paths(), 4)
}

func TestLoad_TOML(t *testing.T) {
	path := writeTemp(t, "gea.toml", `
[remote]
host = "10.0.0.5"
dir = "registros"

[files]
article = "a.txt"
thesis = "t.txt"
conference = "c.txt"
funding = "f.txt"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Remote.Host)
	assert.Equal(t, "registros/f.txt", cfg.Path(record.Funding))
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEA_REMOTE_PASSWORD", "s3cret")
	t.Setenv("GEA_SMTP_PASSWORD", "mailpw")
	t.Setenv("GEA_REMOTE_PORT", "2022")

	cfg, err := Load(writeTemp(t, "gea.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Remote.Password)
	assert.Equal(t, "mailpw", cfg.SMTP.Password)
	assert.Equal(t, 2022, cfg.Remote.Port, "env wins over file")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GEA_REMOTE_HOST", "env-host")
	t.Setenv("GEA_REMOTE_DIR", "/data")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.Remote.Host)
	assert.Equal(t, "/data/articulos.txt", cfg.Path(record.Article))
	require.NoError(t, Validate(cfg))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = Load(writeTemp(t, "gea.yaml", "remote: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	_, err = Load(writeTemp(t, "gea.yaml", "remote:\n  port: many\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("explicit path wins", func(t *testing.T) {
		path := writeTemp(t, "custom.yaml", sampleYAML)
		got, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("current directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(sampleYAML), 0o600))
		t.Chdir(dir)
		t.Setenv("HOME", t.TempDir())

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, filepath.Base(got))
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		got, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func validConfig() *Config {
	return SampleConfig("host.example.org", "capturista", "/srv/registros")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing host", func(c *Config) { c.Remote.Host = "" }, "remote.host is required"},
		{"missing dir", func(c *Config) { c.Remote.Dir = "" }, "remote.dir is required"},
		{"bad policy", func(c *Config) { c.Remote.HostKeyPolicy = "yolo" }, "remote.host_key_policy must be one of"},
		{"bad mode", func(c *Config) { c.Remote.Mode = "ftp" }, "remote.mode must be one of"},
		{"zero command timeout", func(c *Config) { c.Remote.CommandTimeout = 0 }, "remote.command_timeout must be greater than"},
		{"filename with slash", func(c *Config) { c.Files.Thesis = "../tesis.txt" }, "files.thesis must be a bare filename"},
		{"dot filename", func(c *Config) { c.Files.Funding = ".." }, "files.funding must be a bare filename"},
		{"empty filename", func(c *Config) { c.Files.Article = "" }, "files.article is required"},
		{"bad recipient", func(c *Config) { c.Notify.Recipient = "not-an-email" }, "notify.recipient is not a valid email"},
		{"concurrency too high", func(c *Config) { c.Stats.Concurrency = 9 }, "stats.concurrency must be at most 4"},
		{"duplicate files", func(c *Config) { c.Files.Funding = c.Files.Article }, "both point at"},
		{"future version", func(c *Config) { c.Version = CurrentConfigVersion + 1 }, "from the future"},
		{"sender missing", func(c *Config) {
			c.SMTP.Host = "smtp.example.org"
			c.Notify.Recipient = "a@example.org"
		}, "smtp.from is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_LocalModeNeedsNoHost(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.Mode = ModeLocal
	cfg.Remote.Host = ""
	assert.NoError(t, Validate(cfg))
}

func TestValidate_EmptyOptionalSections(t *testing.T) {
	cfg := validConfig()
	cfg.SMTP = SMTPConfig{Timeout: cfg.SMTP.Timeout}
	cfg.Notify = NotifyConfig{}
	cfg.Metrics = MetricsConfig{}
	assert.NoError(t, Validate(cfg), "zero-valued optional sections are valid")
}

func TestValidate_SuggestsEnvKey(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.Dir = ""
	err := Validate(cfg)
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Suggestion, "GEA_REMOTE_DIR")
}

func TestIsBareFilename(t *testing.T) {
	assert.True(t, IsBareFilename("articulos.txt"))
	assert.True(t, IsBareFilename(".hidden"))
	assert.False(t, IsBareFilename("a/b"))
	assert.False(t, IsBareFilename("."))
	assert.False(t, IsBareFilename(".."))
	assert.False(t, IsBareFilename(""))
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, ".ssh", "known_hosts"), ExpandTilde("~/.ssh/known_hosts"))
	assert.Equal(t, "/etc/ssh", ExpandTilde("/etc/ssh"))
	assert.Equal(t, "~other/x", ExpandTilde("~other/x"))
	assert.Equal(t, "", ExpandTilde(""))
}

func TestExpandRemote(t *testing.T) {
	t.Setenv("USER", "ana")
	assert.Equal(t, "/home/ana/registros", ExpandRemote("/home/${USER}/registros"))
	assert.Equal(t, "~/registros", ExpandRemote("${HOME}/registros"))
	assert.Equal(t, "~/registros", ExpandRemote("~/registros"), "remote tilde left for the remote shell")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "gea.yaml")
	cfg := validConfig()
	cfg.Remote.Password = "never-written"

	require.NoError(t, WriteFile(path, cfg, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")
	assert.Contains(t, string(data), "# One bare filename per category")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(loaded))
	assert.Equal(t, cfg.Remote.Host, loaded.Remote.Host)
	assert.Equal(t, cfg.Paths(), loaded.Paths())
	assert.Equal(t, cfg.Lock.RetryInterval, loaded.Lock.RetryInterval)

	err = WriteFile(path, cfg, false)
	assert.True(t, errors.IsCode(err, errors.ErrConfig), "refuses to overwrite")
	assert.NoError(t, WriteFile(path, cfg, true))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "GEA_SMTP_PASSWORD", EnvKey("smtp.password"))
	assert.Equal(t, "GEA_REMOTE_HOST_KEY_POLICY", EnvKey("remote.host_key_policy"))
}
