package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
)

func TestInit_NonInteractiveWritesConfig(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), config.ConfigFileName)

	var out bytes.Buffer
	err := Init(context.Background(), InitOptions{
		Host:           "archivo.example.org",
		User:           "captura",
		Path:           path,
		NonInteractive: true,
		Out:            &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created "+path)
	assert.Contains(t, out.String(), "gea doctor")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))
	assert.Equal(t, "archivo.example.org", cfg.Remote.Host)
	assert.Equal(t, "captura", cfg.Remote.User)
	assert.Equal(t, defaultRemoteDir, cfg.Remote.Dir)
}

func TestInit_ExistingFile(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	opts := InitOptions{
		Host:           "archivo.example.org",
		Dir:            "/srv/registros",
		Path:           path,
		NonInteractive: true,
		Out:            &bytes.Buffer{},
	}
	err := Init(context.Background(), opts)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "version: 1\n", string(data), "left untouched")

	opts.Overwrite = true
	require.NoError(t, Init(context.Background(), opts))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/registros", cfg.Remote.Dir)
}

func TestInit_NonInteractiveNeedsHost(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), config.ConfigFileName)

	err := Init(context.Background(), InitOptions{Path: path, NonInteractive: true, Out: &bytes.Buffer{}})
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.NoFileExists(t, path)
}
