package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/ui"
)

// resetGlobals restores the package flag state after a test.
func resetGlobals(t *testing.T) {
	t.Helper()
	oldCfg, oldMachine, oldQuiet, oldVerbose, oldLoaded := cfgFile, machineMode, quiet, verbose, loadedConfig
	t.Cleanup(func() {
		cfgFile, machineMode, quiet, verbose, loadedConfig = oldCfg, oldMachine, oldQuiet, oldVerbose, oldLoaded
	})
	cfgFile, machineMode, quiet, verbose, loadedConfig = "", false, true, false, nil
	ui.DisableColors()
}

// writeLocalConfig writes a local-mode gea.yaml and points --config at it.
func writeLocalConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.SampleConfig("", "", filepath.Join(dir, "registros"))
	cfg.Remote.Mode = config.ModeLocal
	cfg.Lock.RetryInterval = 20 * time.Millisecond

	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, config.WriteFile(path, cfg, false))
	cfgFile = path
	return cfg
}
