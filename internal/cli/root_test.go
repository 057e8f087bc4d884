package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gea-smc/gea/internal/errors"
)

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`unknown command "apend" for "gea"`, true},
		{"unknown flag: --categry", true},
		{"unknown shorthand flag: 'x' in -x", true},
		{"connection refused", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isUnknownCommandError(fmt.Errorf("%s", tt.msg)), tt.msg)
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	assert.Equal(t, "apend", extractUnknownCommand(fmt.Errorf(`unknown command "apend" for "gea"`)))
	assert.Equal(t, "", extractUnknownCommand(fmt.Errorf("unknown flag: --x")))
}

func TestPrintError(t *testing.T) {
	resetGlobals(t)

	t.Run("structured error", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, errors.New(errors.ErrConfig, "Config file not found", "Run 'gea init'"))

		out := buf.String()
		assert.Contains(t, out, "Config file not found")
		assert.Contains(t, out, "Run 'gea init'")
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("✗")))
	})

	t.Run("unknown command", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, fmt.Errorf(`unknown command "stat" for "gea"`))
		assert.Contains(t, buf.String(), `Unknown command "stat"`)
		assert.Contains(t, buf.String(), "gea --help")
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, fmt.Errorf("boom"))
		assert.Equal(t, "✗ boom\n", buf.String())
	})
}

func TestNewLogger_FlagsOverrideLevel(t *testing.T) {
	resetGlobals(t)
	cfg := writeLocalConfig(t)

	var buf bytes.Buffer
	quiet = false
	verbose = true
	newLogger(cfg, &buf).Debug("debug %s", "shown")
	assert.Contains(t, buf.String(), "debug shown")

	buf.Reset()
	verbose = false
	quiet = true
	newLogger(cfg, &buf).Warn("warn %s", "hidden")
	assert.Empty(t, buf.String())
}

func TestRootCommand_RegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"append", "stats", "template", "doctor", "unlock", "init", "version", "completion"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
