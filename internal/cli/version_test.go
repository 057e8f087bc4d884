package cli

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v, c, d string) {
	t.Helper()
	oldV, oldC, oldD := version, commit, date
	t.Cleanup(func() { SetVersionInfo(oldV, oldC, oldD) })
	SetVersionInfo(v, c, d)
}

func TestFormatVersion(t *testing.T) {
	tests := map[string]string{
		"":       "",
		"dev":    "dev",
		"1.2.0":  "v1.2.0",
		"v1.2.0": "v1.2.0",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatVersion(in), in)
	}
}

func TestVersionCommand(t *testing.T) {
	resetGlobals(t)
	withVersion(t, "1.2.0", "abc123", "2024-03-05")

	var buf bytes.Buffer
	require.NoError(t, versionCommand(&buf, false))
	out := buf.String()
	assert.Contains(t, out, "gea v1.2.0\n")
	assert.Contains(t, out, "commit: abc123\n")
	assert.Contains(t, out, "built: 2024-03-05\n")
	assert.Contains(t, out, "os/arch: "+runtime.GOOS+"/"+runtime.GOARCH)

	buf.Reset()
	require.NoError(t, versionCommand(&buf, true))
	assert.Equal(t, "1.2.0\n", buf.String())
	assert.Equal(t, "1.2.0", GetVersion())
}

func TestVersionCommand_JSON(t *testing.T) {
	resetGlobals(t)
	withVersion(t, "1.2.0", "abc123", "2024-03-05")
	machineMode = true

	var buf bytes.Buffer
	require.NoError(t, versionCommand(&buf, true))

	var env struct {
		Success bool          `json:"success"`
		Data    VersionOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "1.2.0", env.Data.Version)
	assert.Equal(t, "abc123", env.Data.Commit)
	assert.Equal(t, runtime.Version(), env.Data.Go)
}
