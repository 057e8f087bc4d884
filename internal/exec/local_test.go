package exec

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteLocal_SimpleCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := ExecuteLocal(context.Background(), "echo hello", "", nil, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestExecuteLocal_CommandWithPipe(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := ExecuteLocal(context.Background(), "echo 'hello world' | tr ' ' '_'", "", nil, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello_world\n", stdout.String())
}

func TestExecuteLocal_NonZeroExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := ExecuteLocal(context.Background(), "echo oops >&2; exit 42", "", nil, &stdout, &stderr)

	require.NoError(t, err) // No error - command ran, just had non-zero exit
	assert.Equal(t, 42, exitCode)
	assert.Equal(t, "oops\n", stderr.String())
}

func TestExecuteLocal_WorkingDirectory(t *testing.T) {
	tempDir := t.TempDir()
	var stdout, stderr bytes.Buffer

	exitCode, err := ExecuteLocal(context.Background(), "pwd", tempDir, nil, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, strings.TrimSpace(stdout.String()), filepath.Base(tempDir))
}

func TestExecuteLocal_Stdin(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := ExecuteLocal(context.Background(), "wc -c", "", strings.NewReader("12345"), &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "5", strings.TrimSpace(stdout.String()))
}

func TestExecuteLocal_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	exitCode, err := ExecuteLocal(ctx, "sleep 5", "", nil, &bytes.Buffer{}, &bytes.Buffer{})

	require.Error(t, err)
	assert.Equal(t, -1, exitCode)
	assert.True(t, errors.IsCode(err, errors.ErrRemote))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestLocalClient(t *testing.T) {
	dir := t.TempDir()
	client := NewLocalClient(dir)

	stdout, _, code, err := client.ExecInput(context.Background(), "cat > note.txt && cat note.txt", strings.NewReader("it's `here` $(x)\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "it's `here` $(x)\n", string(stdout))

	data, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "it's `here` $(x)\n", string(data))

	_, _, code, err = client.Exec(context.Background(), "test -f missing.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	assert.Equal(t, "localhost", client.GetHost())
	assert.Equal(t, "local", client.GetAddress())

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	_, _, _, err = client.Exec(context.Background(), "true")
	assert.True(t, errors.IsCode(err, errors.ErrRemote))
}
