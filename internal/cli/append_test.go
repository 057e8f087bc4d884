package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gea-smc/gea/internal/config"
	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveRecord_NonInteractive(t *testing.T) {
	resetGlobals(t)

	tests := []struct {
		name    string
		opts    AppendOptions
		wantCat record.Category
		want    string
		wantErr string
	}{
		{
			name:    "category and argument",
			opts:    AppendOptions{Category: "art", Args: []string{"Título: X"}},
			wantCat: record.Article,
			want:    "Título: X",
		},
		{
			name:    "missing category",
			opts:    AppendOptions{Args: []string{"Título: X"}},
			wantErr: "No category given",
		},
		{
			name:    "missing content",
			opts:    AppendOptions{Category: "thesis"},
			wantErr: "No record content given",
		},
		{
			name:    "unknown category",
			opts:    AppendOptions{Category: "libro", Args: []string{"x"}},
			wantErr: "Unknown category 'libro'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.interactive = boolPtr(false)
			tt.opts.prompt = func(*record.Category, *string, bool) error {
				t.Fatal("prompt must not run without a terminal")
				return nil
			}

			cat, content, err := resolveRecord(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrValidation))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, cat)
			assert.Equal(t, tt.want, content)
		})
	}
}

func TestResolveRecord_PipedStdin(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("Proyecto: Z\n"), 0o644))
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	cat, content, err := resolveRecord(AppendOptions{
		Category:    "funding",
		In:          in,
		interactive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, record.Funding, cat)
	assert.Equal(t, "Proyecto: Z", content)
}

func TestResolveRecord_PromptsForCategoryOnly(t *testing.T) {
	resetGlobals(t)
	calls := 0

	cat, content, err := resolveRecord(AppendOptions{
		Args:        []string{"Tesis: X"},
		interactive: boolPtr(true),
		prompt: func(c *record.Category, content *string, prefill bool) error {
			calls++
			assert.Nil(t, content, "content already given")
			*c = record.Thesis
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, record.Thesis, cat)
	assert.Equal(t, "Tesis: X", content)
}

func TestResolveRecord_PromptsForContent(t *testing.T) {
	resetGlobals(t)

	cat, content, err := resolveRecord(AppendOptions{
		Category:    "congreso",
		Template:    true,
		interactive: boolPtr(true),
		prompt: func(c *record.Category, content *string, prefill bool) error {
			assert.Equal(t, record.Conference, *c)
			require.NotNil(t, content)
			assert.True(t, prefill)
			*content = "Evento: X"
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, record.Conference, cat)
	assert.Equal(t, "Evento: X", content)
}

func TestResolveRecord_NoPromptInMachineMode(t *testing.T) {
	resetGlobals(t)
	machineMode = true

	_, _, err := resolveRecord(AppendOptions{
		Category:    "article",
		interactive: boolPtr(true),
		prompt: func(*record.Category, *string, bool) error {
			t.Fatal("prompt must not run with --json")
			return nil
		},
	})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestAppendCommand_LocalMode(t *testing.T) {
	resetGlobals(t)
	cfg := writeLocalConfig(t)

	var out, errOut bytes.Buffer
	err := appendCommand(context.Background(), AppendOptions{
		Category:    "article",
		Args:        []string{"Título: Redes\nAutores: A. Pérez"},
		NoNotify:    true,
		Out:         &out,
		Err:         &errOut,
		interactive: boolPtr(false),
	})
	require.NoError(t, err)

	path := cfg.Path(record.Article)
	assert.Contains(t, out.String(), "✓ Saved Artículo record to "+path)
	assert.Contains(t, out.String(), "--- Registro del ")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)
	assert.True(t, strings.HasPrefix(got, record.CreationMarker+"\n"))
	assert.Contains(t, got, "Título: Redes\nAutores: A. Pérez\n")
	assert.NotNil(t, loadedConfig)
}

func TestAppendCommand_JSON(t *testing.T) {
	resetGlobals(t)
	cfg := writeLocalConfig(t)
	machineMode = true

	var out bytes.Buffer
	err := appendCommand(context.Background(), AppendOptions{
		Category:    "funding",
		Args:        []string{"Proyecto: X"},
		NoNotify:    true,
		Out:         &out,
		Err:         &bytes.Buffer{},
		interactive: boolPtr(false),
	})
	require.NoError(t, err)

	var env struct {
		Success bool         `json:"success"`
		Data    AppendOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, record.Funding, env.Data.Category)
	assert.Equal(t, "Financiamiento", env.Data.Label)
	assert.Equal(t, cfg.Path(record.Funding), env.Data.Path)
	assert.False(t, env.Data.Notified)
	assert.Empty(t, env.Data.NotifyError)
	assert.False(t, env.Data.Timestamp.IsZero())
}

func TestAppendCommand_ValidationBeforeConnecting(t *testing.T) {
	resetGlobals(t)
	cfg := writeLocalConfig(t)

	err := appendCommand(context.Background(), AppendOptions{
		Category:    "article",
		Args:        []string{"   "},
		NoNotify:    true,
		Out:         &bytes.Buffer{},
		Err:         &bytes.Buffer{},
		interactive: boolPtr(false),
	})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, statErr := os.Stat(cfg.Remote.Dir)
	assert.True(t, os.IsNotExist(statErr), "nothing created for a rejected record")
}

func TestSkipReason(t *testing.T) {
	cfg := config.SampleConfig("archivo.example.org", "captura", "~/registros")
	assert.Equal(t, "--no-notify", skipReason(cfg, true))
	assert.Equal(t, "not configured", skipReason(cfg, false))

	cfg.SMTP.Host = "smtp.example.org"
	cfg.Notify.Recipient = "avisos@example.org"
	assert.Equal(t, "", skipReason(cfg, false))
}

func TestFirstLine(t *testing.T) {
	err := errors.New(errors.ErrNotify, "Could not send the notification", "Check smtp.host")
	assert.Equal(t, "Could not send the notification", firstLine(err))
}
