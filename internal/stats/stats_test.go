package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gea-smc/gea/internal/errors"
	localexec "github.com/gea-smc/gea/internal/exec"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	sshtesting "github.com/gea-smc/gea/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(dir string) map[record.Category]string {
	return map[record.Category]string{
		record.Article:    filepath.Join(dir, "articulos.txt"),
		record.Thesis:     filepath.Join(dir, "tesis.txt"),
		record.Conference: filepath.Join(dir, "congresos.txt"),
		record.Funding:    filepath.Join(dir, "financiamiento.txt"),
	}
}

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("línea\n", n)), 0o644))
}

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		counts map[record.Category]int
		total  int
		max    record.Category
		min    record.Category
	}{
		{
			name:   "distinct",
			counts: map[record.Category]int{record.Article: 10, record.Thesis: 0, record.Conference: 3, record.Funding: 1},
			total:  14, max: record.Article, min: record.Thesis,
		},
		{
			name:   "all zero ties to first",
			counts: map[record.Category]int{},
			total:  0, max: record.Article, min: record.Article,
		},
		{
			name:   "max tie goes to earlier category",
			counts: map[record.Category]int{record.Article: 1, record.Thesis: 5, record.Conference: 5, record.Funding: 2},
			total:  13, max: record.Thesis, min: record.Article,
		},
		{
			name:   "min tie goes to earlier category",
			counts: map[record.Category]int{record.Article: 7, record.Thesis: 2, record.Conference: 9, record.Funding: 2},
			total:  20, max: record.Conference, min: record.Thesis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot(tt.counts, at)
			assert.Equal(t, tt.total, snap.Total)
			assert.Equal(t, tt.max, snap.Max)
			assert.Equal(t, tt.min, snap.Min)
			assert.Len(t, snap.Counts, len(record.All))
			assert.Equal(t, at, snap.CollectedAt)
		})
	}
}

func TestCollect_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	paths := testPaths(dir)
	writeLines(t, paths[record.Article], 10)
	writeLines(t, paths[record.Conference], 3)
	writeLines(t, paths[record.Funding], 1)

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			sess := remote.NewSession(localexec.NewLocalClient(""), 5*time.Second)
			defer sess.Close()

			snap, err := NewAggregator(paths, concurrency, nil).Collect(context.Background(), sess)
			require.NoError(t, err)

			assert.Equal(t, 10, snap.Count(record.Article))
			assert.Equal(t, 0, snap.Count(record.Thesis))
			assert.Equal(t, 3, snap.Count(record.Conference))
			assert.Equal(t, 1, snap.Count(record.Funding))
			assert.Equal(t, 14, snap.Total)
			assert.Equal(t, record.Article, snap.Max)
			assert.Equal(t, record.Thesis, snap.Min)
			assert.Equal(t, map[string]int{"article": 10, "thesis": 0, "conference": 3, "funding": 1}, snap.ByKey())
		})
	}
}

func TestCollect_PathWithQuotes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "it's here")
	require.NoError(t, os.Mkdir(dir, 0o755))
	paths := testPaths(dir)
	writeLines(t, paths[record.Thesis], 2)

	sess := remote.NewSession(localexec.NewLocalClient(""), 5*time.Second)
	defer sess.Close()

	snap, err := NewAggregator(paths, 1, nil).Collect(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total)
}

func TestCollect_OneRoundTripPerCategory(t *testing.T) {
	mock := sshtesting.NewMockClient("registros")
	mock.SetCommandResponse("articulos", sshtesting.CommandResponse{Stdout: []byte("       4\n")})
	mock.SetCommandResponse(".", sshtesting.CommandResponse{Stdout: []byte("0\n")})
	sess := remote.NewSession(mock, time.Second)

	snap, err := NewAggregator(testPaths("/srv/registros"), 1, nil).Collect(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, len(record.All), mock.CallCount())
	for _, call := range mock.Calls() {
		assert.Contains(t, call.Command, "wc -l")
		assert.Contains(t, call.Command, "'/srv/registros/")
	}
}

func TestCollect_FailureFailsWholeSnapshot(t *testing.T) {
	tests := []struct {
		name string
		resp sshtesting.CommandResponse
	}{
		{"non-zero exit", sshtesting.CommandResponse{ExitCode: 1, Stderr: []byte("Permission denied")}},
		{"unparsable output", sshtesting.CommandResponse{Stdout: []byte("wc: not found\n")}},
		{"channel failure", sshtesting.CommandResponse{Error: fmt.Errorf("channel closed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := sshtesting.NewMockClient("registros")
			mock.SetCommandResponse("congresos", tt.resp)
			mock.SetCommandResponse(".", sshtesting.CommandResponse{Stdout: []byte("3\n")})
			sess := remote.NewSession(mock, time.Second)

			snap, err := NewAggregator(testPaths("/srv/registros"), 1, nil).Collect(context.Background(), sess)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrRemote), "got %v", err)
			assert.Nil(t, snap.Counts)
		})
	}
}

func TestCollect_Timeout(t *testing.T) {
	mock := sshtesting.NewMockClient("registros")
	mock.SetCommandResponse("tesis", sshtesting.CommandResponse{Hang: true})
	sess := remote.NewSession(mock, 50*time.Millisecond)

	start := time.Now()
	_, err := NewAggregator(testPaths("/srv/registros"), 2, nil).Collect(context.Background(), sess)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCollect_MissingPath(t *testing.T) {
	paths := testPaths("/srv")
	delete(paths, record.Funding)

	mock := sshtesting.NewMockClient("registros")
	_, err := NewAggregator(paths, 1, nil).Collect(context.Background(), remote.NewSession(mock, time.Second))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Zero(t, mock.CallCount())
}

func TestNewAggregator_ClampsConcurrency(t *testing.T) {
	a := NewAggregator(testPaths("/x"), 0, nil)
	assert.Equal(t, 1, a.concurrency)
}
