// Package stats counts the lines of every category file and derives the
// totals shown to viewers.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/logger"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/remote"
	"github.com/gea-smc/gea/internal/util"
)

// Snapshot is the per-category line count at one point in time.
type Snapshot struct {
	Counts      map[record.Category]int
	Total       int
	Max         record.Category
	Min         record.Category
	CollectedAt time.Time
}

// Count returns the count for a category, 0 when absent.
func (s Snapshot) Count(c record.Category) int {
	return s.Counts[c]
}

// ByKey returns the counts keyed by category key, for metrics and JSON.
func (s Snapshot) ByKey() map[string]int {
	out := make(map[string]int, len(s.Counts))
	for c, n := range s.Counts {
		out[c.String()] = n
	}
	return out
}

// NewSnapshot derives Total, Max and Min from counts. Categories missing from
// counts are treated as 0. Ties go to the earlier category in record.All.
func NewSnapshot(counts map[record.Category]int, at time.Time) Snapshot {
	snap := Snapshot{
		Counts:      make(map[record.Category]int, len(record.All)),
		CollectedAt: at,
	}

	for i, c := range record.All {
		n := counts[c]
		snap.Counts[c] = n
		snap.Total += n

		if i == 0 {
			snap.Max, snap.Min = c, c
			continue
		}
		if n > snap.Counts[snap.Max] {
			snap.Max = c
		}
		if n < snap.Counts[snap.Min] {
			snap.Min = c
		}
	}
	return snap
}

// Aggregator collects snapshots.
type Aggregator struct {
	paths       map[record.Category]string
	concurrency int
	log         logger.Logger
	now         func() time.Time
}

// NewAggregator returns an Aggregator over the given category paths.
// concurrency below 1 is treated as 1 (one category at a time).
func NewAggregator(paths map[record.Category]string, concurrency int, log logger.Logger) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Aggregator{
		paths:       paths,
		concurrency: concurrency,
		log:         log,
		now:         time.Now,
	}
}

// countCommand prints the number of lines in path, or 0 if it is not a regular file.
func countCommand(path string) string {
	p := util.ShellQuotePreserveTilde(path)
	return fmt.Sprintf("if [ -f %[1]s ]; then wc -l < %[1]s; else echo 0; fi", p)
}

// Collect runs one count command per category. Any failure fails the
// whole snapshot and cancels the remaining commands.
func (a *Aggregator) Collect(ctx context.Context, ex remote.Executor) (Snapshot, error) {
	for _, c := range record.All {
		if a.paths[c] == "" {
			return Snapshot{}, errors.New(errors.ErrConfig,
				"No file configured for category "+c.String(),
				"Set files."+c.String()+" in gea.yaml")
		}
	}

	var (
		mu     sync.Mutex
		counts = make(map[record.Category]int, len(record.All))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, c := range record.All {
		path := a.paths[c]
		g.Go(func() error {
			n, err := a.count(gctx, ex, c, path)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[c] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := NewSnapshot(counts, a.now())
	a.log.Debug("Collected stats: total %d", snap.Total)
	return snap, nil
}

func (a *Aggregator) count(ctx context.Context, ex remote.Executor, c record.Category, path string) (int, error) {
	out, err := ex.Run(ctx, countCommand(path), nil)
	if err != nil {
		return 0, err
	}
	if out.ExitCode != 0 {
		return 0, remote.CommandError("Counting "+c.String()+" records", out)
	}

	raw := strings.TrimSpace(out.Stdout)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(errors.ErrRemote,
			fmt.Sprintf("Unexpected line count for %s: %q", path, util.Truncate(raw, 40)),
			"Check that wc is available on the remote host")
	}
	a.log.Debug("%s: %d lines", path, n)
	return n, nil
}
