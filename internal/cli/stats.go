package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gea-smc/gea/internal/capture"
	"github.com/gea-smc/gea/internal/record"
	"github.com/gea-smc/gea/internal/stats"
	"github.com/gea-smc/gea/internal/ui"
)

// StatsOptions holds options for the stats command.
type StatsOptions struct {
	Connect ConnectFlags
	In      *os.File
	Out     io.Writer
	Err     io.Writer
}

// StatsOutput is the --json result of the stats command.
type StatsOutput struct {
	Counts      map[string]int  `json:"counts"`
	Total       int             `json:"total"`
	Max         record.Category `json:"max"`
	Min         record.Category `json:"min"`
	CollectedAt time.Time       `json:"collected_at"`
}

func statsCommand(ctx context.Context, opts StatsOptions) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, opts.Err)

	if err := opts.Connect.Apply(cfg, opts.In, opts.Err); err != nil {
		return err
	}

	svcOpts := []capture.Option{
		capture.WithLogger(log),
		capture.WithMetrics(runMetrics),
		capture.WithNotifier(nil),
	}
	if !quiet && !machineMode {
		svcOpts = append(svcOpts, capture.WithObserver(ui.NewPhaseDisplay(opts.Err, ui.IsTerminal(os.Stderr))))
	}

	snap, err := capture.New(cfg, svcOpts...).Stats(ctx)
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(opts.Out, StatsOutput{
			Counts:      snap.ByKey(),
			Total:       snap.Total,
			Max:         snap.Max,
			Min:         snap.Min,
			CollectedAt: snap.CollectedAt,
		})
	}

	fmt.Fprintln(opts.Out, renderStats(snap))
	return nil
}

// renderStats renders a snapshot as the statistics table.
func renderStats(snap stats.Snapshot) string {
	rows := make([]ui.StatsRow, 0, len(record.All))
	for _, c := range record.All {
		rows = append(rows, ui.StatsRow{
			Label: c.Label(),
			Count: snap.Count(c),
			Max:   c == snap.Max,
			Min:   c == snap.Min,
		})
	}
	return ui.RenderStatsTable(rows, snap.Total)
}

func templateCommand(w io.Writer, key string) error {
	tmpl, err := capture.Template(key)
	if err != nil {
		return err
	}
	if machineMode {
		c, _ := record.ParseCategory(key)
		return WriteJSONSuccess(w, map[string]string{
			"category": c.String(),
			"label":    c.Label(),
			"template": tmpl,
		})
	}
	fmt.Fprintln(w, tmpl)
	return nil
}
