package metrics

import (
	"os"
	"path/filepath"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes all metrics in the text exposition format for the
// node_exporter textfile collector. The write is atomic (temp file + rename).
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create metrics directory", "Check metrics.textfile")
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write metrics textfile "+path, "Check metrics.textfile and directory permissions")
	}
	return nil
}
