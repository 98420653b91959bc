// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-mill/pkg/types"
)

const (
	// maxFailedListed caps the failed-file list in the console report.
	maxFailedListed = 10
	// maxDryRunListed caps the dry-run listing.
	maxDryRunListed = 10
)

// WriteReport renders the human-readable batch report to w.
func WriteReport(w io.Writer, summary *types.RunSummary) {
	s := summary.Stats
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		s.Successful, s.Skipped, s.Failed, s.Total)
	if s.Total == 0 {
		return
	}

	fmt.Fprintf(w, "Duration: %s", FormatDuration(s.Duration()))
	if processed := s.Successful + s.Failed; processed > 0 {
		fmt.Fprintf(w, " | success rate: %.1f%% | avg per file: %s",
			s.SuccessRate(), FormatDuration(s.AveragePerFile()))
	}
	fmt.Fprintln(w)

	if summary.Interrupted {
		fmt.Fprintln(w, "Run interrupted; unprocessed files were skipped.")
	}

	failed := summary.FailedResults()
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed files:")
	shown := failed
	if len(shown) > maxFailedListed {
		shown = shown[:maxFailedListed]
	}
	for _, f := range shown {
		fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
	}
	if extra := len(failed) - maxFailedListed; extra > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", extra)
	}
}

// ListDryRun prints the documents a run would convert.
func ListDryRun(w io.Writer, paths []string) {
	fmt.Fprintf(w, "Dry run: %d file(s) would be converted\n", len(paths))
	shown := paths
	if len(shown) > maxDryRunListed {
		shown = shown[:maxDryRunListed]
	}
	for _, p := range shown {
		fmt.Fprintf(w, "  %s\n", p)
	}
	if extra := len(paths) - maxDryRunListed; extra > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", extra)
	}
}

// WriteYAML exports the machine-readable run summary, atomically like any
// other output file.
func WriteYAML(path string, summary *types.RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	if err := writeAtomic(path, string(data)); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

// FormatDuration trims a duration for display.
func FormatDuration(d time.Duration) string {
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

// formatBytes renders a byte count with IEC units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
