package main

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// progressWriter picks the bar's destination; quiet runs drop it so piped
// output stays clean.
func progressWriter(quiet bool) io.Writer {
	if quiet {
		return io.Discard
	}
	return os.Stderr
}

// progressBar adapts a schollz progress bar to batch progress events.
// Worker goroutines report concurrently; the mutex serializes bar updates.
// Verbose runs also get a status line per finished file, printed above the
// bar.
type progressBar struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	bar     *progressbar.ProgressBar
}

func newProgressBar(out io.Writer, verbose bool) *progressBar {
	return &progressBar{out: out, verbose: verbose}
}

func (p *progressBar) BatchStarted(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressBar) FileStarted(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.Describe("converting " + filepath.Base(path))
}

func (p *progressBar) FileFinished(res types.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	// Failures always surface immediately, above the bar; the closing
	// report repeats them with full detail.
	switch res.Status {
	case types.StatusFailed:
		_, _ = progressbar.Bprintf(p.bar, "failed:    %s (%s)\n", res.Path, res.Error)
	case types.StatusSuccess:
		if p.verbose {
			_, _ = progressbar.Bprintf(p.bar, "converted: %s -> %s\n", res.Path, res.OutputPath)
		}
	case types.StatusSkipped:
		if p.verbose {
			_, _ = progressbar.Bprintf(p.bar, "skipped:   %s (%s)\n", res.Path, res.Reason)
		}
	}
	_ = p.bar.Add(1)
}

// Finish clears the bar so the report prints on a clean line. Safe to call
// even when the batch never started.
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
