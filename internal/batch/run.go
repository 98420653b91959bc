// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/engine"
	"github.com/pdiddy/doc-mill/pkg/types"
)

// Progress observes the lifecycle of a run. Implementations must be safe
// for concurrent use; worker goroutines call them directly.
type Progress interface {
	// BatchStarted fires once after discovery with the number of candidates
	// the run will account for. Not fired for empty batches or dry runs.
	BatchStarted(total int)
	// FileStarted fires when a worker picks up a document.
	FileStarted(path string)
	// FileFinished fires with the terminal result of a document, including
	// validation skips that never reached a worker.
	FileFinished(res types.Result)
}

type nopProgress struct{}

func (nopProgress) BatchStarted(int)          {}
func (nopProgress) FileStarted(string)        {}
func (nopProgress) FileFinished(types.Result) {}

// Runner coordinates a batch run: discover, validate, dispatch to a worker
// pool, collect, summarize. One Runner runs one batch.
type Runner struct {
	processor *Processor
	cfg       types.BatchConfig
	opts      types.ConvertOptions
	logger    *zap.Logger

	// Progress observes per-file events. Set before Run; defaults to a
	// no-op.
	Progress Progress

	// Out receives the dry-run listing. Defaults to stdout.
	Out io.Writer
}

func NewRunner(eng engine.Engine, cfg types.BatchConfig, opts types.ConvertOptions, logger *zap.Logger) *Runner {
	return &Runner{
		processor: NewProcessor(eng, cfg, logger),
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		Progress:  nopProgress{},
		Out:       os.Stdout,
	}
}

// Run executes the batch. The returned summary is complete even when the
// run aborts on first failure or is cancelled: every discovered document
// has exactly one terminal result, so the counters always add up to the
// total. The error return covers discovery problems only.
func (r *Runner) Run(ctx context.Context) (*types.RunSummary, error) {
	summary := &types.RunSummary{
		RunID:     uuid.NewString(),
		InputDir:  r.cfg.InputDir,
		OutputDir: r.cfg.OutputDir,
	}
	summary.Stats.StartTime = time.Now()

	paths, err := Discover(r.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	summary.Stats.Total = len(paths)
	summary.Results = make([]types.Result, len(paths))

	if len(paths) == 0 {
		r.logger.Info("no convertible documents found", zap.String("input", r.cfg.InputDir))
		summary.Stats.EndTime = time.Now()
		return summary, nil
	}
	r.logger.Info("discovered documents",
		zap.Int("count", len(paths)),
		zap.String("input", r.cfg.InputDir))

	order := make(map[string]int, len(paths))
	for i, p := range paths {
		order[p] = i
	}

	if r.cfg.DryRun {
		ListDryRun(r.Out, paths)
		for _, p := range paths {
			r.collect(summary, order, types.Result{Path: p, Status: types.StatusSkipped, Reason: "dry run"})
		}
		summary.Stats.EndTime = time.Now()
		return summary, nil
	}

	r.Progress.BatchStarted(len(paths))

	// Validation skips never consume a worker.
	var tasks []types.Task
	for _, p := range paths {
		if verr := Validate(p, r.cfg.MaxFileSize); verr != nil {
			r.logger.Debug("skipping invalid file", zap.String("path", p), zap.String("reason", verr.Error()))
			res := types.Result{Path: p, Status: types.StatusSkipped, Reason: verr.Error()}
			r.collect(summary, order, res)
			r.Progress.FileFinished(res)
			continue
		}
		tasks = append(tasks, r.taskFor(p))
	}

	if len(tasks) > 0 {
		r.dispatch(ctx, summary, order, tasks)
	}

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	summary.Stats.EndTime = time.Now()
	return summary, nil
}

// dispatch fans tasks out to the worker pool and collects results until
// every task has one. With continue-on-error disabled the first failure
// cancels the pool; tasks not yet started are recorded as skipped, so the
// summary stays complete.
func (r *Runner) dispatch(ctx context.Context, summary *types.RunSummary, order map[string]int, tasks []types.Task) {
	workers := r.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// aborted distinguishes a first-failure shutdown from external
	// cancellation when naming the skip reason.
	var aborted atomic.Bool

	jobs := make(chan types.Task, len(tasks))
	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)

	results := make(chan types.Result)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- r.runTask(runCtx, &aborted, task)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		r.collect(summary, order, res)
		if res.Status == types.StatusFailed && !r.cfg.ContinueOnError && runCtx.Err() == nil {
			r.logger.Warn("aborting batch on first failure", zap.String("path", res.Path))
			aborted.Store(true)
			cancel()
		}
	}
}

// runTask runs one task to a terminal result. Cancellation, whether from an
// abort or from outside, turns unfinished tasks into skips rather than
// failures. A worker panic is confined to its task.
func (r *Runner) runTask(ctx context.Context, aborted *atomic.Bool, task types.Task) (res types.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while processing file",
				zap.String("path", task.Path),
				zap.Any("panic", p))
			res = types.Result{
				Path:   task.Path,
				Status: types.StatusFailed,
				Error:  fmt.Sprintf("internal error: %v", p),
			}
			r.Progress.FileFinished(res)
		}
	}()

	skipReason := func() string {
		if aborted.Load() {
			return "batch aborted"
		}
		return "cancelled"
	}

	if ctx.Err() != nil {
		res = types.Result{Path: task.Path, Status: types.StatusSkipped, Reason: skipReason()}
		r.Progress.FileFinished(res)
		return res
	}

	r.Progress.FileStarted(task.Path)
	res, err := r.processor.Process(ctx, task)
	if err != nil && errors.Is(err, context.Canceled) {
		res = types.Result{
			Path:     task.Path,
			Status:   types.StatusSkipped,
			Reason:   skipReason(),
			Duration: res.Duration,
		}
	}
	r.Progress.FileFinished(res)
	return res
}

// collect records one terminal result. Only the collector goroutine touches
// the summary, so no locking is needed.
func (r *Runner) collect(summary *types.RunSummary, order map[string]int, res types.Result) {
	if i, ok := order[res.Path]; ok {
		summary.Results[i] = res
	}
	switch res.Status {
	case types.StatusSuccess:
		summary.Stats.Successful++
	case types.StatusFailed:
		summary.Stats.Failed++
	case types.StatusSkipped:
		summary.Stats.Skipped++
	}
}

// taskFor mirrors the input file's subdirectory under the output root.
func (r *Runner) taskFor(path string) types.Task {
	outDir := r.cfg.OutputDir
	if rel, err := filepath.Rel(r.cfg.InputDir, filepath.Dir(path)); err == nil && rel != "." {
		outDir = filepath.Join(outDir, rel)
	}
	return types.Task{Path: path, OutputDir: outDir, Options: r.opts}
}
