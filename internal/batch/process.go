// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/engine"
	"github.com/pdiddy/doc-mill/pkg/types"
)

// Retry backoff bounds. Package-level so tests can shrink the waits.
var (
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 10 * time.Second
)

// ProcessingError is a document that failed after every attempt. It carries
// the attempt count and the last underlying engine error.
type ProcessingError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Processor converts one document at a time: invoke the engine under a
// per-attempt timeout, retry transient failures with exponential backoff,
// and write the Markdown atomically. Safe for concurrent use; it holds no
// per-file state.
type Processor struct {
	engine engine.Engine
	cfg    types.BatchConfig
	logger *zap.Logger
}

func NewProcessor(eng engine.Engine, cfg types.BatchConfig, logger *zap.Logger) *Processor {
	return &Processor{engine: eng, cfg: cfg, logger: logger}
}

// Process runs one task to a terminal result. The result always has a
// terminal status; err is non-nil only for failures, as a *ProcessingError.
func (p *Processor) Process(ctx context.Context, task types.Task) (types.Result, error) {
	start := time.Now()
	outPath := OutputPath(task.Path, task.OutputDir)

	if p.cfg.SkipExisting {
		if _, err := os.Stat(outPath); err == nil {
			p.logger.Debug("output already exists", zap.String("path", task.Path))
			return types.Result{
				Path:     task.Path,
				Status:   types.StatusSkipped,
				Reason:   "output already exists",
				Duration: time.Since(start),
			}, nil
		}
	}

	markdown, attempts, err := p.convertWithRetry(ctx, task.Path)
	if err == nil {
		if p.cfg.Frontmatter {
			markdown = addFrontmatter(task.Path, p.engine.Name(), markdown)
		}
		if werr := writeAtomic(outPath, markdown); werr != nil {
			err = fmt.Errorf("writing output: %w", werr)
		}
	}
	if err != nil {
		perr := &ProcessingError{Path: task.Path, Attempts: attempts, Err: err}
		return types.Result{
			Path:     task.Path,
			Status:   types.StatusFailed,
			Attempts: attempts,
			Error:    err.Error(),
			Duration: time.Since(start),
		}, perr
	}

	p.logger.Debug("converted",
		zap.String("path", task.Path),
		zap.String("output", outPath),
		zap.Int("attempts", attempts))
	return types.Result{
		Path:       task.Path,
		Status:     types.StatusSuccess,
		OutputPath: outPath,
		OutputSize: int64(len(markdown)),
		Attempts:   attempts,
		Duration:   time.Since(start),
	}, nil
}

// convertWithRetry invokes the engine up to Retries+1 times. Backoff waits
// double from retryBaseDelay and are cancellable; cancellation of the run
// context stops retrying immediately, a per-attempt timeout does not.
func (p *Processor) convertWithRetry(ctx context.Context, path string) (string, int, error) {
	attempts := 0
	var lastErr error
	for i := 0; i <= p.cfg.Retries; i++ {
		if i > 0 {
			delay := backoffDelay(i)
			p.logger.Debug("retrying conversion",
				zap.String("path", path),
				zap.Int("attempt", i+1),
				zap.Duration("backoff", delay))
			select {
			case <-ctx.Done():
				return "", attempts, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return "", attempts, err
		}

		attempts++
		markdown, err := p.convertOnce(ctx, path)
		if err == nil {
			return markdown, attempts, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// The whole run is being torn down; retrying is pointless.
			return "", attempts, err
		}
	}
	return "", attempts, lastErr
}

// convertOnce runs a single engine attempt bounded by the per-file timeout.
// Output that trims to nothing is a failure: an empty Markdown file must
// never pass as a successful conversion.
func (p *Processor) convertOnce(ctx context.Context, path string) (string, error) {
	attemptCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	markdown, err := p.engine.Convert(attemptCtx, path)
	if err != nil {
		if p.cfg.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w (limit %s)", err, p.cfg.Timeout)
		}
		return "", err
	}
	if strings.TrimSpace(markdown) == "" {
		return "", errors.New("engine produced empty output")
	}
	return markdown, nil
}

// backoffDelay returns the wait before retry n (1-based): base doubled per
// retry, capped at retryMaxDelay.
func backoffDelay(n int) time.Duration {
	d := retryBaseDelay << (n - 1)
	if d > retryMaxDelay || d <= 0 {
		return retryMaxDelay
	}
	return d
}

// OutputPath returns the Markdown destination for an input document:
// the input's stem with a .md extension under outDir.
func OutputPath(inputPath, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outDir, base+".md")
}

// writeAtomic writes content through a dot-prefixed temp file in the
// destination directory and renames it into place, so a crash or kill never
// leaves a truncated file at the final name.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// addFrontmatter prepends YAML frontmatter to converted Markdown.
func addFrontmatter(sourcePath, engineName, body string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "source: %q\n", sourcePath)
	fmt.Fprintf(&b, "converted_at: %q\n", ts)
	fmt.Fprintf(&b, "engine: %q\n", engineName)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}
