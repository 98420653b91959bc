// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine constructs and invokes the external document conversion
// engine. The engine does all document understanding (OCR, table structure,
// layout analysis); this package only locates it, feeds it documents, and
// returns its Markdown output.
//
// Three invocation strategies are supported: a container image run through
// docker or podman, a local binary, and a remote conversion service. All
// three share the same contract: document bytes in, Markdown out, options
// via argv or query parameters.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/container"
	"github.com/pdiddy/doc-mill/internal/secrets"
	"github.com/pdiddy/doc-mill/pkg/types"
)

// Engine converts a single document into Markdown. Implementations are safe
// for concurrent use; every Convert call runs an isolated engine process or
// request, so no conversion state is shared between files.
type Engine interface {
	// Name identifies the engine for logs and reports.
	Name() string

	// Convert reads the document at path and returns its Markdown. The
	// context bounds the conversion; on timeout or cancellation the
	// underlying process or request is killed.
	Convert(ctx context.Context, path string) (string, error)
}

// ConversionError is a failed engine invocation. It keeps the tail of the
// engine's stderr (or response body) so batch reports stay diagnosable.
type ConversionError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("converting %s: %v", e.Path, e.Err)
	if e.Stderr != "" {
		msg += " (engine: " + e.Stderr + ")"
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// serviceAPIKeyFile is the secrets-directory file holding the service
// engine's bearer token.
const serviceAPIKeyFile = "service-api-key"

// New builds the engine selected by cfg. With EngineAuto it prefers a
// container runtime and falls back to a local binary. Construction verifies
// the engine is actually usable (image present, binary found, service
// responding); a failure here is a configuration error and the batch must
// not start.
func New(cfg types.EngineConfig, opts types.ConvertOptions, logger *zap.Logger) (Engine, error) {
	switch cfg.Kind {
	case types.EngineDocker, types.EnginePodman:
		rt, err := container.NewRuntime(string(cfg.Kind))
		if err != nil {
			return nil, err
		}
		return newContainerEngine(rt, cfg.Image, opts, logger)

	case types.EngineBinary:
		return newBinaryEngine(cfg.Binary, opts, logger)

	case types.EngineService:
		token, err := loadServiceToken(cfg.SecretsDir)
		if err != nil {
			return nil, err
		}
		return newServiceEngine(cfg.ServiceURL, token, opts, logger)

	case types.EngineAuto, "":
		var containerErr error
		rt, err := container.DetectRuntime()
		if err == nil {
			eng, cerr := newContainerEngine(rt, cfg.Image, opts, logger)
			if cerr == nil {
				logger.Debug("selected container engine", zap.String("runtime", rt.Name()), zap.String("image", cfg.Image))
				return eng, nil
			}
			containerErr = cerr
		} else {
			containerErr = err
		}

		eng, berr := newBinaryEngine(cfg.Binary, opts, logger)
		if berr == nil {
			logger.Debug("selected binary engine", zap.String("binary", cfg.Binary))
			return eng, nil
		}
		return nil, fmt.Errorf("no conversion engine available: %v; %v", containerErr, berr)

	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

// loadServiceToken reads the service bearer token from the secrets
// directory. A missing directory or key is not an error; the service may be
// unauthenticated.
func loadServiceToken(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	s, err := secrets.Load(dir)
	if err != nil {
		return "", err
	}
	return s[serviceAPIKeyFile], nil
}

// buildArgs constructs the engine argv for one document. The trailing "-"
// tells the engine to read the document from stdin; --from carries the
// format hint the engine cannot sniff from a pipe.
func buildArgs(path string, opts types.ConvertOptions) []string {
	args := []string{"convert", "--to", "md"}

	if ext := formatHint(path); ext != "" {
		args = append(args, "--from", ext)
	}
	args = append(args, "--ocr", string(opts.OCR))
	args = append(args, "--table-mode", string(opts.TableMode))
	if opts.DisableTables {
		args = append(args, "--no-tables")
	}
	if opts.Enrichment {
		args = append(args, "--enrich")
	}
	if opts.MaxPages > 0 {
		args = append(args, "--max-pages", strconv.Itoa(opts.MaxPages))
	}
	if opts.ArtifactsPath != "" {
		args = append(args, "--artifacts-path", opts.ArtifactsPath)
	}
	if opts.RemoteServices {
		args = append(args, "--remote-services")
	}

	return append(args, "-")
}

// formatHint returns the lowercased extension without the dot.
func formatHint(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// convertError wraps an engine failure, translating a context deadline into
// a timeout message. Cancellation is passed through unwrapped-compatible so
// callers can stop retrying.
func convertError(ctx context.Context, path, stderr string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("conversion timed out: %w", context.DeadlineExceeded)
	} else if errors.Is(ctx.Err(), context.Canceled) {
		err = context.Canceled
	}
	return &ConversionError{Path: path, Stderr: stderrTail(stderr), Err: err}
}

// stderrTail keeps the last three lines of engine stderr.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " / ")
}
