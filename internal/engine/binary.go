// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// binaryEngine runs a locally installed engine binary, one process per
// document.
type binaryEngine struct {
	path   string
	opts   types.ConvertOptions
	logger *zap.Logger
}

func newBinaryEngine(bin string, opts types.ConvertOptions, logger *zap.Logger) (*binaryEngine, error) {
	if bin == "" {
		return nil, fmt.Errorf("no engine binary configured")
	}
	path, err := findBinary(bin)
	if err != nil {
		return nil, err
	}
	return &binaryEngine{path: path, opts: opts, logger: logger}, nil
}

// findBinary resolves the engine binary. Explicit paths are checked
// directly; bare names go through PATH and then a few usual install
// locations that login-shell PATHs have but service environments often
// lack.
func findBinary(bin string) (string, error) {
	if strings.ContainsRune(bin, os.PathSeparator) {
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("engine binary %s: %w", bin, err)
		}
		return bin, nil
	}

	if path, err := exec.LookPath(bin); err == nil {
		return path, nil
	}

	candidates := []string{
		filepath.Join("/usr/local/bin", bin),
		filepath.Join("/opt/homebrew/bin", bin),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", bin))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("engine binary %q not found on PATH (install it or use the container engine)", bin)
}

func (e *binaryEngine) Name() string {
	return fmt.Sprintf("binary (%s)", e.path)
}

func (e *binaryEngine) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()

	e.logger.Debug("invoking binary engine", zap.String("path", path), zap.String("binary", e.path))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, buildArgs(path, e.opts)...)
	cmd.Stdin = f
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", convertError(ctx, path, stderr.String(), err)
	}
	return stdout.String(), nil
}
