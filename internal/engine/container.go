// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/container"
	"github.com/pdiddy/doc-mill/pkg/types"
)

// containerArtifactsDir is where a host artifacts directory is mounted
// inside the engine container.
const containerArtifactsDir = "/artifacts"

// containerEngine runs the engine image through a container runtime, one
// container per document. Documents are piped over stdin so no input
// directory mount is needed.
type containerEngine struct {
	runtime container.Runtime
	image   string
	opts    types.ConvertOptions
	mounts  []string
	logger  *zap.Logger
}

func newContainerEngine(rt container.Runtime, image string, opts types.ConvertOptions, logger *zap.Logger) (*containerEngine, error) {
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("engine image not available in %s: %w", rt.Name(), err)
	}

	e := &containerEngine{runtime: rt, image: image, opts: opts, logger: logger}
	if opts.ArtifactsPath != "" {
		abs, err := filepath.Abs(opts.ArtifactsPath)
		if err != nil {
			return nil, fmt.Errorf("resolving artifacts path: %w", err)
		}
		e.mounts = []string{abs + ":" + containerArtifactsDir + ":ro"}
		// Inside the container the models live at the mount point, not at
		// the host path.
		e.opts.ArtifactsPath = containerArtifactsDir
	}
	return e, nil
}

func (e *containerEngine) Name() string {
	return fmt.Sprintf("%s (%s)", e.runtime.Name(), e.image)
}

func (e *containerEngine) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()

	e.logger.Debug("invoking container engine", zap.String("path", path), zap.String("image", e.image))

	var stdout, stderr bytes.Buffer
	spec := container.RunSpec{
		Image:  e.image,
		Args:   buildArgs(path, e.opts),
		Mounts: e.mounts,
	}
	if err := e.runtime.Run(ctx, spec, f, &stdout, &stderr); err != nil {
		return "", convertError(ctx, path, stderr.String(), err)
	}
	return stdout.String(), nil
}
