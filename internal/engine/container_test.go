// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/container"
)

// fakeRuntime implements container.Runtime without a container daemon.
type fakeRuntime struct {
	imageErr error
	runErr   error
	stdout   string
	stderr   string

	lastSpec  container.RunSpec
	lastStdin string
}

func (f *fakeRuntime) Name() string                   { return "fake" }
func (f *fakeRuntime) Available() bool                { return true }
func (f *fakeRuntime) ImageExists(image string) error { return f.imageErr }

func (f *fakeRuntime) Pull(ctx context.Context, image string, w io.Writer) error { return nil }

func (f *fakeRuntime) Run(ctx context.Context, spec container.RunSpec, stdin io.Reader, stdout, stderr io.Writer) error {
	f.lastSpec = spec
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.lastStdin = string(b)
	}
	io.WriteString(stdout, f.stdout)
	io.WriteString(stderr, f.stderr)
	return f.runErr
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestContainerEngineConvert(t *testing.T) {
	rt := &fakeRuntime{stdout: "# Converted\n"}
	eng, err := newContainerEngine(rt, "docling:latest", defaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatalf("newContainerEngine() error: %v", err)
	}

	doc := writeDoc(t, "paper.pdf", "%PDF-1.4 fake")
	md, err := eng.Convert(context.Background(), doc)
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if md != "# Converted\n" {
		t.Errorf("markdown = %q, want %q", md, "# Converted\n")
	}
	if rt.lastStdin != "%PDF-1.4 fake" {
		t.Errorf("document was not piped to the engine, stdin = %q", rt.lastStdin)
	}
	if rt.lastSpec.Image != "docling:latest" {
		t.Errorf("image = %q, want %q", rt.lastSpec.Image, "docling:latest")
	}
	if got := strings.Join(rt.lastSpec.Args, " "); !strings.Contains(got, "--from pdf") {
		t.Errorf("args %q should carry the format hint", got)
	}
}

func TestContainerEngineMountsArtifacts(t *testing.T) {
	artifacts := t.TempDir()
	opts := defaultOptions()
	opts.ArtifactsPath = artifacts

	rt := &fakeRuntime{stdout: "ok"}
	eng, err := newContainerEngine(rt, "docling:latest", opts, zap.NewNop())
	if err != nil {
		t.Fatalf("newContainerEngine() error: %v", err)
	}

	doc := writeDoc(t, "a.pdf", "x")
	if _, err := eng.Convert(context.Background(), doc); err != nil {
		t.Fatalf("Convert() error: %v", err)
	}

	if len(rt.lastSpec.Mounts) != 1 || !strings.HasSuffix(rt.lastSpec.Mounts[0], ":"+containerArtifactsDir+":ro") {
		t.Errorf("mounts = %v, want a read-only artifacts mount", rt.lastSpec.Mounts)
	}
	args := strings.Join(rt.lastSpec.Args, " ")
	if !strings.Contains(args, "--artifacts-path "+containerArtifactsDir) {
		t.Errorf("args %q should point the engine at the container mount", args)
	}
}

func TestContainerEngineReportsStderr(t *testing.T) {
	rt := &fakeRuntime{stderr: "OCR model missing\n", runErr: errors.New("exit status 1")}
	eng, err := newContainerEngine(rt, "docling:latest", defaultOptions(), zap.NewNop())
	if err != nil {
		t.Fatalf("newContainerEngine() error: %v", err)
	}

	doc := writeDoc(t, "a.pdf", "x")
	_, err = eng.Convert(context.Background(), doc)
	if err == nil {
		t.Fatal("Convert() should fail when the engine fails")
	}

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error %T should be a *ConversionError", err)
	}
	if convErr.Stderr != "OCR model missing" {
		t.Errorf("Stderr = %q, want %q", convErr.Stderr, "OCR model missing")
	}
}

func TestNewContainerEngineRequiresImage(t *testing.T) {
	rt := &fakeRuntime{imageErr: errors.New("image not found locally")}
	_, err := newContainerEngine(rt, "docling:latest", defaultOptions(), zap.NewNop())
	if err == nil {
		t.Fatal("newContainerEngine() should fail when the image is missing")
	}
}
