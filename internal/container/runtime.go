// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and execution
// for the conversion engine image.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// RunSpec describes one container invocation: the image, the argv passed to
// the image entrypoint, and any bind mounts the engine needs (for example a
// local model directory).
type RunSpec struct {
	Image string

	// Args is appended after the image name and reaches the engine.
	Args []string

	// Mounts are host:container bind specs passed with -v.
	Mounts []string
}

// Runtime provides container operations: checking availability, verifying
// and pulling images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Pull fetches the named image, streaming the runtime's progress
	// output to w.
	Pull(ctx context.Context, image string, w io.Writer) error

	// Run executes a container described by spec, piping stdin and stdout
	// and capturing stderr. The context cancels the container process.
	Run(ctx context.Context, spec RunSpec, stdin io.Reader, stdout, stderr io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Pull(ctx context.Context, image string, w io.Writer) error {
	if err := r.exec.RunPiped(ctx, r.bin, []string{"pull", image}, nil, w, w); err != nil {
		return fmt.Errorf("pulling image %s with %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, spec RunSpec, stdin io.Reader, stdout, stderr io.Writer) error {
	args := []string{"run", "--rm", "-i"}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Args...)

	if err := r.exec.RunPiped(ctx, r.bin, args, stdin, stdout, stderr); err != nil {
		return fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// NewRuntime returns the named runtime and verifies it is operational. Use
// DetectRuntime when the caller has no preference.
func NewRuntime(name string) (Runtime, error) {
	return newNamedRuntime(name, defaultExec)
}

func newNamedRuntime(name string, exec executor) (Runtime, error) {
	var rt *runtime
	switch name {
	case binDocker:
		rt = newDockerRuntime(exec)
	case binPodman:
		rt = newPodmanRuntime(exec)
	default:
		return nil, fmt.Errorf("unknown container runtime %q", name)
	}
	if !rt.Available() {
		return nil, fmt.Errorf("container runtime %s is not available", name)
	}
	return rt, nil
}
