// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// OCRMode controls when the conversion engine runs OCR on page images.
type OCRMode string

const (
	OCRAlways OCRMode = "always"
	OCRAuto   OCRMode = "auto"
	OCRNever  OCRMode = "never"
)

// TableMode selects the engine's table structure recognition model.
type TableMode string

const (
	TableFast     TableMode = "fast"
	TableAccurate TableMode = "accurate"
)

// EngineKind identifies how the conversion engine is invoked.
type EngineKind string

const (
	EngineAuto    EngineKind = "auto"
	EngineDocker  EngineKind = "docker"
	EnginePodman  EngineKind = "podman"
	EngineBinary  EngineKind = "binary"
	EngineService EngineKind = "service"
)

// ConvertOptions holds the per-document conversion settings passed through
// to the engine. Fixed for the lifetime of a batch run.
type ConvertOptions struct {
	// OCR controls OCR behavior: always, auto, or never.
	OCR OCRMode `json:"ocr" yaml:"ocr"`

	// TableMode selects table recognition quality: fast or accurate.
	TableMode TableMode `json:"table_mode" yaml:"table_mode"`

	// DisableTables turns off table structure recognition entirely.
	DisableTables bool `json:"disable_tables" yaml:"disable_tables"`

	// Enrichment enables code, formula, and image classification.
	Enrichment bool `json:"enrichment" yaml:"enrichment"`

	// MaxPages is the page ceiling per document (default 1000).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// ArtifactsPath points the engine at a local model directory instead of
	// its own cache. Also the destination for `doc-mill pull`.
	ArtifactsPath string `json:"artifacts_path,omitempty" yaml:"artifacts_path,omitempty"`

	// RemoteServices allows the engine to call remote recognition services.
	RemoteServices bool `json:"remote_services" yaml:"remote_services"`
}

// EngineConfig holds settings for locating and invoking the engine.
type EngineConfig struct {
	// Kind selects the invocation strategy: auto, docker, podman, binary,
	// or service.
	Kind EngineKind `json:"kind" yaml:"kind"`

	// Image is the container image for docker/podman engines.
	Image string `json:"image" yaml:"image"`

	// Binary is the executable name or path for the binary engine.
	Binary string `json:"binary" yaml:"binary"`

	// ServiceURL is the base URL for the service engine.
	ServiceURL string `json:"service_url,omitempty" yaml:"service_url,omitempty"`

	// SecretsDir is the directory of credential files (service API token).
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir"`
}

// BatchConfig holds settings for a batch conversion run.
type BatchConfig struct {
	// InputDir is scanned recursively for candidate documents.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// OutputDir receives one <stem>.md per converted document.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Workers is the number of concurrent conversions. Clamped at run time
	// by CPU count and available memory.
	Workers int `json:"workers" yaml:"workers"`

	// Timeout bounds a single conversion attempt (default 5m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxFileSize is the per-file size ceiling in bytes (default 100 MiB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Retries is the number of retries after a failed attempt; retries=2
	// means up to three attempts per file.
	Retries int `json:"retries" yaml:"retries"`

	// ContinueOnError keeps the batch running after a file fails. When
	// false the first failure aborts the remaining batch.
	ContinueOnError bool `json:"continue_on_error" yaml:"continue_on_error"`

	// SkipExisting skips inputs whose Markdown output already exists.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`

	// Frontmatter prepends YAML frontmatter to each converted document.
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter"`

	// DryRun lists the files that would be processed and stops.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

// HistoryConfig holds settings for the batch-run history store.
type HistoryConfig struct {
	// Dir is the directory holding the history database.
	Dir string `json:"dir" yaml:"dir"`

	// Disabled turns off run recording.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// ArtifactsConfig holds settings for model artifact prefetch.
type ArtifactsConfig struct {
	// ManifestURL locates the YAML manifest listing model files.
	ManifestURL string `json:"manifest_url,omitempty" yaml:"manifest_url,omitempty"`

	// DownloadDelay is the pause between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`
}

// LogConfig holds logging settings shared by every command.
type LogConfig struct {
	// Verbose lowers the console level to debug.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Quiet raises the console level to error.
	Quiet bool `json:"quiet" yaml:"quiet"`

	// File, when set, receives a debug-level copy of every log entry.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Config groups every setting for a doc-mill invocation.
type Config struct {
	Batch      BatchConfig     `json:"batch" yaml:"batch"`
	Conversion ConvertOptions  `json:"conversion" yaml:"conversion"`
	Engine     EngineConfig    `json:"engine" yaml:"engine"`
	History    HistoryConfig   `json:"history" yaml:"history"`
	Artifacts  ArtifactsConfig `json:"artifacts" yaml:"artifacts"`
	Log        LogConfig       `json:"log" yaml:"log"`
}

// DefaultWorkers returns the default worker count: 4, or the CPU count when
// the machine has fewer than 4 logical CPUs.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	return n
}

// DefaultConfig returns a Config populated with defaults. Directories are
// left empty; they are required and have no sensible default.
func DefaultConfig() Config {
	return Config{
		Batch: BatchConfig{
			Workers:     DefaultWorkers(),
			Timeout:     5 * time.Minute,
			MaxFileSize: 100 << 20,
			Retries:     2,
		},
		Conversion: ConvertOptions{
			OCR:       OCRAlways,
			TableMode: TableAccurate,
			MaxPages:  1000,
		},
		Engine: EngineConfig{
			Kind:       EngineAuto,
			Image:      "docling:latest",
			Binary:     "docling",
			SecretsDir: ".secrets/",
		},
		History: HistoryConfig{
			Dir: ".doc-mill",
		},
		Artifacts: ArtifactsConfig{
			DownloadDelay: time.Second,
		},
	}
}

// Validate checks the configuration for a batch run. It returns the first
// problem found; a non-nil result is a configuration error and the run must
// not start.
func (c *Config) Validate() error {
	if c.Batch.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	info, err := os.Stat(c.Batch.InputDir)
	if err != nil {
		return fmt.Errorf("input directory %s: %w", c.Batch.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", c.Batch.InputDir)
	}
	if c.Batch.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := checkOutputOutsideInput(c.Batch.InputDir, c.Batch.OutputDir); err != nil {
		return err
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Batch.Timeout)
	}
	if c.Batch.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.Batch.MaxFileSize)
	}
	if c.Batch.Retries < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", c.Batch.Retries)
	}
	if c.Conversion.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1, got %d", c.Conversion.MaxPages)
	}

	switch c.Conversion.OCR {
	case OCRAlways, OCRAuto, OCRNever:
	default:
		return fmt.Errorf("invalid OCR mode %q (want always, auto, or never)", c.Conversion.OCR)
	}
	switch c.Conversion.TableMode {
	case TableFast, TableAccurate:
	default:
		return fmt.Errorf("invalid table mode %q (want fast or accurate)", c.Conversion.TableMode)
	}
	switch c.Engine.Kind {
	case EngineAuto, EngineDocker, EnginePodman, EngineBinary, EngineService:
	default:
		return fmt.Errorf("invalid engine kind %q (want auto, docker, podman, binary, or service)", c.Engine.Kind)
	}
	if c.Engine.Kind == EngineService && c.Engine.ServiceURL == "" {
		return fmt.Errorf("service engine requires a service URL")
	}

	return nil
}

// checkOutputOutsideInput rejects an output directory equal to or nested
// inside the input directory; converted Markdown would be rediscovered as
// input on the next run.
func checkOutputOutsideInput(inputDir, outputDir string) error {
	inAbs, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolving input directory: %w", err)
	}
	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	rel, err := filepath.Rel(inAbs, outAbs)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("output directory %s must be outside the input directory %s", outputDir, inputDir)
	}
	return nil
}
