package main

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// addConvertFlags registers the batch, conversion, and engine flags shared
// by the convert and tui commands.
func addConvertFlags(cmd *cobra.Command) {
	def := types.DefaultConfig()
	f := cmd.Flags()

	f.StringP("input", "i", "", "input directory scanned recursively for documents")
	f.StringP("output", "o", "", "output directory for converted Markdown")
	f.Int("workers", def.Batch.Workers, "concurrent conversions (clamped to host capacity)")
	f.Duration("timeout", def.Batch.Timeout, "per-attempt conversion timeout")
	f.Int64("max-file-size", def.Batch.MaxFileSize, "per-file size ceiling in bytes")
	f.Int("retry", def.Batch.Retries, "retries after a failed attempt (2 means up to 3 attempts)")
	f.Bool("continue-on-error", def.Batch.ContinueOnError, "keep converting after a file fails")
	f.Bool("skip-existing", def.Batch.SkipExisting, "skip inputs whose Markdown already exists")
	f.Bool("frontmatter", def.Batch.Frontmatter, "prepend YAML frontmatter to converted documents")
	f.Bool("dry-run", false, "list the files that would be converted and exit")

	f.String("ocr", string(def.Conversion.OCR), "OCR mode: always, auto, or never")
	f.String("table-mode", string(def.Conversion.TableMode), "table recognition: fast or accurate")
	f.Bool("disable-tables", def.Conversion.DisableTables, "turn off table structure recognition")
	f.Bool("enrichment", def.Conversion.Enrichment, "enable code, formula, and image classification")
	f.Int("max-pages", def.Conversion.MaxPages, "page ceiling per document")
	f.String("artifacts-path", "", "local model artifacts directory for the engine")
	f.Bool("remote-services", def.Conversion.RemoteServices, "allow the engine to call remote recognition services")

	f.String("engine", string(def.Engine.Kind), "engine: auto, docker, podman, binary, or service")
	f.String("engine-image", def.Engine.Image, "container image for docker/podman engines")
	f.String("engine-binary", def.Engine.Binary, "executable for the binary engine")
	f.String("service-url", "", "base URL for the service engine")

	f.String("report-file", "", "write the run summary as YAML to this file")
	f.String("history-dir", def.History.Dir, "directory holding the run history database")
	f.Bool("no-history", def.History.Disabled, "do not record this run in the history store")
}

// buildConfig layers the effective configuration: defaults, then the config
// file and DOC_MILL_* environment, then any flag the user set explicitly.
// Flags the command does not define are simply never applied, so every
// command can share this.
func buildConfig(cmd *cobra.Command) (types.Config, error) {
	cfg := types.DefaultConfig()

	// The config file uses the same yaml keys the report writer emits.
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return cfg, fmt.Errorf("applying config file: %w", err)
	}

	f := cmd.Flags()
	overrideString(f, "input", &cfg.Batch.InputDir)
	overrideString(f, "output", &cfg.Batch.OutputDir)
	overrideInt(f, "workers", &cfg.Batch.Workers)
	overrideDuration(f, "timeout", &cfg.Batch.Timeout)
	overrideInt64(f, "max-file-size", &cfg.Batch.MaxFileSize)
	overrideInt(f, "retry", &cfg.Batch.Retries)
	overrideBool(f, "continue-on-error", &cfg.Batch.ContinueOnError)
	overrideBool(f, "skip-existing", &cfg.Batch.SkipExisting)
	overrideBool(f, "frontmatter", &cfg.Batch.Frontmatter)
	overrideBool(f, "dry-run", &cfg.Batch.DryRun)

	if f.Changed("ocr") {
		v, _ := f.GetString("ocr")
		cfg.Conversion.OCR = types.OCRMode(v)
	}
	if f.Changed("table-mode") {
		v, _ := f.GetString("table-mode")
		cfg.Conversion.TableMode = types.TableMode(v)
	}
	overrideBool(f, "disable-tables", &cfg.Conversion.DisableTables)
	overrideBool(f, "enrichment", &cfg.Conversion.Enrichment)
	overrideInt(f, "max-pages", &cfg.Conversion.MaxPages)
	overrideString(f, "artifacts-path", &cfg.Conversion.ArtifactsPath)
	overrideBool(f, "remote-services", &cfg.Conversion.RemoteServices)

	if f.Changed("engine") {
		v, _ := f.GetString("engine")
		cfg.Engine.Kind = types.EngineKind(v)
	}
	overrideString(f, "engine-image", &cfg.Engine.Image)
	overrideString(f, "engine-binary", &cfg.Engine.Binary)
	overrideString(f, "service-url", &cfg.Engine.ServiceURL)

	overrideString(f, "history-dir", &cfg.History.Dir)
	overrideBool(f, "no-history", &cfg.History.Disabled)

	overrideString(f, "manifest-url", &cfg.Artifacts.ManifestURL)
	overrideDuration(f, "download-delay", &cfg.Artifacts.DownloadDelay)

	overrideBool(f, "verbose", &cfg.Log.Verbose)
	overrideBool(f, "quiet", &cfg.Log.Quiet)
	overrideString(f, "log-file", &cfg.Log.File)

	return cfg, nil
}

func overrideString(f *pflag.FlagSet, name string, dst *string) {
	if f.Changed(name) {
		*dst, _ = f.GetString(name)
	}
}

func overrideBool(f *pflag.FlagSet, name string, dst *bool) {
	if f.Changed(name) {
		*dst, _ = f.GetBool(name)
	}
}

func overrideInt(f *pflag.FlagSet, name string, dst *int) {
	if f.Changed(name) {
		*dst, _ = f.GetInt(name)
	}
}

func overrideInt64(f *pflag.FlagSet, name string, dst *int64) {
	if f.Changed(name) {
		*dst, _ = f.GetInt64(name)
	}
}

func overrideDuration(f *pflag.FlagSet, name string, dst *time.Duration) {
	if f.Changed(name) {
		*dst, _ = f.GetDuration(name)
	}
}
