package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/batch"
	"github.com/pdiddy/doc-mill/internal/engine"
	"github.com/pdiddy/doc-mill/internal/history"
	"github.com/pdiddy/doc-mill/internal/logging"
	"github.com/pdiddy/doc-mill/internal/resources"
	"github.com/pdiddy/doc-mill/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a directory of documents to Markdown",
	Long: `Convert scans the input directory recursively for supported documents,
converts each one with the docling engine, and writes one Markdown file per
document (<stem>.md), mirroring the input layout under the output
directory.

Conversions run concurrently, transient failures retry with exponential
backoff, and the run ends with a batch report. Interrupting with Ctrl-C
lets in-flight conversions finish and records the rest as skipped.

Exit codes: 0 when nothing failed, 1 when some files failed or the run was
interrupted, 2 when the run could not start at all.`,
	RunE: runConvert,
}

func init() {
	addConvertFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}
	if err := cfg.Validate(); err != nil {
		return exitWithCode(2, err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return exitWithCode(2, err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workers, reason := resources.ClampWorkers(cfg.Batch.Workers); workers != cfg.Batch.Workers {
		logger.Warn("lowering worker count",
			zap.Int("requested", cfg.Batch.Workers),
			zap.Int("workers", workers),
			zap.String("reason", reason))
		cfg.Batch.Workers = workers
	}

	eng, err := engine.New(cfg.Engine, cfg.Conversion, logger)
	if err != nil {
		return exitWithCode(2, err)
	}
	fmt.Printf("Using engine: %s\n", eng.Name())

	runner := batch.NewRunner(eng, cfg.Batch, cfg.Conversion, logger)
	bar := newProgressBar(progressWriter(cfg.Log.Quiet), cfg.Log.Verbose)
	runner.Progress = bar

	summary, err := runner.Run(ctx)
	if err != nil {
		return exitWithCode(2, err)
	}
	bar.Finish()

	batch.WriteReport(os.Stdout, summary)

	if reportFile, _ := cmd.Flags().GetString("report-file"); reportFile != "" {
		if err := batch.WriteYAML(reportFile, summary); err != nil {
			logger.Warn("writing report file", zap.Error(err))
		}
	}

	recordHistory(cfg, summary, logger)

	return exitStatus(summary)
}

// recordHistory stores the finished run in the history database. Failures
// are logged and swallowed: a broken history store must not fail a batch
// that already ran.
func recordHistory(cfg types.Config, summary *types.RunSummary, logger *zap.Logger) {
	if cfg.History.Disabled {
		return
	}
	store, err := history.Open(cfg.History.Dir)
	if err != nil {
		logger.Warn("history store unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	// Interrupted runs are recorded too, so the write gets a fresh context
	// rather than the cancelled run context.
	if err := store.RecordRun(context.Background(), summary); err != nil {
		logger.Warn("recording run history", zap.Error(err))
	}
}

// exitStatus maps the run outcome to the exit-code contract: nil when
// nothing failed, a coded error otherwise.
func exitStatus(summary *types.RunSummary) error {
	code := summary.ExitCode()
	if code == 0 {
		return nil
	}
	if summary.Stats.Failed == 0 && summary.Interrupted {
		return exitWithCode(code, fmt.Errorf("run interrupted"))
	}
	return exitWithCode(code, fmt.Errorf("%d file(s) failed conversion", summary.Stats.Failed))
}
