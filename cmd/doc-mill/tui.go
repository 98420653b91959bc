package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/batch"
	"github.com/pdiddy/doc-mill/internal/logging"
	"github.com/pdiddy/doc-mill/internal/resources"
	"github.com/pdiddy/doc-mill/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Convert interactively with a live progress view",
	Long: `Tui opens an interactive front end: review the batch options in a form,
watch per-file progress live, and stop the run cleanly with one key. The
run itself is identical to the convert command, and the batch report and
history record are written the same way when the run finishes.`,
	RunE: runTUI,
}

func init() {
	addConvertFlags(tuiCmd)
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}

	// The alternate screen owns the terminal, so console logging stays
	// off; a log file still captures everything when configured.
	cfg.Log.Quiet = true
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

	model := tui.New(ctx, cfg, version, logger)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return exitWithCode(2, fmt.Errorf("running interactive session: %w", err))
	}

	m, ok := final.(tui.Model)
	if !ok {
		return exitWithCode(2, fmt.Errorf("unexpected final model %T", final))
	}
	if err := m.RunError(); err != nil {
		return exitWithCode(2, err)
	}

	summary := m.Summary()
	if summary == nil {
		// Quit at the form; nothing ran.
		return nil
	}

	// The alternate screen is gone, so repeat the report on the real one.
	batch.WriteReport(os.Stdout, summary)

	if reportFile, _ := cmd.Flags().GetString("report-file"); reportFile != "" {
		if err := batch.WriteYAML(reportFile, summary); err != nil {
			logger.Warn("writing report file", zap.Error(err))
		}
	}

	recordHistory(cfg, summary, logger)

	return exitStatus(summary)
}
