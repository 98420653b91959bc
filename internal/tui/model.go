// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tui is the interactive front end: an options form, a live view of
// the running batch, and a final summary. It drives the same coordinator and
// the same retrying processor as the convert command; only the presentation
// differs.
package tui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/internal/batch"
	"github.com/pdiddy/doc-mill/internal/engine"
	"github.com/pdiddy/doc-mill/internal/resources"
	"github.com/pdiddy/doc-mill/pkg/types"
)

type state int

const (
	stateForm state = iota
	stateRunning
	stateDone
)

// Form field order, top to bottom.
const (
	fieldInputDir = iota
	fieldOutputDir
	fieldWorkers
	fieldOCR
	fieldTableMode
	fieldEnrichment
	fieldSkipExisting
	fieldContinueOnError
	fieldFrontmatter
	fieldRetries
	fieldCount
)

const (
	maxWorkersField    = 32
	maxRetriesField    = 9
	maxSummaryFailures = 5
)

var (
	ocrModes   = []types.OCRMode{types.OCRAlways, types.OCRAuto, types.OCRNever}
	tableModes = []types.TableMode{types.TableFast, types.TableAccurate}
)

// fileEntry adapts a terminal result to the file log list.
type fileEntry struct {
	res types.Result
}

func (e fileEntry) FilterValue() string { return e.res.Path }
func (e fileEntry) Title() string       { return filepath.Base(e.res.Path) }

func (e fileEntry) Description() string {
	switch e.res.Status {
	case types.StatusSuccess:
		return fmt.Sprintf("✓ → %s", e.res.OutputPath)
	case types.StatusFailed:
		return fmt.Sprintf("❌ %s", e.res.Error)
	default:
		return fmt.Sprintf("skipped: %s", e.res.Reason)
	}
}

// Model is the bubbletea model for the interactive front end.
type Model struct {
	cfg     types.Config
	logger  *zap.Logger
	version string

	state state

	// form
	focus     int
	inputDir  textinput.Model
	outputDir textinput.Model
	formErr   error

	// running
	parent    context.Context
	runCtx    context.Context
	cancelRun context.CancelFunc
	events    chan tea.Msg
	total     int
	finished  int
	active    []string
	fileLog   list.Model
	bar       progress.Model
	stopping  bool

	// done
	summary *types.RunSummary
	runErr  error

	width  int
	height int

	quitting bool
}

// New builds the model showing the options form pre-filled from cfg. The
// context bounds any run started from the form.
func New(ctx context.Context, cfg types.Config, version string, logger *zap.Logger) Model {
	in := textinput.New()
	in.Placeholder = "./documents"
	in.SetValue(cfg.Batch.InputDir)
	in.Width = 48
	in.Focus()

	out := textinput.New()
	out.Placeholder = "./markdown"
	out.SetValue(cfg.Batch.OutputDir)
	out.Width = 48

	fileLog := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileLog.Title = "Processed Files"
	fileLog.SetFilteringEnabled(false)
	fileLog.KeyMap.Quit.SetEnabled(false)
	fileLog.KeyMap.ForceQuit.SetEnabled(false)

	return Model{
		cfg:       cfg,
		logger:    logger,
		version:   version,
		inputDir:  in,
		outputDir: out,
		parent:    ctx,
		events:    make(chan tea.Msg, 512),
		fileLog:   fileLog,
		bar:       progress.New(progress.WithDefaultGradient()),
	}
}

// Summary returns the completed run; nil when no run produced one.
func (m Model) Summary() *types.RunSummary { return m.summary }

// RunError returns the error that kept the run from producing a summary.
func (m Model) RunError() error { return m.runErr }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		m.fileLog.SetSize(size.Width-4, size.Height/3)
		return m, nil
	}

	switch m.state {
	case stateForm:
		return m.updateForm(msg)
	case stateRunning:
		return m.updateRunning(msg)
	default:
		return m.updateDone(msg)
	}
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateInputs(msg)
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		return m.startRun()

	case "up", "shift+tab":
		return m.moveFocus(-1)

	case "down", "tab":
		return m.moveFocus(1)

	case "left", "right":
		if m.textFocused() {
			return m.updateInputs(msg)
		}
		delta := 1
		if key.String() == "left" {
			delta = -1
		}
		m.adjustField(delta)
		return m, nil

	case " ":
		if m.textFocused() {
			return m.updateInputs(msg)
		}
		m.adjustField(1)
		return m, nil

	case "q":
		if m.textFocused() {
			return m.updateInputs(msg)
		}
		m.quitting = true
		return m, tea.Quit

	default:
		return m.updateInputs(msg)
	}
}

// startRun validates the form and launches the batch in the background.
func (m Model) startRun() (tea.Model, tea.Cmd) {
	m.cfg.Batch.InputDir = strings.TrimSpace(m.inputDir.Value())
	m.cfg.Batch.OutputDir = strings.TrimSpace(m.outputDir.Value())
	if err := m.cfg.Validate(); err != nil {
		m.formErr = err
		return m, nil
	}
	m.formErr = nil

	m.state = stateRunning
	m.runCtx, m.cancelRun = context.WithCancel(m.parent)
	return m, tea.Batch(m.launch(), waitForEvent(m.events))
}

// launch builds the engine and runs the batch; the returned message ends the
// running state. Progress events flow through the event channel so the view
// updates while the run is still in flight.
func (m Model) launch() tea.Cmd {
	cfg, runCtx, events, logger := m.cfg, m.runCtx, m.events, m.logger
	return func() tea.Msg {
		if workers, reason := resources.ClampWorkers(cfg.Batch.Workers); workers < cfg.Batch.Workers {
			logger.Warn("lowering worker count",
				zap.Int("requested", cfg.Batch.Workers),
				zap.Int("workers", workers),
				zap.String("reason", reason))
			cfg.Batch.Workers = workers
		}
		eng, err := engine.New(cfg.Engine, cfg.Conversion, logger)
		if err != nil {
			return RunFinishedMsg{Err: err}
		}
		runner := batch.NewRunner(eng, cfg.Batch, cfg.Conversion, logger)
		runner.Progress = bridge{ch: events}
		runner.Out = io.Discard
		summary, err := runner.Run(runCtx)
		return RunFinishedMsg{Summary: summary, Err: err}
	}
}

func (m Model) updateRunning(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s", "ctrl+c":
			if !m.stopping {
				m.stopping = true
				m.cancelRun()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.fileLog, cmd = m.fileLog.Update(msg)
		return m, cmd

	case BatchStartedMsg:
		m.total = msg.Total
		return m, waitForEvent(m.events)

	case FileStartedMsg:
		m.active = append(m.active, msg.Path)
		return m, waitForEvent(m.events)

	case FileFinishedMsg:
		m.finished++
		m.active = removePath(m.active, msg.Result.Path)
		m.fileLog.SetItems(append(m.fileLog.Items(), fileEntry{res: msg.Result}))
		return m, waitForEvent(m.events)

	case RunFinishedMsg:
		m.state = stateDone
		m.summary = msg.Summary
		m.runErr = msg.Err
		m.cancelRun()
		return m, nil
	}
	return m, nil
}

func (m Model) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "ctrl+c", "esc", "enter":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	m.focus = cycle(m.focus, delta, fieldCount)
	m.inputDir.Blur()
	m.outputDir.Blur()
	switch m.focus {
	case fieldInputDir:
		return m, m.inputDir.Focus()
	case fieldOutputDir:
		return m, m.outputDir.Focus()
	}
	return m, nil
}

func (m Model) textFocused() bool {
	return m.focus == fieldInputDir || m.focus == fieldOutputDir
}

// adjustField changes the focused selector or toggle. Arrow keys inside a
// text field move the cursor instead and never land here.
func (m *Model) adjustField(delta int) {
	switch m.focus {
	case fieldWorkers:
		m.cfg.Batch.Workers = clamp(m.cfg.Batch.Workers+delta, 1, maxWorkersField)
	case fieldOCR:
		i := cycle(slices.Index(ocrModes, m.cfg.Conversion.OCR), delta, len(ocrModes))
		m.cfg.Conversion.OCR = ocrModes[i]
	case fieldTableMode:
		i := cycle(slices.Index(tableModes, m.cfg.Conversion.TableMode), delta, len(tableModes))
		m.cfg.Conversion.TableMode = tableModes[i]
	case fieldEnrichment:
		m.cfg.Conversion.Enrichment = !m.cfg.Conversion.Enrichment
	case fieldSkipExisting:
		m.cfg.Batch.SkipExisting = !m.cfg.Batch.SkipExisting
	case fieldContinueOnError:
		m.cfg.Batch.ContinueOnError = !m.cfg.Batch.ContinueOnError
	case fieldFrontmatter:
		m.cfg.Batch.Frontmatter = !m.cfg.Batch.Frontmatter
	case fieldRetries:
		m.cfg.Batch.Retries = clamp(m.cfg.Batch.Retries+delta, 0, maxRetriesField)
	}
}

// updateInputs forwards a message to the focused text field.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case fieldInputDir:
		m.inputDir, cmd = m.inputDir.Update(msg)
	case fieldOutputDir:
		m.outputDir, cmd = m.outputDir.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	switch m.state {
	case stateForm:
		return m.viewForm()
	case stateRunning:
		return m.viewRunning()
	default:
		return m.viewDone()
	}
}

func (m Model) viewForm() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("doc-mill %s", m.version)))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value string
	}{
		{"Input directory", m.inputDir.View()},
		{"Output directory", m.outputDir.View()},
		{"Workers", fmt.Sprintf("< %d >", m.cfg.Batch.Workers)},
		{"OCR mode", fmt.Sprintf("< %s >", m.cfg.Conversion.OCR)},
		{"Table mode", fmt.Sprintf("< %s >", m.cfg.Conversion.TableMode)},
		{"Enrichment", onOff(m.cfg.Conversion.Enrichment)},
		{"Skip existing", onOff(m.cfg.Batch.SkipExisting)},
		{"Continue on error", onOff(m.cfg.Batch.ContinueOnError)},
		{"Frontmatter", onOff(m.cfg.Batch.Frontmatter)},
		{"Retries", fmt.Sprintf("< %d >", m.cfg.Batch.Retries)},
	}
	for i, row := range rows {
		cursor := "  "
		if i == m.focus {
			cursor = processingStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%-18s %s\n", cursor, row.label+":", row.value)
	}

	if m.formErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("❌ %v", m.formErr)))
		b.WriteString("\n")
	}

	b.WriteString("\nControls: [↑/↓] Field  [←/→] Adjust  [enter] Start  [esc] Quit\n")
	return b.String()
}

func (m Model) viewRunning() string {
	header := headerStyle.Render(fmt.Sprintf("doc-mill %s", m.version))

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.finished) / float64(m.total)
	}
	overall := fmt.Sprintf("Overall progress: %s (%d/%d)",
		m.bar.ViewAs(pct), m.finished, m.total)

	lines := []string{"Converting:"}
	for _, p := range m.active {
		lines = append(lines, "  "+processingStyle.Render(filepath.Base(p)))
	}
	if len(m.active) == 0 {
		lines = append(lines, "  idle")
	}

	controls := "Controls: [s] Stop  [↑/↓] Scroll log"
	if m.stopping {
		controls = infoStyle.Render("Stopping; waiting for in-flight files...")
	}

	sections := []string{
		header,
		overall,
		strings.Join(lines, "\n"),
		m.fileLog.View(),
		controls,
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) viewDone() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("doc-mill %s", m.version)))
	b.WriteString("\n\n")

	if m.summary == nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("❌ %v", m.runErr)))
		b.WriteString("\n\nControls: [q] Quit\n")
		return b.String()
	}

	s := m.summary.Stats
	fmt.Fprintf(&b, "Batch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		s.Successful, s.Skipped, s.Failed, s.Total)
	if s.Total == 0 {
		b.WriteString(infoStyle.Render("No convertible documents found."))
		b.WriteString("\n\nControls: [q] Quit\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Duration: %s", batch.FormatDuration(s.Duration()))
	if processed := s.Successful + s.Failed; processed > 0 {
		fmt.Fprintf(&b, " | success rate: %.1f%% | avg per file: %s",
			s.SuccessRate(), batch.FormatDuration(s.AveragePerFile()))
	}
	b.WriteString("\n")

	if m.summary.Interrupted {
		b.WriteString(infoStyle.Render("Run interrupted; unprocessed files were skipped."))
		b.WriteString("\n")
	}

	failed := m.summary.FailedResults()
	switch {
	case len(failed) == 0 && !m.summary.Interrupted:
		b.WriteString("\n")
		b.WriteString(successStyle.Render("✅ Conversion complete."))
		b.WriteString("\n")
	case len(failed) > 0:
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Failed files:"))
		b.WriteString("\n")
		shown := failed
		if len(shown) > maxSummaryFailures {
			shown = shown[:maxSummaryFailures]
		}
		for _, f := range shown {
			fmt.Fprintf(&b, "  ❌ %s: %s\n", f.Path, f.Error)
		}
		if extra := len(failed) - maxSummaryFailures; extra > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", extra)
		}
	}

	b.WriteString("\nControls: [q] Quit\n")
	return b.String()
}

func onOff(v bool) string {
	if v {
		return successStyle.Render("on")
	}
	return "off"
}

func removePath(active []string, path string) []string {
	for i, p := range active {
		if p == path {
			return append(active[:i], active[i+1:]...)
		}
	}
	return active
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cycle steps an index through n slots, wrapping in both directions.
func cycle(i, delta, n int) int {
	return ((i+delta)%n + n) % n
}
