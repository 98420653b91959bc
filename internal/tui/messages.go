// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// BatchStartedMsg reports the number of candidates the run accounts for.
type BatchStartedMsg struct {
	Total int
}

// FileStartedMsg reports that a worker picked up a document.
type FileStartedMsg struct {
	Path string
}

// FileFinishedMsg carries the terminal result of one document.
type FileFinishedMsg struct {
	Result types.Result
}

// RunFinishedMsg carries the completed run summary, or the error that kept
// the run from producing one.
type RunFinishedMsg struct {
	Summary *types.RunSummary
	Err     error
}

// bridge forwards batch progress events into the channel the model drains.
// Worker goroutines call it directly; channel sends are the sync point.
type bridge struct {
	ch chan<- tea.Msg
}

func (b bridge) BatchStarted(total int)        { b.ch <- BatchStartedMsg{Total: total} }
func (b bridge) FileStarted(path string)       { b.ch <- FileStartedMsg{Path: path} }
func (b bridge) FileFinished(res types.Result) { b.ch <- FileFinishedMsg{Result: res} }

// waitForEvent relays one batch event into the program; the model re-arms it
// after every delivery.
func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
