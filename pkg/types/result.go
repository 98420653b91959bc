// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FileStatus is the terminal state of one file in a batch run.
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusFailed  FileStatus = "failed"
	StatusSkipped FileStatus = "skipped"
)

// Task pairs an input document with its output directory and conversion
// options. Immutable once submitted to a worker.
type Task struct {
	// Path is the input document.
	Path string `json:"path" yaml:"path"`

	// OutputDir receives the converted Markdown.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Options are the conversion settings for this task.
	Options ConvertOptions `json:"options" yaml:"options"`
}

// Result is the terminal outcome of one file: a success with output
// details, a failure with the error text and attempt count, or a skip with
// a reason.
type Result struct {
	// Path is the input document.
	Path string `json:"path" yaml:"path"`

	// Status is the terminal state.
	Status FileStatus `json:"status" yaml:"status"`

	// OutputPath is the written Markdown file (success only).
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	// OutputSize is the written file size in bytes (success only).
	OutputSize int64 `json:"output_size,omitempty" yaml:"output_size,omitempty"`

	// Duration is the wall-clock processing time including retries.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Attempts is the number of conversion attempts made.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`

	// Error is the failure message (failed only).
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Reason explains a skip (skipped only).
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Stats aggregates the outcome counts of a batch run. Total counts every
// discovered candidate; at the end of a run Successful+Failed+Skipped equals
// Total.
type Stats struct {
	Total      int       `json:"total" yaml:"total"`
	Successful int       `json:"successful" yaml:"successful"`
	Failed     int       `json:"failed" yaml:"failed"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	StartTime  time.Time `json:"start_time" yaml:"start_time"`
	EndTime    time.Time `json:"end_time" yaml:"end_time"`
}

// Duration returns the wall-clock time of the run.
func (s Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// SuccessRate returns successful conversions as a percentage of all
// candidates; 0 when the batch was empty.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// AveragePerFile returns the mean wall-clock time per processed file
// (successes and failures); skips cost nothing.
func (s Stats) AveragePerFile() time.Duration {
	processed := s.Successful + s.Failed
	if processed == 0 {
		return 0
	}
	return s.Duration() / time.Duration(processed)
}

// HasFailures reports whether any file failed.
func (s Stats) HasFailures() bool {
	return s.Failed > 0
}

// ExitCode maps the run outcome to a process exit status: 0 for no failures
// (including an empty batch), 1 for partial success, 2 for total failure.
func (s Stats) ExitCode() int {
	switch {
	case s.Failed == 0:
		return 0
	case s.Successful > 0:
		return 1
	default:
		return 2
	}
}

// RunSummary is the full record of one batch run: aggregate stats plus the
// per-file results in discovery order.
type RunSummary struct {
	// RunID uniquely identifies the run in the history store.
	RunID string `json:"run_id" yaml:"run_id"`

	// InputDir and OutputDir are the directories the run operated on.
	InputDir  string `json:"input_dir" yaml:"input_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	Stats Stats `json:"stats" yaml:"stats"`

	// Results holds one terminal result per discovered candidate.
	Results []Result `json:"results" yaml:"results"`

	// Interrupted marks a run cancelled before completion.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// FailedResults returns the failed results in discovery order.
func (r *RunSummary) FailedResults() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// ExitCode returns the exit status for the run; an interrupted run is never
// a complete success.
func (r *RunSummary) ExitCode() int {
	code := r.Stats.ExitCode()
	if r.Interrupted && code == 0 {
		return 1
	}
	return code
}
