// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// defaultListLimit bounds ListRuns when the caller passes no limit.
const defaultListLimit = 20

// Run is a stored run header.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	InputDir    string
	OutputDir   string
	Total       int
	Successful  int
	Failed      int
	Skipped     int
	Interrupted bool
}

// Duration returns the wall-clock time of the stored run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileRecord is one stored per-file outcome.
type FileRecord struct {
	Path       string
	Status     types.FileStatus
	OutputPath string
	Attempts   int
	Duration   time.Duration
	Error      string
	Reason     string
}

// FailureHit is a failed file matched by full-text search.
type FailureHit struct {
	RunID     string
	StartedAt time.Time
	Path      string
	Error     string
	Attempts  int
}

// ListRuns returns stored runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_dir, output_dir,
			total, successful, failed, skipped, interrupted
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun looks a run up by unique ID prefix and returns it with its file
// records in path order.
func (s *Store) GetRun(ctx context.Context, idPrefix string) (*Run, []FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_dir, output_dir,
			total, successful, failed, skipped, interrupted
		 FROM runs WHERE id LIKE ? || '%' LIMIT 2`, idPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("run %q not found", idPrefix)
	case 1:
	default:
		return nil, nil, fmt.Errorf("run id prefix %q is ambiguous", idPrefix)
	}
	run := matches[0]

	fileRows, err := s.db.QueryContext(ctx,
		`SELECT path, status, output_path, attempts, duration_ms, error, reason
		 FROM run_files WHERE run_id = ? ORDER BY path`, run.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file records: %w", err)
	}
	defer fileRows.Close()

	var files []FileRecord
	for fileRows.Next() {
		var (
			rec        FileRecord
			status     string
			outputPath sql.NullString
			errText    sql.NullString
			reason     sql.NullString
			durationMS int64
		)
		if err := fileRows.Scan(&rec.Path, &status, &outputPath, &rec.Attempts, &durationMS, &errText, &reason); err != nil {
			return nil, nil, fmt.Errorf("scanning file record: %w", err)
		}
		rec.Status = types.FileStatus(status)
		rec.OutputPath = outputPath.String
		rec.Error = errText.String
		rec.Reason = reason.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		files = append(files, rec)
	}
	return &run, files, fileRows.Err()
}

// SearchFailures runs a full-text match over failed files' paths and error
// messages across all stored runs, best match first.
func (s *Store) SearchFailures(ctx context.Context, query string, limit int) ([]FailureHit, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.run_id, r.started_at, f.path, f.error, f.attempts
		 FROM run_files_fts
		 JOIN run_files f ON f.rowid = run_files_fts.rowid
		 JOIN runs r ON r.id = f.run_id
		 WHERE run_files_fts MATCH ? AND f.status = ?
		 ORDER BY rank LIMIT ?`,
		query, string(types.StatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("searching failures: %w", err)
	}
	defer rows.Close()

	var hits []FailureHit
	for rows.Next() {
		var (
			hit       FailureHit
			startedAt string
			errText   sql.NullString
		)
		if err := rows.Scan(&hit.RunID, &startedAt, &hit.Path, &errText, &hit.Attempts); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hit.Error = errText.String
		hit.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run         Run
		startedAt   string
		finishedAt  string
		interrupted int
	)
	if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.InputDir, &run.OutputDir,
		&run.Total, &run.Successful, &run.Failed, &run.Skipped, &interrupted); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	run.Interrupted = interrupted != 0
	return run, nil
}
