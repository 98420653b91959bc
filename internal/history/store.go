// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists batch run records in a local SQLite database so
// past runs can be listed, inspected, and their failures searched.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/doc-mill/pkg/types"
)

const dbFile = "history.db"

// Store manages the run-history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database under dir. It creates the
// schema if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			input_dir TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			total INTEGER NOT NULL,
			successful INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			interrupted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS run_files (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			output_path TEXT,
			attempts INTEGER,
			duration_ms INTEGER,
			error TEXT,
			reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_files_run_id ON run_files(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_files_status ON run_files(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='run_files_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE run_files_fts USING fts5(path, error, content=run_files, content_rowid=rowid)`,
			`CREATE TRIGGER run_files_ai AFTER INSERT ON run_files BEGIN
				INSERT INTO run_files_fts(rowid, path, error) VALUES (new.rowid, new.path, new.error);
			END`,
			`CREATE TRIGGER run_files_ad AFTER DELETE ON run_files BEGIN
				INSERT INTO run_files_fts(run_files_fts, rowid, path, error) VALUES('delete', old.rowid, old.path, old.error);
			END`,
			`CREATE TRIGGER run_files_au AFTER UPDATE ON run_files BEGIN
				INSERT INTO run_files_fts(run_files_fts, rowid, path, error) VALUES('delete', old.rowid, old.path, old.error);
				INSERT INTO run_files_fts(rowid, path, error) VALUES (new.rowid, new.path, new.error);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// RecordRun stores a run and its per-file outcomes in one transaction.
func (s *Store) RecordRun(ctx context.Context, summary *types.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	interrupted := 0
	if summary.Interrupted {
		interrupted = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, input_dir, output_dir,
			total, successful, failed, skipped, interrupted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.Stats.StartTime.UTC().Format(time.RFC3339Nano),
		summary.Stats.EndTime.UTC().Format(time.RFC3339Nano),
		summary.InputDir, summary.OutputDir,
		summary.Stats.Total, summary.Stats.Successful,
		summary.Stats.Failed, summary.Stats.Skipped,
		interrupted,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_files (run_id, path, status, output_path, attempts, duration_ms, error, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range summary.Results {
		_, err := stmt.ExecContext(ctx,
			summary.RunID, res.Path, string(res.Status), res.OutputPath,
			res.Attempts, res.Duration.Milliseconds(), res.Error, res.Reason,
		)
		if err != nil {
			return fmt.Errorf("inserting file record for %s: %w", res.Path, err)
		}
	}

	return tx.Commit()
}
