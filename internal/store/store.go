// Package store keeps the history of processed cases in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ambient-narrative-go/internal/types"
)

// Store persists run records.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// createdAtLayout is fixed width so created_at sorts correctly as TEXT.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	case_id         TEXT NOT NULL,
	source          TEXT NOT NULL,
	profile         TEXT NOT NULL,
	success         INTEGER NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	error_code      TEXT NOT NULL DEFAULT '',
	format          TEXT NOT NULL DEFAULT '',
	total_speakers  INTEGER NOT NULL DEFAULT 0,
	patient_turns   INTEGER NOT NULL DEFAULT 0,
	clinician_turns INTEGER NOT NULL DEFAULT 0,
	word_count      INTEGER NOT NULL DEFAULT 0,
	duration_ms     REAL NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_case_id ON runs(case_id);
`

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open creates or connects to the run database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts rec, replacing any previous record with the same run id.
func (s *Store) Save(ctx context.Context, rec types.RunRecord) error {
	if rec.RunID == "" {
		return errors.New("store: run id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (
	run_id, case_id, source, profile, success, error, error_code, format,
	total_speakers, patient_turns, clinician_turns, word_count, duration_ms, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.CaseID, rec.Source, rec.Profile, boolToInt(rec.Success), rec.Error,
			rec.ErrorCode, rec.Format, rec.TotalSpeakers, rec.PatientTurns, rec.ClinicianTurns,
			rec.WordCount, rec.DurationMs, rec.CreatedAt.UTC().Format(createdAtLayout),
		)
		return err
	})
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, case_id, source, profile, success, error, error_code, format,
	total_speakers, patient_turns, clinician_turns, word_count, duration_ms, created_at
FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunRecord
	for rows.Next() {
		var (
			rec     types.RunRecord
			success int
			created string
		)
		if err := rows.Scan(&rec.RunID, &rec.CaseID, &rec.Source, &rec.Profile, &success,
			&rec.Error, &rec.ErrorCode, &rec.Format, &rec.TotalSpeakers, &rec.PatientTurns,
			&rec.ClinicianTurns, &rec.WordCount, &rec.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Success = success != 0
		rec.CreatedAt, err = time.Parse(createdAtLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
