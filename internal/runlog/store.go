package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"overdub/internal/timing"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases must be deleted rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// overdub version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no run exists for the given id.
var ErrNotFound = errors.New("run not found")

// Status enumerates run outcomes.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one row of run history.
type Run struct {
	ID      string
	Tenant  string
	Project string
	Status  Status
	// Degraded marks a successful run whose final video is the raw
	// recording because compositing failed.
	Degraded     bool
	VideoPath    string
	ErrorMessage string
	TimingsJSON  string
	LogTail      string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Timings decodes the stored timing sequence. Returns nil when none were
// recorded.
func (r *Run) Timings() []timing.StepTiming {
	if strings.TrimSpace(r.TimingsJSON) == "" {
		return nil
	}
	var timings []timing.StepTiming
	if err := json.Unmarshal([]byte(r.TimingsJSON), &timings); err != nil {
		return nil
	}
	return timings
}

// DurationMs reports wall-clock run length, 0 while still running.
func (r *Run) DurationMs() int64 {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt).Milliseconds()
}

// Store persists run history backed by SQLite.
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

// Open initializes or connects to the run-history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure run log dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Begin records a new running job.
func (s *Store) Begin(ctx context.Context, id, tenant, project string) (*Run, error) {
	now := time.Now().UTC()
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, tenant, project, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, tenant, project, StatusRunning, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Outcome describes how a run ended.
type Outcome struct {
	Status       Status
	Degraded     bool
	VideoPath    string
	ErrorMessage string
	Timings      []timing.StepTiming
	LogTail      []string
}

// Finish records a run's outcome.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	timingsJSON := ""
	if len(outcome.Timings) > 0 {
		encoded, err := json.Marshal(outcome.Timings)
		if err != nil {
			return fmt.Errorf("marshal timings: %w", err)
		}
		timingsJSON = string(encoded)
	}
	now := time.Now().UTC()
	err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, degraded = ?, video_path = ?, error_message = ?,
            timings_json = ?, log_tail = ?, finished_at = ?
         WHERE id = ?`,
		outcome.Status,
		boolToInt(outcome.Degraded),
		nullableString(outcome.VideoPath),
		nullableString(outcome.ErrorMessage),
		nullableString(timingsJSON),
		nullableString(strings.Join(outcome.LogTail, "\n")),
		now.Format(time.RFC3339Nano),
		id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetByID fetches one run.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRecent returns the newest runs first, at most limit of them.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

const selectColumns = `SELECT id, tenant, project, status, degraded, video_path,
    error_message, timings_json, log_tail, started_at, finished_at FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		degraded   int
		video      sql.NullString
		errMsg     sql.NullString
		timings    sql.NullString
		logTail    sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Tenant, &run.Project, &run.Status, &degraded,
		&video, &errMsg, &timings, &logTail, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Degraded = degraded != 0
	run.VideoPath = video.String
	run.ErrorMessage = errMsg.String
	run.TimingsJSON = timings.String
	run.LogTail = logTail.String
	if parsed, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = parsed
	}
	if finishedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			run.FinishedAt = parsed
		}
	}
	return &run, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
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

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
