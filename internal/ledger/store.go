package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pxsubmit/internal/config"
	"pxsubmit/internal/services"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store manages the run ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.LedgerPath())
}

// OpenPath opens the ledger at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
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

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, runID, studyID, submissionDir string) (*Run, error) {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(studyID) == "" {
		return nil, errors.New("run id and study id required")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, study_id, status, submission_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, studyID, StatusRunning, filepath.Clean(submissionDir), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.Run(ctx, runID)
}

// FinishRun stores the final state of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	var errMessage string
	if out.Err != nil {
		errMessage = out.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, units = ?, files = ?, fetched = ?, transfer_status = ?,
            error_kind = ?, error_message = ?, finished_at = ?
        WHERE id = ?`,
		out.Status,
		out.Units,
		out.Files,
		out.Fetched,
		nullableString(string(out.TransferStatus)),
		nullableString(services.FailureKind(out.Err)),
		nullableString(errMessage),
		time.Now().UTC().Format(timeLayout),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// RecordFiles replaces the manifest rows stored for a run.
func (s *Store) RecordFiles(ctx context.Context, runID string, files []File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_files WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_files (run_id, file_id, file_type, path, linked_result_id, source_url) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		var linked any
		if f.LinkedResultID > 0 {
			linked = f.LinkedResultID
		}
		if _, err := stmt.ExecContext(ctx, runID, f.FileID, f.Type, f.Path, linked, nullableString(f.SourceURL)); err != nil {
			return fmt.Errorf("insert file %d: %w", f.FileID, err)
		}
	}
	return tx.Commit()
}

// Run fetches a run by id.
func (s *Store) Run(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return run, nil
}

// Runs lists the most recent runs first. A limit of zero or less returns all runs.
func (s *Store) Runs(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
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
	return runs, rows.Err()
}

// Files lists the manifest rows recorded for a run in file id order.
func (s *Store) Files(ctx context.Context, runID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, file_type, path, linked_result_id, source_url FROM run_files WHERE run_id = ? ORDER BY file_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var (
			f      File
			linked sql.NullInt64
			source sql.NullString
		)
		if err := rows.Scan(&f.FileID, &f.Type, &f.Path, &linked, &source); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.LinkedResultID = int(linked.Int64)
		f.SourceURL = source.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// LatestSucceeded returns the newest successful run for a study, or nil.
func (s *Store) LatestSucceeded(ctx context.Context, studyID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE study_id = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		studyID, StatusSucceeded)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return run, nil
}

// LatestForDir returns the newest run that wrote to a submission directory, or nil.
func (s *Store) LatestForDir(ctx context.Context, submissionDir string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE submission_dir = ? ORDER BY started_at DESC LIMIT 1`,
		filepath.Clean(submissionDir))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run for dir: %w", err)
	}
	return run, nil
}
