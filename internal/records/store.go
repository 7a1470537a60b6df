package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"plenary/internal/config"
)

const recordColumns = `session_id, source_url, title, status, attempt,
progress_stage, progress_percent, progress_message,
metadata_json, transcript_json, entities_json, summary, embedding_ref,
segment_count, word_count, language,
error_cause, error_message,
created_at, updated_at, completed_at`

// Store persists processing records in a local sqlite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the records database beneath the configured data
// directory and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("records: configuration is required")
	}
	dataDir := strings.TrimSpace(cfg.Paths.DataDir)
	if dataDir == "" {
		return nil, errors.New("records: data directory is not configured")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("records: create data directory: %w", err)
	}
	path := filepath.Join(dataDir, "plenary.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("records: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("records: apply %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("records: apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the filesystem location of the database.
func (s *Store) Path() string {
	return s.path
}

// ClaimOutcome reports how a Claim call resolved.
type ClaimOutcome int

const (
	// ClaimNew means the session had never been seen and a fresh record
	// was inserted in the in-progress state.
	ClaimNew ClaimOutcome = iota
	// ClaimRetry means a prior failed or pending record was taken over
	// and its attempt counter incremented.
	ClaimRetry
	// ClaimCached means a completed record already exists; the caller
	// should return it without running the pipeline.
	ClaimCached
)

// Claim atomically registers a run for the given session. Exactly one caller
// wins for any session at a time: a concurrent in-progress record yields
// ErrActiveRun, a completed record yields ClaimCached with the stored result,
// and pending or failed records are taken over with an incremented attempt.
func (s *Store) Claim(ctx context.Context, sessionID, sourceURL string) (*Record, ClaimOutcome, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, 0, errors.New("records: session id is required")
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
INSERT INTO processing_records (session_id, source_url, status, attempt, progress_stage, progress_percent, created_at, updated_at)
VALUES (?, ?, ?, 1, 'queued', 0, ?, ?)
ON CONFLICT(session_id) DO NOTHING`,
		sessionID, sourceURL, string(StatusInProgress), stamp, stamp)
	if err != nil {
		return nil, 0, fmt.Errorf("records: insert claim: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 1 {
		record, err := s.Get(ctx, sessionID)
		if err != nil {
			return nil, 0, err
		}
		return record, ClaimNew, nil
	}

	res, err = s.db.ExecContext(ctx, `
UPDATE processing_records
SET status = ?, attempt = attempt + 1, progress_stage = 'queued', progress_percent = 0,
    progress_message = '', error_cause = '', error_message = '', updated_at = ?
WHERE session_id = ? AND status IN (?, ?)`,
		string(StatusInProgress), stamp, sessionID,
		string(StatusPending), string(StatusFailed))
	if err != nil {
		return nil, 0, fmt.Errorf("records: retry claim: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 1 {
		record, err := s.Get(ctx, sessionID)
		if err != nil {
			return nil, 0, err
		}
		return record, ClaimRetry, nil
	}

	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if record.Status == StatusCompleted {
		return record, ClaimCached, nil
	}
	return nil, 0, fmt.Errorf("records: session %s: %w", sessionID, ErrActiveRun)
}

// Get returns the record for a session or ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM processing_records WHERE session_id = ?", recordColumns),
		sessionID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("records: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("records: load session %s: %w", sessionID, err)
	}
	return record, nil
}

// List returns records filtered by status, newest first. An empty filter
// returns everything.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM processing_records", recordColumns)
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += fmt.Sprintf(" WHERE status IN (%s)", makePlaceholders(len(statuses)))
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("records: scan: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// UpdateProgress persists the current stage, percent, and message for an
// in-flight run.
func (s *Store) UpdateProgress(ctx context.Context, sessionID, stage, message string, percent float64) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE processing_records
SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
WHERE session_id = ?`,
		stage, percent, message, stamp, sessionID)
	if err != nil {
		return fmt.Errorf("records: update progress: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("records: session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// Complete transitions an in-progress record to completed and stores the
// produced artifacts. The transition is a compare-and-swap on the in-progress
// status so a concurrent takeover cannot be silently overwritten.
func (s *Store) Complete(ctx context.Context, record *Record) error {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE processing_records
SET status = ?, title = ?, progress_stage = 'completed', progress_percent = 100, progress_message = ?,
    metadata_json = ?, transcript_json = ?, entities_json = ?, summary = ?, embedding_ref = ?,
    segment_count = ?, word_count = ?, language = ?,
    error_cause = '', error_message = '',
    updated_at = ?, completed_at = ?
WHERE session_id = ? AND status = ?`,
		string(StatusCompleted), record.Title, record.ProgressMessage,
		record.MetadataJSON, record.TranscriptJSON, record.EntitiesJSON,
		record.Summary, record.EmbeddingRef,
		record.SegmentCount, record.WordCount, record.Language,
		stamp, stamp,
		record.SessionID, string(StatusInProgress))
	if err != nil {
		return fmt.Errorf("records: complete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("records: complete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("records: session %s: %w", record.SessionID, ErrStaleTransition)
	}
	record.Status = StatusCompleted
	record.ProgressPercent = 100
	record.UpdatedAt = now
	record.CompletedAt = &now
	return nil
}

// Fail transitions an in-progress record to failed, recording the error
// cause keyword and a human-readable message.
func (s *Store) Fail(ctx context.Context, sessionID, cause, message string) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE processing_records
SET status = ?, progress_stage = 'failed', progress_message = ?,
    error_cause = ?, error_message = ?, updated_at = ?
WHERE session_id = ? AND status = ?`,
		string(StatusFailed), message, cause, message, stamp,
		sessionID, string(StatusInProgress))
	if err != nil {
		return fmt.Errorf("records: fail: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("records: fail result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("records: session %s: %w", sessionID, ErrStaleTransition)
	}
	return nil
}

// Remove deletes a record outright. In-progress records are protected.
func (s *Store) Remove(ctx context.Context, sessionID string) error {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.Status == StatusInProgress {
		return fmt.Errorf("records: session %s: %w", sessionID, ErrActiveRun)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM processing_records WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("records: remove: %w", err)
	}
	return nil
}

// ResetStuck moves in-progress records whose last update is older than the
// given age back to pending so a later run can reclaim them. It returns the
// session identifiers that were reset.
func (s *Store) ResetStuck(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id FROM processing_records
WHERE status = ? AND updated_at < ?`,
		string(StatusInProgress), cutoff)
	if err != nil {
		return nil, fmt.Errorf("records: find stuck: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("records: scan stuck: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	args := make([]any, 0, len(ids)+3)
	args = append(args, string(StatusPending), stamp, string(StatusInProgress))
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
UPDATE processing_records SET status = ?, updated_at = ?
WHERE status = ? AND session_id IN (%s)`, makePlaceholders(len(ids)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("records: reset stuck: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Health returns aggregated counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM processing_records GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("records: health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("records: health scan: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusInProgress:
			summary.InProgress = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record      Record
		status      string
		title       sql.NullString
		stage       sql.NullString
		message     sql.NullString
		metadata    sql.NullString
		transcript  sql.NullString
		entities    sql.NullString
		summary     sql.NullString
		embedding   sql.NullString
		language    sql.NullString
		errorCause  sql.NullString
		errorDetail sql.NullString
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(
		&record.SessionID, &record.SourceURL, &title, &status, &record.Attempt,
		&stage, &record.ProgressPercent, &message,
		&metadata, &transcript, &entities, &summary, &embedding,
		&record.SegmentCount, &record.WordCount, &language,
		&errorCause, &errorDetail,
		&createdAt, &updatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	record.Title = title.String
	record.Status = Status(status)
	record.ProgressStage = stage.String
	record.ProgressMessage = message.String
	record.MetadataJSON = metadata.String
	record.TranscriptJSON = transcript.String
	record.EntitiesJSON = entities.String
	record.Summary = summary.String
	record.EmbeddingRef = embedding.String
	record.Language = language.String
	record.ErrorCause = errorCause.String
	record.ErrorMessage = errorDetail.String

	var err error
	if record.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid && strings.TrimSpace(completedAt.String) != "" {
		completed, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, err
		}
		record.CompletedAt = &completed
	}
	return &record, nil
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
