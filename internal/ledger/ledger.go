// Package ledger records ingest attempts in SQLite. It is operational history
// only; meeting content lives exclusively in the meeting folders.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ingest statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusSkipped    = "skipped"
	StatusError      = "error"
)

// Ledger wraps SQLite access for the ingests table.
type Ledger struct {
	db *sql.DB
}

// Ingest is one recorded ingest attempt.
type Ingest struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	MeetingKey  *string    `json:"meeting_key"`
	Source      string     `json:"source"`
	SizeBytes   int64      `json:"size_bytes"`
	ContentHash string     `json:"content_hash"`
	DuplicateOf *string    `json:"duplicate_of"`
	Status      string     `json:"status"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingests (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			meeting_key TEXT,
			source TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			duplicate_of TEXT,
			status TEXT NOT NULL,
			last_error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ingests_hash ON ingests(content_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_ingests_created ON ingests(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts a new ingest attempt in its initial status.
func (l *Ledger) Record(ctx context.Context, in Ingest) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO ingests(id, filename, meeting_key, source, size_bytes, content_hash, duplicate_of, status, last_error, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.Filename, in.MeetingKey, in.Source, in.SizeBytes, in.ContentHash, in.DuplicateOf, in.Status, in.LastError, in.CreatedAt, in.UpdatedAt)
	return err
}

// SetStatus moves an ingest to a new non-terminal status.
func (l *Ledger) SetStatus(ctx context.Context, id, status string, ts time.Time) error {
	_, err := l.db.ExecContext(ctx, `UPDATE ingests SET status=?, updated_at=? WHERE id=?`, status, ts, id)
	return err
}

// Finish marks an ingest terminal, recording the meeting key it produced and
// the error message if it failed.
func (l *Ledger) Finish(ctx context.Context, id, status string, meetingKey, errMsg *string, ts time.Time) error {
	_, err := l.db.ExecContext(ctx, `UPDATE ingests SET status=?, meeting_key=?, last_error=?, finished_at=?, updated_at=? WHERE id=?`,
		status, meetingKey, errMsg, ts, ts, id)
	return err
}

// FindByHash returns the id of the earliest completed ingest with the same
// content hash, or nil when none exists. Used only to annotate duplicates;
// it never blocks an ingest.
func (l *Ledger) FindByHash(ctx context.Context, hash string) (*string, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id FROM ingests WHERE content_hash=? AND status=? ORDER BY created_at ASC LIMIT 1`, hash, StatusDone)
	var id string
	switch err := row.Scan(&id); err {
	case nil:
		return &id, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

// List returns recent ingests, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Ingest, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, filename, meeting_key, source, size_bytes, content_hash, duplicate_of, status, last_error, created_at, updated_at, finished_at
		FROM ingests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ingest
	for rows.Next() {
		var in Ingest
		var meetingKey, duplicateOf, lastError sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&in.ID, &in.Filename, &meetingKey, &in.Source, &in.SizeBytes, &in.ContentHash, &duplicateOf, &in.Status, &lastError, &in.CreatedAt, &in.UpdatedAt, &finished); err != nil {
			return nil, err
		}
		if meetingKey.Valid {
			in.MeetingKey = &meetingKey.String
		}
		if duplicateOf.Valid {
			in.DuplicateOf = &duplicateOf.String
		}
		if lastError.Valid {
			in.LastError = &lastError.String
		}
		if finished.Valid {
			in.FinishedAt = &finished.Time
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Health returns an error when the database is not reachable.
func (l *Ledger) Health(ctx context.Context) error {
	row := l.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("ledger health: %w", err)
	}
	return nil
}
