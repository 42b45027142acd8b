package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one finished download as the engine reports it.
type Record struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Uploader   string    `json:"uploader,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	ExtraFiles []string  `json:"extra_files,omitempty"`
	Extractor  string    `json:"extractor,omitempty"`
	Status     string    `json:"status"` // completed | failed
	ErrorKind  string    `json:"error_kind,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store persists completed/failed download records in a local sqlite table.
// It is a sink: the engine fires records at it and does not depend on the
// writes succeeding.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			uploader TEXT NOT NULL DEFAULT '',
			duration REAL NOT NULL DEFAULT 0,
			file_path TEXT NOT NULL DEFAULT '',
			extra_files TEXT NOT NULL DEFAULT '[]',
			extractor TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a record, assigning an ID and timestamp when missing.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	extra, err := json.Marshal(rec.ExtraFiles)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO downloads (id, task_id, url, title, uploader, duration, file_path, extra_files, extractor, status, error_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, rec.ID, rec.TaskID, rec.URL, rec.Title, rec.Uploader, rec.Duration,
		rec.FilePath, string(extra), rec.Extractor, rec.Status, rec.ErrorKind,
		rec.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// List returns the newest records first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, url, title, uploader, duration, file_path, extra_files, extractor, status, error_kind, created_at
		FROM downloads
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var extra, created string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.URL, &rec.Title, &rec.Uploader,
			&rec.Duration, &rec.FilePath, &extra, &rec.Extractor, &rec.Status,
			&rec.ErrorKind, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(extra), &rec.ExtraFiles); err != nil {
			rec.ExtraFiles = nil
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes one record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?;`, id)
	return err
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads;`)
	return err
}
