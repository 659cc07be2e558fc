package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// TranscriptRecord is one archived transcript.
type TranscriptRecord struct {
	JobID       string    `json:"job_id"`
	SourceURL   string    `json:"source_url"`
	SourceType  string    `json:"source_type"`
	Backend     string    `json:"backend_used"`
	LocalPath   string    `json:"local_path"`
	GDriveURL   string    `json:"gdrive_url,omitempty"`
	ObjectKey   string    `json:"object_key,omitempty"`
	WordCount   int       `json:"word_count"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens (and if needed creates) the database at dbPath.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc/sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		source_url TEXT NOT NULL,
		source_type TEXT NOT NULL,
		backend TEXT NOT NULL,
		local_path TEXT NOT NULL DEFAULT '',
		gdrive_url TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveTranscript records an archived transcript.
func (mdb *MetadataDB) SaveTranscript(ctx context.Context, rec TranscriptRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO transcripts (job_id, source_url, source_type, backend, local_path, gdrive_url, object_key, word_count, submitted_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := mdb.db.ExecContext(ctx, query, rec.JobID, rec.SourceURL, rec.SourceType, rec.Backend,
		rec.LocalPath, rec.GDriveURL, rec.ObjectKey, rec.WordCount, rec.SubmittedAt.UTC(), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %w", err)
	}
	return nil
}

const selectColumns = `job_id, source_url, source_type, backend, local_path, gdrive_url, object_key, word_count, submitted_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (TranscriptRecord, error) {
	var rec TranscriptRecord
	err := s.Scan(&rec.JobID, &rec.SourceURL, &rec.SourceType, &rec.Backend, &rec.LocalPath,
		&rec.GDriveURL, &rec.ObjectKey, &rec.WordCount, &rec.SubmittedAt, &rec.CreatedAt)
	return rec, err
}

// GetTranscript retrieves transcript metadata by job ID
func (mdb *MetadataDB) GetTranscript(ctx context.Context, jobID string) (TranscriptRecord, error) {
	row := mdb.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transcripts WHERE job_id = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, types.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to get transcript: %w", err)
	}
	return rec, nil
}

// ListTranscripts returns the most recent transcripts first.
func (mdb *MetadataDB) ListTranscripts(ctx context.Context, limit int) ([]TranscriptRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := mdb.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM transcripts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := []TranscriptRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, rec)
	}
	return transcripts, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
