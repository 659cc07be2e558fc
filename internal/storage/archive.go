package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Uploader pushes a transcript to a remote folder and returns a link.
type Uploader interface {
	Upload(ctx context.Context, result *types.TranscriptionResult) (string, error)
}

// ObjectSink stores transcript documents by job id.
type ObjectSink interface {
	Put(ctx context.Context, result *types.TranscriptionResult) (string, error)
	Text(ctx context.Context, jobID string) (string, error)
}

// Archive persists finished transcripts to every configured sink: local
// files, Google Drive, an object store and the metadata database. Each sink
// is optional. A failing sink does not stop the others.
type Archive struct {
	local   *LocalStorage
	drive   Uploader
	objects ObjectSink
	db      *MetadataDB
	logger  *slog.Logger

	driveAttempts int
	backoff       func(attempt int) time.Duration
}

// ArchiveOption configures optional sinks.
type ArchiveOption func(*Archive)

func WithLocal(ls *LocalStorage) ArchiveOption   { return func(a *Archive) { a.local = ls } }
func WithDrive(u Uploader) ArchiveOption         { return func(a *Archive) { a.drive = u } }
func WithObjectStore(o ObjectSink) ArchiveOption { return func(a *Archive) { a.objects = o } }
func WithMetadata(db *MetadataDB) ArchiveOption  { return func(a *Archive) { a.db = db } }

func NewArchive(logger *slog.Logger, opts ...ArchiveOption) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Archive{
		logger:        logger.With("component", "archive"),
		driveAttempts: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive writes result to all sinks and fills in LocalPath, GDriveURL and
// ObjectKey. The returned error joins every sink failure.
func (a *Archive) Archive(ctx context.Context, result *types.TranscriptionResult) error {
	var errs []error
	logger := a.logger.With("job_id", result.JobID)

	if a.local != nil {
		path, err := a.local.SaveTranscript(result)
		if err != nil {
			errs = append(errs, fmt.Errorf("local save: %w", err))
		} else {
			result.LocalPath = path
		}
	}

	if a.drive != nil {
		url, err := a.uploadWithRetry(ctx, logger, result)
		if err != nil {
			errs = append(errs, fmt.Errorf("google drive: %w", err))
		} else {
			result.GDriveURL = url
		}
	}

	if a.objects != nil {
		key, err := a.objects.Put(ctx, result)
		if err != nil {
			errs = append(errs, fmt.Errorf("object store: %w", err))
		} else {
			result.ObjectKey = key
		}
	}

	if a.db != nil {
		err := a.db.SaveTranscript(ctx, TranscriptRecord{
			JobID:       result.JobID,
			SourceURL:   result.SourceURL,
			SourceType:  result.SourceType,
			Backend:     result.Backend,
			LocalPath:   result.LocalPath,
			GDriveURL:   result.GDriveURL,
			ObjectKey:   result.ObjectKey,
			WordCount:   result.WordCount,
			SubmittedAt: result.SubmittedAt,
			CreatedAt:   result.ProcessedAt,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("metadata: %w", err))
		}
	}

	logger.Info("transcript archived",
		"local", result.LocalPath, "gdrive", result.GDriveURL, "object_key", result.ObjectKey, "errors", len(errs))
	return errors.Join(errs...)
}

func (a *Archive) uploadWithRetry(ctx context.Context, logger *slog.Logger, result *types.TranscriptionResult) (string, error) {
	var err error
	for attempt := 1; attempt <= a.driveAttempts; attempt++ {
		var url string
		url, err = a.drive.Upload(ctx, result)
		if err == nil {
			return url, nil
		}
		logger.Warn("google drive upload failed", "attempt", attempt, "max_attempts", a.driveAttempts, "error", err)
		if attempt == a.driveAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.backoff(attempt)):
		}
	}
	return "", err
}

// List returns archived transcript metadata, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]TranscriptRecord, error) {
	if a.db == nil {
		return []TranscriptRecord{}, nil
	}
	return a.db.ListTranscripts(ctx, limit)
}

// Text returns the archived transcript for jobID, preferring the local copy
// and falling back to the object store.
func (a *Archive) Text(ctx context.Context, jobID string) (string, error) {
	if a.db != nil && a.local != nil {
		rec, err := a.db.GetTranscript(ctx, jobID)
		if err == nil && rec.LocalPath != "" {
			text, err := a.local.ReadTranscript(rec.LocalPath)
			if err == nil {
				return text, nil
			}
			a.logger.Warn("local transcript unreadable", "job_id", jobID, "error", err)
		}
	}
	if a.objects != nil {
		text, err := a.objects.Text(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("%w: %v", types.ErrNotFound, err)
		}
		return text, nil
	}
	return "", types.ErrNotFound
}
