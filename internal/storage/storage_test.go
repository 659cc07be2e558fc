package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

func sampleResult(jobID string) *types.TranscriptionResult {
	return &types.TranscriptionResult{
		JobID:       jobID,
		SourceURL:   "https://example.com/" + jobID + ".mp4",
		SourceType:  types.SourceDirect,
		Text:        "00:01 a dog barks\n00:02 silence",
		Backend:     "models/gemini-2.0-flash",
		WordCount:   6,
		SubmittedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		ProcessedAt: time.Date(2025, 3, 4, 10, 5, 0, 0, time.UTC),
	}
}

func TestLocalStorage_SaveAndRead(t *testing.T) {
	dir := t.TempDir()
	ls := NewLocalStorage(dir)

	path, err := ls.SaveTranscript(sampleResult("job-1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2025", "03", "04", "20250304_100500_job-1.txt"), path)

	text, err := ls.ReadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "00:01 a dog barks\n00:02 silence", text)

	metaBytes, err := os.ReadFile(strings.TrimSuffix(path, ".txt") + "_meta.json")
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	assert.Equal(t, "job-1", meta["job_id"])
	assert.Equal(t, "models/gemini-2.0-flash", meta["backend_used"])
}

func TestLocalStorage_ReadOutsideRoot(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	_, err := ls.ReadTranscript(outside)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d", sanitizeFilename(`a/b\c:d`))
	assert.Equal(t, "transcript", sanitizeFilename(""))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 300)), 100)
}

func newTestDB(t *testing.T) *MetadataDB {
	t.Helper()
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "nested", "transcripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetadataDB_SaveGetList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"job-a", "job-b"} {
		r := sampleResult(id)
		require.NoError(t, db.SaveTranscript(ctx, TranscriptRecord{
			JobID:       r.JobID,
			SourceURL:   r.SourceURL,
			SourceType:  r.SourceType,
			Backend:     r.Backend,
			LocalPath:   "/out/" + id + ".txt",
			WordCount:   r.WordCount,
			SubmittedAt: r.SubmittedAt,
			CreatedAt:   r.ProcessedAt.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec, err := db.GetTranscript(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/job-a.mp4", rec.SourceURL)
	assert.Equal(t, 6, rec.WordCount)
	assert.True(t, rec.SubmittedAt.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)))

	_, err = db.GetTranscript(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	list, err := db.ListTranscripts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "job-b", list[0].JobID)

	// job ids are unique
	err = db.SaveTranscript(ctx, TranscriptRecord{JobID: "job-a", SubmittedAt: time.Now()})
	assert.Error(t, err)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestObjectStore_PutAndText(t *testing.T) {
	fake := &fakeS3{}
	store := newObjectStore(fake, "bucket", "vidscribe")

	key, err := store.Put(context.Background(), sampleResult("job-1"))
	require.NoError(t, err)
	assert.Equal(t, "vidscribe/transcripts/job-1.json", key)

	text, err := store.Text(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "00:01 a dog barks\n00:02 silence", text)

	_, err = store.Text(context.Background(), "other")
	assert.Error(t, err)
}

type fakeUploader struct {
	failures int
	calls    int
}

func (u *fakeUploader) Upload(context.Context, *types.TranscriptionResult) (string, error) {
	u.calls++
	if u.calls <= u.failures {
		return "", errors.New("drive 503")
	}
	return "https://drive.google.com/file/d/abc/view", nil
}

func noBackoff(a *Archive) { a.backoff = func(int) time.Duration { return 0 } }

func TestArchive_AllSinks(t *testing.T) {
	out := t.TempDir()
	db := newTestDB(t)
	drive := &fakeUploader{failures: 2}
	objects := newObjectStore(&fakeS3{}, "bucket", "")
	a := NewArchive(slog.New(slog.DiscardHandler),
		WithLocal(NewLocalStorage(out)), WithDrive(drive), WithObjectStore(objects), WithMetadata(db), noBackoff)

	result := sampleResult("job-1")
	require.NoError(t, a.Archive(context.Background(), result))
	assert.Equal(t, 3, drive.calls)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", result.GDriveURL)
	assert.Equal(t, "transcripts/job-1.json", result.ObjectKey)
	assert.NotEmpty(t, result.LocalPath)

	rec, err := db.GetTranscript(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, result.GDriveURL, rec.GDriveURL)
	assert.Equal(t, result.LocalPath, rec.LocalPath)

	text, err := a.Text(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, result.Text, text)

	list, err := a.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchive_SinkFailureDoesNotStopOthers(t *testing.T) {
	db := newTestDB(t)
	drive := &fakeUploader{failures: 5}
	a := NewArchive(slog.New(slog.DiscardHandler),
		WithLocal(NewLocalStorage(t.TempDir())), WithDrive(drive), WithMetadata(db), noBackoff)

	result := sampleResult("job-2")
	err := a.Archive(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google drive")
	assert.Equal(t, 3, drive.calls)

	_, err = db.GetTranscript(context.Background(), "job-2")
	assert.NoError(t, err)
}

func TestArchive_TextFallsBackToObjectStore(t *testing.T) {
	objects := newObjectStore(&fakeS3{}, "bucket", "")
	_, err := objects.Put(context.Background(), sampleResult("job-3"))
	require.NoError(t, err)

	a := NewArchive(nil, WithObjectStore(objects))
	text, err := a.Text(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Contains(t, text, "dog barks")

	_, err = a.Text(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	empty := NewArchive(nil)
	_, err = empty.Text(context.Background(), "job-3")
	assert.ErrorIs(t, err, types.ErrNotFound)
	list, err := empty.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
