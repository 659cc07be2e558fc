package cleanup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	stale := writeAged(t, dir, "job-old.mp4", 7*time.Hour)
	staleCookies := writeAged(t, dir, "job-old.cookies.txt", 7*time.Hour)
	fresh := writeAged(t, dir, "job-new.mp4", time.Minute)
	running := writeAged(t, dir, "job-running.mp4", 8*time.Hour)

	s := NewScheduler(dir, time.Hour, 6*time.Hour, func() []string { return []string{"job-running"} },
		slog.New(slog.DiscardHandler))

	count, size := s.Sweep()
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(8), size)

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, staleCookies)
	assert.FileExists(t, fresh)
	assert.FileExists(t, running)
}

func TestSweep_MissingDir(t *testing.T) {
	s := NewScheduler(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Hour, nil, slog.New(slog.DiscardHandler))
	count, _ := s.Sweep()
	assert.Zero(t, count)
}

func TestScheduler_StartStop(t *testing.T) {
	dir := t.TempDir()
	stale := writeAged(t, dir, "job-1.mp4", 2*time.Hour)

	s := NewScheduler(dir, 10*time.Millisecond, time.Hour, nil, slog.New(slog.DiscardHandler))
	s.Start()
	assert.NoFileExists(t, stale)

	later := writeAged(t, dir, "job-2.mp4", 2*time.Hour)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(later)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
}
