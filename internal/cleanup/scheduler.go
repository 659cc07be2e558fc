package cleanup

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Scheduler sweeps media left behind in the temp directory, e.g. after a
// crash between download and cleanup.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	active   func() []string
	logger   *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new cleanup scheduler. active, if set, returns ids
// of jobs whose files must not be touched regardless of age.
func NewScheduler(tempDir string, interval, maxAge time.Duration, active func() []string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		active:   active,
		logger:   logger.With("component", "cleanup"),
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then every interval.
func (s *Scheduler) Start() {
	s.logger.Info("running initial temp file cleanup", "dir", s.tempDir)
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.logger.Info("cleanup scheduler started", "interval", s.interval, "max_age", s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info("cleanup scheduler stopped")
}

// Sweep removes files older than maxAge and reports what it deleted.
func (s *Scheduler) Sweep() (deletedCount int, deletedSize int64) {
	now := time.Now()
	var protected []string
	if s.active != nil {
		protected = s.active()
	}

	err := filepath.WalkDir(s.tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge || belongsTo(d.Name(), protected) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to delete old file", "path", path, "error", err)
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		s.logger.Debug("deleted old temp file", "file", d.Name(), "age", age.Round(time.Minute), "size_kb", info.Size()/1024)
		return nil
	})
	if err != nil {
		s.logger.Error("error during cleanup", "error", err)
	}

	if deletedCount > 0 {
		s.logger.Info("cleanup complete", "files", deletedCount, "freed_mb", float64(deletedSize)/(1024*1024))
	}
	return deletedCount, deletedSize
}

func belongsTo(name string, jobIDs []string) bool {
	for _, id := range jobIDs {
		if strings.HasPrefix(name, id+".") {
			return true
		}
	}
	return false
}
