package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Downloader turns a submitted URL into media a generator can consume.
// Release removes whatever Acquire created and must tolerate repeated calls.
type Downloader interface {
	Acquire(ctx context.Context, jobID, url string) (types.Media, error)
	Release(media types.Media)
}

// Generator produces a transcript for one media item.
type Generator interface {
	Name() string
	// Ready reports missing configuration before any media is fetched.
	Ready() error
	Generate(ctx context.Context, media types.Media, prompt string) (types.Generation, error)
}

// Archiver persists finished transcripts. Failures are logged, never fatal.
type Archiver interface {
	Archive(ctx context.Context, result *types.TranscriptionResult) error
}

// Options tune the pool.
type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Prompt     string
	// Normalize cleans backend output. Nil means whitespace trimming only.
	Normalize func(string) string
	// ArchiveTimeout bounds each archive call. Zero means one minute.
	ArchiveTimeout time.Duration
}

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	store      *Store
	jobQueue   chan string
	downloader Downloader
	generator  Generator
	archiver   Archiver
	opts       Options
	logger     *slog.Logger

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool creates a new worker pool. archiver may be nil.
func NewWorkerPool(store *Store, downloader Downloader, generator Generator, archiver Archiver, opts Options, logger *slog.Logger) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 15 * time.Minute
	}
	if opts.Normalize == nil {
		opts.Normalize = strings.TrimSpace
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:      store,
		jobQueue:   make(chan string, opts.QueueSize),
		downloader: downloader,
		generator:  generator,
		archiver:   archiver,
		opts:       opts,
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", "workers", wp.opts.Workers, "queue_size", wp.opts.QueueSize, "backend", wp.generator.Name())
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop signals workers to exit after their current job and waits for them.
// Jobs still queued stay queued.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() { close(wp.quit) })
	wp.wg.Wait()
}

// Store returns the job table the pool writes to.
func (wp *WorkerPool) Store() *Store {
	return wp.store
}

// Submit records a queued job and hands it to the workers without blocking.
// When the queue is full the record is failed on the spot and ErrQueueFull is
// returned along with its id.
func (wp *WorkerPool) Submit(url string) (string, error) {
	id := uuid.NewString()
	if _, err := wp.store.Create(id, url); err != nil {
		return "", err
	}

	select {
	case wp.jobQueue <- id:
		wp.logger.Info("job enqueued", "job_id", id, "url", url)
		return id, nil
	default:
		_ = wp.store.Update(id, func(j *Job) error {
			return j.Fail(types.ErrQueueFull, "")
		})
		wp.logger.Warn("job rejected", "job_id", id, "error", types.ErrQueueFull)
		return id, types.ErrQueueFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger := wp.logger.With("worker", id)
	logger.Debug("worker started")

	for {
		select {
		case <-wp.quit:
			logger.Debug("worker stopped")
			return
		case jobID := <-wp.jobQueue:
			wp.processJob(logger, jobID)
		}
	}
}

// processJob drives one job through its lifecycle. Media is released before
// the terminal state becomes visible.
func (wp *WorkerPool) processJob(logger *slog.Logger, jobID string) {
	logger = logger.With("job_id", jobID)

	var url string
	err := wp.store.Update(jobID, func(j *Job) error {
		url = j.URL
		return j.Start()
	})
	if err != nil {
		logger.Error("cannot start job", "error", err)
		return
	}
	logger.Info("processing job", "url", url)
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), wp.opts.JobTimeout)
	defer cancel()

	gen, media, err := wp.run(ctx, logger, jobID, url)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, types.ErrTimeout) {
		err = fmt.Errorf("%w: job exceeded %s: %v", types.ErrTimeout, wp.opts.JobTimeout, err)
	}

	if err != nil {
		if uerr := wp.store.Update(jobID, func(j *Job) error { return j.Fail(err, gen.Backend) }); uerr != nil {
			logger.Error("cannot record failure", "error", uerr)
		}
		logger.Error("job failed", "error", err, "duration", time.Since(started))
		return
	}

	var snap Snapshot
	if uerr := wp.store.Update(jobID, func(j *Job) error {
		if err := j.Complete(gen.Text, gen.Backend); err != nil {
			return err
		}
		snap = j.snapshot()
		return nil
	}); uerr != nil {
		logger.Error("cannot record completion", "error", uerr)
		return
	}
	logger.Info("job completed", "backend", gen.Backend, "chars", len(gen.Text), "duration", time.Since(started))

	wp.archive(logger, snap, media)
}

// run executes acquire, generate and normalize. Panics are converted to
// errors after the deferred release has run.
func (wp *WorkerPool) run(ctx context.Context, logger *slog.Logger, jobID, url string) (gen types.Generation, media types.Media, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic processing job", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	if err := wp.generator.Ready(); err != nil {
		return gen, media, err
	}

	media, err = wp.downloader.Acquire(ctx, jobID, url)
	if err != nil {
		return gen, media, err
	}
	defer wp.downloader.Release(media)
	logger.Debug("media acquired", "source_type", media.SourceType, "remote", media.Remote, "path", media.Path)

	gen, err = wp.generator.Generate(ctx, media, wp.opts.Prompt)
	if err != nil {
		return gen, media, err
	}

	gen.Text = wp.opts.Normalize(gen.Text)
	if gen.Text == "" {
		return gen, media, fmt.Errorf("%w: backend returned no text", types.ErrRemoteProcessing)
	}
	return gen, media, nil
}

func (wp *WorkerPool) archive(logger *slog.Logger, snap Snapshot, media types.Media) {
	if wp.archiver == nil {
		return
	}
	result := &types.TranscriptionResult{
		JobID:       snap.ID,
		SourceURL:   snap.URL,
		SourceType:  media.SourceType,
		Text:        snap.Transcript,
		Backend:     snap.BackendUsed,
		WordCount:   len(strings.Fields(snap.Transcript)),
		SubmittedAt: snap.SubmittedAt,
		ProcessedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), wp.opts.ArchiveTimeout)
	defer cancel()
	if err := wp.archiver.Archive(ctx, result); err != nil {
		logger.Warn("archive incomplete, transcript still served from memory", "error", err)
	}
}
