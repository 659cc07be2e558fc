package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/cleanup"
	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/download"
	"github.com/codebuildervaibhav/vidscribe/internal/handlers"
	"github.com/codebuildervaibhav/vidscribe/internal/queue"
	"github.com/codebuildervaibhav/vidscribe/internal/storage"
	"github.com/codebuildervaibhav/vidscribe/internal/transcription"
)

func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logBuffer := config.NewLogBuffer(1000)
	logger, closeLog := config.SetupLogger(cfg.Logging, logBuffer)
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger, logBuffer); err != nil {
		logger.Error("server failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, logBuffer *config.LogBuffer) error {
	ctx := context.Background()
	logger.Info("initializing components", "backend", cfg.Generation.Backend, "workers", cfg.Workers.Count)

	generator, err := transcription.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := generator.Ready(); err != nil {
		logger.Warn("generation backend not ready, jobs will fail until fixed", "backend", generator.Name(), "error", err)
	}

	downloader, err := download.New(download.Options{
		Download:    cfg.Download,
		TempDir:     cfg.Storage.TempDir,
		RemoteSites: generator.AcceptsRemote(),
		Runner:      download.ExecRunner,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		return err
	}
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	archiveOpts := []storage.ArchiveOption{
		storage.WithLocal(storage.NewLocalStorage(cfg.Storage.OutputDir)),
		storage.WithMetadata(db),
	}
	if drive := setupDrive(ctx, cfg, logger); drive != nil {
		archiveOpts = append(archiveOpts, storage.WithDrive(drive))
	}
	if cfg.S3.Bucket != "" {
		objects, err := storage.NewObjectStore(ctx, cfg.S3)
		if err != nil {
			logger.Warn("object storage not available", "bucket", cfg.S3.Bucket, "error", err)
		} else {
			logger.Info("object storage enabled", "bucket", cfg.S3.Bucket)
			archiveOpts = append(archiveOpts, storage.WithObjectStore(objects))
		}
	}
	archive := storage.NewArchive(logger, archiveOpts...)

	store := queue.NewStore()
	normalizer := transcription.NewNormalizer(cfg.Generation.NoiseMarkers)
	pool := queue.NewWorkerPool(store, downloader, generator, archive, queue.Options{
		Workers:    cfg.Workers.Count,
		QueueSize:  cfg.Workers.QueueSize,
		JobTimeout: cfg.Jobs.Timeout,
		Prompt:     cfg.Generation.Prompt,
		Normalize:  normalizer.Normalize,
	}, logger)
	pool.Start()
	defer pool.Stop()

	sweeper := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		store.Active,
		logger,
	)
	sweeper.Start()
	defer sweeper.Stop()

	app := handlers.NewApp(handlers.Deps{
		Pool:      pool,
		Jobs:      store,
		Archive:   archive,
		Logs:      logBuffer,
		Backend:   generator.Name(),
		Logger:    logger,
		AccessLog: true,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.Addr())
	return app.Listen(cfg.Addr())
}

// setupDrive returns nil when Drive is not configured or not authorized;
// transcripts are then archived without it.
func setupDrive(ctx context.Context, cfg *config.Config, logger *slog.Logger) *storage.DriveClient {
	if cfg.GoogleDrive.CredentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err != nil {
		logger.Info("google drive credentials not found, skipping drive archive")
		return nil
	}
	client, err := storage.NewDriveClient(ctx,
		cfg.GoogleDrive.CredentialsFile,
		cfg.GoogleDrive.TokenFile,
		cfg.GoogleDrive.FolderName,
	)
	if err != nil {
		logger.Warn("google drive not available", "error", err)
		return nil
	}
	logger.Info("google drive archive enabled", "folder", cfg.GoogleDrive.FolderName)
	return client
}
