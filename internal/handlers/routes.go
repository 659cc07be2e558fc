package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/queue"
)

// JobStore is the read side of the job registry.
type JobStore interface {
	JobReader
	JobCounter
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Pool    Submitter
	Jobs    JobStore
	Archive TranscriptArchive
	Logs    *config.LogBuffer
	Backend string
	Logger  *slog.Logger
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// NewApp builds the fiber application with all routes registered.
func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "vidscribe",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New(logger.Config{Output: slogWriter{d.Logger}}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	process := NewProcessHandler(d.Pool, d.Logger)
	result := NewResultHandler(d.Jobs)
	ops := NewOpsHandler(d.Jobs, d.Archive, d.Logs, d.Backend, d.Logger)

	app.Post("/process", process.Handle)
	app.Get("/result/:job_id", result.Handle)

	app.Get("/health", ops.Health)
	app.Get("/transcripts", ops.Transcripts)
	app.Get("/transcripts/:id/text", ops.TranscriptText)
	app.Get("/logs", ops.Logs)
	app.Use("/ws/logs", ops.LogsUpgrade)
	app.Get("/ws/logs", websocket.New(ops.LogsStream))

	return app
}

// slogWriter routes fiber's access log lines through slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Info("http request", "line", string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}

var (
	_ JobStore  = (*queue.Store)(nil)
	_ Submitter = (*queue.WorkerPool)(nil)
)
