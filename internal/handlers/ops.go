package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/storage"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Version is reported by /health.
var Version = "dev"

// JobCounter reports job totals per status.
type JobCounter interface {
	Counts() map[types.Status]int
}

// TranscriptArchive exposes archived transcripts.
type TranscriptArchive interface {
	List(ctx context.Context, limit int) ([]storage.TranscriptRecord, error)
	Text(ctx context.Context, jobID string) (string, error)
}

// OpsHandler serves operator endpoints: health, archive browsing and logs.
type OpsHandler struct {
	jobs    JobCounter
	archive TranscriptArchive
	logs    *config.LogBuffer
	backend string
	logger  *slog.Logger
}

func NewOpsHandler(jobs JobCounter, archive TranscriptArchive, logs *config.LogBuffer, backend string, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{jobs: jobs, archive: archive, logs: logs, backend: backend, logger: logger}
}

func (h *OpsHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": Version,
		"backend": h.backend,
		"jobs":    h.jobs.Counts(),
	})
}

func (h *OpsHandler) Transcripts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	transcripts, err := h.archive.List(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("failed to list transcripts", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list transcripts",
			"code":  "ERR_ARCHIVE",
		})
	}
	return c.JSON(transcripts)
}

func (h *OpsHandler) TranscriptText(c *fiber.Ctx) error {
	text, err := h.archive.Text(c.UserContext(), c.Params("id"))
	if errors.Is(err, types.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transcript not found",
			"code":  "ERR_TRANSCRIPT_NOT_FOUND",
		})
	}
	if err != nil {
		h.logger.Error("failed to read transcript", "job_id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read transcript file",
			"code":  "ERR_ARCHIVE",
		})
	}
	return c.SendString(text)
}

func (h *OpsHandler) Logs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logs": h.logs.GetLogs(),
	})
}

// LogsUpgrade rejects plain HTTP requests to the websocket route.
func (h *OpsHandler) LogsUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// LogsStream sends the buffered tail and then every new log line until the
// client disconnects.
func (h *OpsHandler) LogsStream(c *websocket.Conn) {
	defer c.Close()

	lines, cancel := h.logs.Subscribe()
	defer cancel()

	for _, line := range h.logs.GetLogs() {
		if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}
