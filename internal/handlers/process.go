package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Submitter accepts new jobs.
type Submitter interface {
	Submit(url string) (string, error)
}

// ProcessHandler handles job submission
type ProcessHandler struct {
	pool   Submitter
	logger *slog.Logger
}

// NewProcessHandler creates a new submission handler
func NewProcessHandler(pool Submitter, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{pool: pool, logger: logger}
}

// ProcessRequest represents the request body
type ProcessRequest struct {
	URL string `json:"url"`
}

// Handle queues a job and returns its id without waiting for it.
func (h *ProcessHandler) Handle(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No url provided",
			"code":  "ERR_NO_URL",
		})
	}

	jobID, err := h.pool.Submit(req.URL)
	switch {
	case errors.Is(err, types.ErrQueueFull):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":  "Job queue is full, try again later",
			"code":   "ERR_QUEUE_FULL",
			"job_id": jobID,
		})
	case err != nil:
		h.logger.Error("failed to submit job", "url", req.URL, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create job",
			"code":  "ERR_SUBMIT_FAILED",
		})
	}

	return c.JSON(fiber.Map{
		"status": "started",
		"job_id": jobID,
	})
}
