package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/vidscribe/internal/queue"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// JobReader looks up job records.
type JobReader interface {
	Get(id string) (queue.Snapshot, error)
}

// ResultHandler serves job status and transcripts
type ResultHandler struct {
	jobs JobReader
}

func NewResultHandler(jobs JobReader) *ResultHandler {
	return &ResultHandler{jobs: jobs}
}

// Handle returns the job snapshot. transcript is present only once the job
// completed and error only once it failed.
func (h *ResultHandler) Handle(c *fiber.Ctx) error {
	snap, err := h.jobs.Get(c.Params("job_id"))
	if errors.Is(err, types.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job ID not found",
			"code":  "ERR_JOB_NOT_FOUND",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INTERNAL",
		})
	}
	return c.JSON(snap)
}
