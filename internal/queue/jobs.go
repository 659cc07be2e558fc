package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Job represents a transcription job. Fields are only touched through the
// Store, which holds mu while a mutator runs.
type Job struct {
	ID          string
	URL         string
	Status      types.Status
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Result      string
	Error       string
	BackendUsed string

	mu sync.Mutex
}

// Snapshot is a point-in-time copy of a Job, safe to hand to any goroutine.
type Snapshot struct {
	ID          string       `json:"job_id"`
	URL         string       `json:"url"`
	Status      types.Status `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Transcript  string       `json:"transcript,omitempty"`
	Error       string       `json:"error,omitempty"`
	BackendUsed string       `json:"backend_used,omitempty"`
}

// NewJob creates a new job with default values
func NewJob(id, url string) *Job {
	return &Job{
		ID:          id,
		URL:         url,
		Status:      types.StatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
}

// snapshot must be called with j.mu held.
func (j *Job) snapshot() Snapshot {
	return Snapshot{
		ID:          j.ID,
		URL:         j.URL,
		Status:      j.Status,
		SubmittedAt: j.SubmittedAt,
		StartedAt:   copyTime(j.StartedAt),
		FinishedAt:  copyTime(j.FinishedAt),
		Transcript:  j.Result,
		Error:       j.Error,
		BackendUsed: j.BackendUsed,
	}
}

// Start moves a queued job to running.
func (j *Job) Start() error {
	if j.Status != types.StatusQueued {
		return fmt.Errorf("invalid transition: %s -> %s", j.Status, types.StatusRunning)
	}
	now := time.Now().UTC()
	j.Status = types.StatusRunning
	j.StartedAt = &now
	return nil
}

// Complete records the transcript. Only a running job can complete.
func (j *Job) Complete(text, backend string) error {
	if j.Status != types.StatusRunning {
		return fmt.Errorf("invalid transition: %s -> %s", j.Status, types.StatusCompleted)
	}
	now := time.Now().UTC()
	j.Status = types.StatusCompleted
	j.Result = text
	j.Error = ""
	j.BackendUsed = backend
	j.FinishedAt = &now
	return nil
}

// Fail records err. Queued jobs may fail directly only when they never began
// acquisition (admission rejection).
func (j *Job) Fail(err error, backend string) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("invalid transition: %s -> %s", j.Status, types.StatusFailed)
	}
	now := time.Now().UTC()
	j.Status = types.StatusFailed
	j.Error = err.Error()
	j.Result = ""
	if backend != "" {
		j.BackendUsed = backend
	}
	j.FinishedAt = &now
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
