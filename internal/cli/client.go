package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/queue"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Client talks to a running vidscribe server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	JobID string `json:"job_id"`
}

// Submit starts a job and returns its id.
func (c *Client) Submit(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Status string `json:"status"`
		JobID  string `json:"job_id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// Result fetches the current job record.
func (c *Client) Result(ctx context.Context, jobID string) (queue.Snapshot, error) {
	var snap queue.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+jobID, nil)
	if err != nil {
		return snap, err
	}
	err = c.do(req, &snap)
	return snap, err
}

// Wait polls until the job reaches a terminal state or ctx ends.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration) (queue.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := c.Result(ctx, jobID)
		if err != nil {
			return snap, err
		}
		if snap.Status.IsTerminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", types.ErrNotFound, msg)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s (job %s)", types.ErrQueueFull, msg, apiErr.JobID)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
