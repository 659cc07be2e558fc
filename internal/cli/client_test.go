package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/vidscribe/internal/queue"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

func TestClient_Submit(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/process", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotURL = body["url"]
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "started", "job_id": "job-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	id, err := c.Submit(context.Background(), "https://example.com/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, "https://example.com/a.mp4", gotURL)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/process":
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Job queue is full", "code": "ERR_QUEUE_FULL", "job_id": "j"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Job ID not found", "code": "ERR_JOB_NOT_FOUND"})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), "https://example.com/a.mp4")
	assert.ErrorIs(t, err, types.ErrQueueFull)

	_, err = c.Result(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Contains(t, err.Error(), "Job ID not found")
}

func TestClient_WaitPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := queue.Snapshot{ID: "job-1", Status: types.StatusRunning}
		if calls.Add(1) >= 3 {
			snap.Status = types.StatusCompleted
			snap.Transcript = "done"
		}
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	snap, err := c.Wait(context.Background(), "job-1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, snap.Status)
	assert.Equal(t, "done", snap.Transcript)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_WaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queue.Snapshot{ID: "job-1", Status: types.StatusQueued})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, time.Second).Wait(ctx, "job-1", 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSnapshot(&buf, queue.Snapshot{ID: "a", Status: types.StatusCompleted, Transcript: "hello"}))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	require.NoError(t, printSnapshot(&buf, queue.Snapshot{ID: "a", Status: types.StatusRunning}))
	assert.Equal(t, "job a is running\n", buf.String())

	err := printSnapshot(&buf, queue.Snapshot{ID: "a", Status: types.StatusFailed, Error: "download failed"})
	assert.EqualError(t, err, "job a failed: download failed")
}
