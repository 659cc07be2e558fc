package types

import "time"

// Status is the lifecycle state of a transcription job.
type Status string

// Job status constants
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source type constants
const (
	SourceDirect = "direct"
	SourceSite   = "site"
)

// Media is what the downloader hands to a generator. Either Path points at a
// local file owned by the job, or Remote is set and SourceURL should be given
// to the backend as-is.
type Media struct {
	JobID      string
	SourceURL  string
	SourceType string
	Path       string
	MimeType   string
	Remote     bool

	// Extra files created alongside Path (e.g. a per-job cookie jar copy).
	Companions []string
}

// TranscriptionResult is a finished transcript handed to the archive.
type TranscriptionResult struct {
	JobID       string
	SourceURL   string
	SourceType  string
	Text        string
	Backend     string
	WordCount   int
	SubmittedAt time.Time
	ProcessedAt time.Time
	LocalPath   string
	GDriveURL   string
	ObjectKey   string
}

// Generation is a backend's answer for one media item.
type Generation struct {
	Text string
	// Backend identifies what produced Text, e.g. the model id or "browser".
	Backend string
}
