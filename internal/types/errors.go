package types

import "errors"

// Error taxonomy shared by the pipeline stages. Stages wrap these with %w so
// the HTTP layer and tests can classify failures with errors.Is.
var (
	ErrConfig           = errors.New("configuration error")
	ErrDownload         = errors.New("download failed")
	ErrAuthRequired     = errors.New("site requires authentication")
	ErrAuthExpired      = errors.New("backend session expired")
	ErrRemoteProcessing = errors.New("remote processing failed")
	ErrTimeout          = errors.New("timed out")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateID      = errors.New("duplicate job id")
	ErrQueueFull        = errors.New("job queue is full")
)
