package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// transcriptMeta is written next to every transcript.
type transcriptMeta struct {
	JobID       string    `json:"job_id"`
	SourceURL   string    `json:"source_url"`
	SourceType  string    `json:"source_type"`
	Backend     string    `json:"backend_used"`
	WordCount   int       `json:"word_count"`
	SubmittedAt time.Time `json:"submitted_at"`
	ProcessedAt time.Time `json:"processed_at"`
	LocalPath   string    `json:"local_path"`
}

// SaveTranscript writes outputs/YYYY/MM/DD/<timestamp>_<job>.txt plus a
// _meta.json sidecar and returns the transcript path.
func (ls *LocalStorage) SaveTranscript(result *types.TranscriptionResult) (string, error) {
	now := result.ProcessedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	baseFilename := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(result.JobID))
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(result.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	metaJSON, err := json.MarshalIndent(transcriptMeta{
		JobID:       result.JobID,
		SourceURL:   result.SourceURL,
		SourceType:  result.SourceType,
		Backend:     result.Backend,
		WordCount:   result.WordCount,
		SubmittedAt: result.SubmittedAt,
		ProcessedAt: now,
		LocalPath:   txtPath,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

// ReadTranscript returns the text stored at path, which must live under the
// output directory.
func (ls *LocalStorage) ReadTranscript(path string) (string, error) {
	root, err := filepath.Abs(ls.outputDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the output directory", types.ErrNotFound, path)
	}

	data, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" {
		result = "transcript"
	}
	return result
}
