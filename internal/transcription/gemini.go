package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// FileState is the provider-side processing state of an uploaded file.
type FileState int

const (
	FileProcessing FileState = iota
	FileReady
	FileFailed
)

func (s FileState) String() string {
	switch s {
	case FileProcessing:
		return "PROCESSING"
	case FileReady:
		return "ACTIVE"
	default:
		return "FAILED"
	}
}

// RemoteFile is a handle to media the provider can read.
type RemoteFile struct {
	Name     string
	URI      string
	MimeType string
	State    FileState
	// Reason is the provider's explanation when State is FileFailed.
	Reason string
}

// fileAPI is the slice of the Gemini API the client needs.
type fileAPI interface {
	modelLister
	Upload(ctx context.Context, path, mimeType, displayName string) (RemoteFile, error)
	GetFile(ctx context.Context, name string) (RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, model string, file RemoteFile, prompt string) (string, error)
}

// GeminiClient implements the managed API strategy: upload, wait until the
// file is processed, generate, delete.
type GeminiClient struct {
	api          fileAPI
	selector     *ModelSelector
	pollInterval time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewGeminiClient builds a client from configuration. Without an API key
// the client is still returned; Ready reports the problem per job.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	logger = logger.With("component", "gemini")
	if cfg.APIKey == "" {
		logger.Warn("GOOGLE_API_KEY is not set; api jobs will fail until it is configured")
		return newGeminiClient(nil, cfg, logger), nil
	}

	api, err := newGenaiFileAPI(ctx, cfg.APIKey, genai.HTTPOptions{BaseURL: cfg.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini service: %v", types.ErrConfig, err)
	}
	return newGeminiClient(api, cfg, logger), nil
}

func newGeminiClient(api fileAPI, cfg config.GeminiConfig, logger *slog.Logger) *GeminiClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	c := &GeminiClient{
		api:          api,
		pollInterval: poll,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
	}
	if api != nil {
		c.selector = NewModelSelector(c, cfg.Model, cfg.DefaultModel, logger)
	}
	return c
}

func (c *GeminiClient) Name() string        { return config.BackendAPI }
func (c *GeminiClient) AcceptsRemote() bool { return false }

func (c *GeminiClient) Ready() error {
	if c.api == nil {
		return fmt.Errorf("%w: GOOGLE_API_KEY is not set", types.ErrConfig)
	}
	return nil
}

// ListModels satisfies modelLister through the rate limiter.
func (c *GeminiClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.api.ListModels(ctx)
}

func (c *GeminiClient) Generate(ctx context.Context, media types.Media, prompt string) (types.Generation, error) {
	if err := c.Ready(); err != nil {
		return types.Generation{}, err
	}

	model := c.selector.Choose(ctx)
	gen := types.Generation{Backend: model}
	logger := c.logger.With("job_id", media.JobID, "model", model)

	var file RemoteFile
	if media.Remote {
		file = RemoteFile{URI: media.SourceURL, MimeType: media.MimeType, State: FileReady}
	} else {
		uploaded, err := c.upload(ctx, media)
		if err != nil {
			return gen, err
		}
		defer c.deleteRemote(logger, uploaded.Name)

		logger.Info("uploaded media, waiting for processing", "file", uploaded.Name)
		file, err = c.waitActive(ctx, uploaded)
		if err != nil {
			return gen, err
		}
	}

	logger.Info("generating transcript")
	if err := c.limiter.Wait(ctx); err != nil {
		return gen, wrapCtxErr(ctx, err)
	}
	text, err := c.api.Generate(ctx, model, file, prompt)
	if err != nil {
		return gen, classifyAPIError(ctx, "generate content", err)
	}
	gen.Text = text
	return gen, nil
}

func (c *GeminiClient) upload(ctx context.Context, media types.Media) (RemoteFile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return RemoteFile{}, wrapCtxErr(ctx, err)
	}
	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	f, err := c.api.Upload(ctx, media.Path, mimeType, media.JobID)
	if err != nil {
		return RemoteFile{}, classifyAPIError(ctx, "upload media", err)
	}
	return f, nil
}

// waitActive polls until the file leaves the processing state.
func (c *GeminiClient) waitActive(ctx context.Context, f RemoteFile) (RemoteFile, error) {
	for f.State == FileProcessing {
		select {
		case <-ctx.Done():
			return f, wrapCtxErr(ctx, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return f, wrapCtxErr(ctx, err)
		}
		next, err := c.api.GetFile(ctx, f.Name)
		if err != nil {
			return f, classifyAPIError(ctx, "poll file state", err)
		}
		f = next
	}

	if f.State == FileFailed {
		reason := f.Reason
		if reason == "" {
			reason = f.State.String()
		}
		return f, fmt.Errorf("%w: media processing failed: %s", types.ErrRemoteProcessing, reason)
	}
	return f, nil
}

// deleteRemote is best-effort and runs on its own deadline so a cancelled
// job still cleans up.
func (c *GeminiClient) deleteRemote(logger *slog.Logger, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.api.DeleteFile(ctx, name); err != nil {
		logger.Warn("failed to delete remote file", "file", name, "error", err)
	}
}

func wrapCtxErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return err
}
