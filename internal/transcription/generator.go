package transcription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Generator turns a media item plus a prompt into transcript text.
type Generator interface {
	// Name returns the strategy name ("api" or "browser").
	Name() string
	// Ready reports configuration the strategy cannot run without.
	Ready() error
	// AcceptsRemote reports whether site URLs can be handed over unfetched.
	AcceptsRemote() bool
	Generate(ctx context.Context, media types.Media, prompt string) (types.Generation, error)
}

// New creates the generator selected by cfg.Generation.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Generation.Backend {
	case config.BackendAPI:
		return NewGeminiClient(ctx, cfg.Gemini, logger)
	case config.BackendBrowser:
		return NewBrowserClient(cfg.Browser, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown generation backend %q", types.ErrConfig, cfg.Generation.Backend)
	}
}
