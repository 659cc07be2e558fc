package transcription

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// FallbackModel is used when discovery yields nothing.
const FallbackModel = "models/gemini-1.5-flash"

// ModelInfo is one entry of the provider's model catalogue.
type ModelInfo struct {
	Name    string
	Methods []string
}

var legacyMarkers = []string{"1.0", "legacy", "vision", "-exp"}

// PickModel applies the selection policy to a catalogue: a current flash
// model, else a pro model, else the first generate-capable model, else
// fallback.
func PickModel(models []ModelInfo, fallback string) string {
	var capable []string
	for _, m := range models {
		if slices.Contains(m.Methods, "generateContent") {
			capable = append(capable, m.Name)
		}
	}

	for _, name := range capable {
		if strings.Contains(name, "flash") && !hasAny(name, legacyMarkers) {
			return name
		}
	}
	for _, name := range capable {
		if strings.Contains(name, "pro") && !strings.Contains(name, "vision") {
			return name
		}
	}
	if len(capable) > 0 {
		return capable[0]
	}
	if fallback == "" {
		return FallbackModel
	}
	return fallback
}

func hasAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type modelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelSelector resolves the model to call. A configured model wins;
// otherwise the catalogue is queried once and the answer cached. Failed
// discovery, or a catalogue with nothing generate-capable, falls back
// without caching so a later job can retry.
type ModelSelector struct {
	lister     modelLister
	configured string
	fallback   string
	logger     *slog.Logger

	mu     sync.Mutex
	cached string
}

func NewModelSelector(lister modelLister, configured, fallback string, logger *slog.Logger) *ModelSelector {
	return &ModelSelector{
		lister:     lister,
		configured: normalizeModelName(configured),
		fallback:   normalizeModelName(fallback),
		logger:     logger,
	}
}

// Choose never fails.
func (s *ModelSelector) Choose(ctx context.Context) string {
	if s.configured != "" {
		return s.configured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" {
		return s.cached
	}

	models, err := s.lister.ListModels(ctx)
	if err != nil {
		s.logger.Warn("model discovery failed, using fallback", "error", err, "model", PickModel(nil, s.fallback))
		return PickModel(nil, s.fallback)
	}
	model := PickModel(models, s.fallback)
	if !hasGenerator(models) {
		s.logger.Warn("no generate-capable model listed, using fallback", "model", model, "listed", len(models))
		return model
	}
	s.cached = model
	s.logger.Info("selected model", "model", s.cached, "candidates", len(models))
	return s.cached
}

func hasGenerator(models []ModelInfo) bool {
	for _, m := range models {
		if slices.Contains(m.Methods, "generateContent") {
			return true
		}
	}
	return false
}

func normalizeModelName(name string) string {
	if name == "" || strings.HasPrefix(name, "models/") {
		return name
	}
	return "models/" + name
}
