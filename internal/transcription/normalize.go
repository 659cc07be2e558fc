package transcription

import (
	"regexp"
	"strings"
)

// DefaultNoiseMarkers is interface text that leaks into scraped responses.
var DefaultNoiseMarkers = []string{
	"Gemini can make mistakes, so double-check it",
	"Gemini may display inaccurate info, including about people, so double-check its responses.",
	"Show drafts",
	"Regenerate drafts",
	"volume_up",
	"expand_more",
	"content_copy",
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Normalizer strips boilerplate markers from generated text.
type Normalizer struct {
	markers []string
}

// NewNormalizer uses DefaultNoiseMarkers when markers is empty.
func NewNormalizer(markers []string) *Normalizer {
	if len(markers) == 0 {
		markers = DefaultNoiseMarkers
	}
	return &Normalizer{markers: markers}
}

func (n *Normalizer) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, m := range n.markers {
		text = strings.ReplaceAll(text, m, "")
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize cleans text with the default markers.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}
