package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// HTTPFetcher streams a URL to <tempDir>/<jobID><ext>.
type HTTPFetcher struct {
	tempDir string
	client  *http.Client
}

func NewHTTPFetcher(tempDir string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		tempDir: tempDir,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, jobID, rawURL string) (types.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.Media{}, fmt.Errorf("%w: %v", types.ErrDownload, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return types.Media{}, fmt.Errorf("%w: %v", types.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.Media{}, fmt.Errorf("%w: %s returned HTTP %d", types.ErrDownload, rawURL, resp.StatusCode)
	}

	ext, mimeType := detectType(resp.Request.URL.Path, resp.Header.Get("Content-Type"))
	dest := filepath.Join(f.tempDir, fmt.Sprintf("%s%s", jobID, ext))

	out, err := os.Create(dest)
	if err != nil {
		return types.Media{}, fmt.Errorf("%w: create %s: %v", types.ErrDownload, dest, err)
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(dest)
		if copyErr == nil {
			copyErr = closeErr
		}
		return types.Media{}, fmt.Errorf("%w: write %s: %v", types.ErrDownload, dest, copyErr)
	}

	return types.Media{
		JobID:      jobID,
		SourceURL:  rawURL,
		SourceType: types.SourceDirect,
		Path:       dest,
		MimeType:   mimeType,
	}, nil
}

// detectType prefers a known extension in the URL path, then the response
// Content-Type, and falls back to mp4.
func detectType(urlPath, contentType string) (string, string) {
	ext := strings.ToLower(path.Ext(urlPath))
	if m, ok := videoExtensions[ext]; ok {
		return ext, m
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		for e, m := range videoExtensions {
			if m == mt {
				return e, m
			}
		}
		if strings.HasPrefix(mt, "video/") || strings.HasPrefix(mt, "audio/") {
			return ".mp4", mt
		}
	}
	return ".mp4", "video/mp4"
}
