package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Runner executes an external command and returns its combined diagnostics.
type Runner func(ctx context.Context, name string, args ...string) (output []byte, err error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Markers yt-dlp prints when a site refuses anonymous access.
var authWallMarkers = []string{
	"sign in to confirm",
	"login required",
	"cookies",
	"not a bot",
}

// SiteExtractor downloads from video sites through yt-dlp, trying each
// player client identity in turn.
type SiteExtractor struct {
	binary      string
	format      string
	clients     []string
	cookiesFile string
	tempDir     string
	run         Runner
	logger      *slog.Logger
}

func NewSiteExtractor(cfg config.DownloadConfig, tempDir string, run Runner, logger *slog.Logger) *SiteExtractor {
	if run == nil {
		run = ExecRunner
	}
	clients := cfg.PlayerClients
	if len(clients) == 0 {
		// let yt-dlp choose
		clients = []string{""}
	}
	return &SiteExtractor{
		binary:      cfg.YtDlpPath,
		format:      cfg.Format,
		clients:     clients,
		cookiesFile: cfg.CookiesFile,
		tempDir:     tempDir,
		run:         run,
		logger:      logger,
	}
}

func (e *SiteExtractor) Extract(ctx context.Context, jobID, rawURL string) (types.Media, error) {
	output := filepath.Join(e.tempDir, fmt.Sprintf("%s.mp4", jobID))

	cookies := e.prepareCookies(jobID)
	var companions []string
	if cookies != "" {
		companions = append(companions, cookies)
	}

	authWall := false
	var lastErr error
	for _, client := range e.clients {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		out, err := e.run(ctx, e.binary, e.args(rawURL, output, client, cookies)...)
		if err == nil {
			produced, ferr := e.findOutput(jobID, output)
			if ferr == nil {
				e.logger.Info("site download complete", "job_id", jobID, "player_client", client)
				return types.Media{
					JobID:      jobID,
					SourceURL:  rawURL,
					SourceType: types.SourceSite,
					Path:       produced,
					MimeType:   "video/mp4",
					Companions: companions,
				}, nil
			}
			err = ferr
		}

		if looksLikeAuthWall(out) {
			authWall = true
		}
		lastErr = fmt.Errorf("%v: %s", err, lastLine(out))
		e.logger.Warn("yt-dlp attempt failed", "job_id", jobID, "player_client", client, "error", lastErr)
		e.removePartials(jobID, cookies)
	}

	e.removePartials(jobID, cookies)
	for _, c := range companions {
		removeQuiet(e.logger, c)
	}

	if authWall {
		hint := "provide a cookie bundle via YTDLP_COOKIES_FILE"
		if cookies != "" {
			hint = "the cookie bundle was rejected, refresh the file named by YTDLP_COOKIES_FILE"
		}
		return types.Media{}, fmt.Errorf("%w: %s (last error: %v)", types.ErrAuthRequired, hint, lastErr)
	}
	return types.Media{}, fmt.Errorf("%w: yt-dlp: %v", types.ErrDownload, lastErr)
}

func (e *SiteExtractor) args(rawURL, output, client, cookies string) []string {
	args := []string{
		"-f", e.format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--no-warnings",
		"-o", output,
	}
	if client != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+client)
	}
	if cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	return append(args, rawURL)
}

// prepareCookies copies the shared cookie bundle so concurrent jobs never
// write to the same jar. A missing bundle means an unauthenticated attempt.
func (e *SiteExtractor) prepareCookies(jobID string) string {
	if e.cookiesFile == "" {
		return ""
	}
	dest := filepath.Join(e.tempDir, fmt.Sprintf("%s.cookies.txt", jobID))
	if err := copyFile(e.cookiesFile, dest); err != nil {
		e.logger.Warn("cookie bundle unavailable, continuing without it", "job_id", jobID, "file", e.cookiesFile, "error", err)
		os.Remove(dest)
		return ""
	}
	return dest
}

// findOutput returns the produced media file. yt-dlp normally honours the
// output path but may keep another container when merging is impossible.
func (e *SiteExtractor) findOutput(jobID, expected string) (string, error) {
	if info, err := os.Stat(expected); err == nil && info.Size() > 0 {
		return expected, nil
	}
	matches, _ := filepath.Glob(filepath.Join(e.tempDir, jobID+".*"))
	for _, m := range matches {
		if strings.HasSuffix(m, ".cookies.txt") || strings.HasSuffix(m, ".part") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp reported success but produced no file")
}

func (e *SiteExtractor) removePartials(jobID, keep string) {
	matches, _ := filepath.Glob(filepath.Join(e.tempDir, jobID+".*"))
	for _, m := range matches {
		if m != keep {
			removeQuiet(e.logger, m)
		}
	}
}

func looksLikeAuthWall(out []byte) bool {
	lower := strings.ToLower(string(out))
	for _, marker := range authWallMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
