package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Acquirer picks a strategy per URL and owns the files it creates.
type Acquirer struct {
	sitePatterns []string
	remoteSites  bool
	fetcher      *HTTPFetcher
	extractor    *SiteExtractor
	logger       *slog.Logger
}

// Options configure an Acquirer.
type Options struct {
	Download config.DownloadConfig
	TempDir  string
	// RemoteSites hands site URLs to the generator untouched instead of
	// downloading them. Set when the generator accepts remote references.
	RemoteSites bool
	Runner      Runner
	Logger      *slog.Logger
}

// New creates an Acquirer. The temp directory is created if needed.
func New(opts Options) (*Acquirer, error) {
	if err := os.MkdirAll(opts.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "download")

	return &Acquirer{
		sitePatterns: opts.Download.SitePatterns,
		remoteSites:  opts.RemoteSites,
		fetcher:      NewHTTPFetcher(opts.TempDir, opts.Download.HTTPTimeout),
		extractor:    NewSiteExtractor(opts.Download, opts.TempDir, opts.Runner, logger),
		logger:       logger,
	}, nil
}

// Classify reports whether rawURL is served by the site extractor or a plain
// HTTP fetch.
func (a *Acquirer) Classify(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", types.ErrDownload, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url scheme %q", types.ErrDownload, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url has no host", types.ErrDownload)
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range a.sitePatterns {
		p = strings.ToLower(p)
		if host == p || strings.HasSuffix(host, "."+p) {
			return types.SourceSite, nil
		}
	}
	return types.SourceDirect, nil
}

// Acquire materializes rawURL for jobID. On error nothing is left on disk.
func (a *Acquirer) Acquire(ctx context.Context, jobID, rawURL string) (types.Media, error) {
	sourceType, err := a.Classify(rawURL)
	if err != nil {
		return types.Media{}, err
	}

	switch {
	case sourceType == types.SourceSite && a.remoteSites:
		a.logger.Info("passing site url through as remote reference", "job_id", jobID)
		return types.Media{JobID: jobID, SourceURL: rawURL, SourceType: sourceType, Remote: true}, nil
	case sourceType == types.SourceSite:
		a.logger.Info("detected site url, extracting", "job_id", jobID)
		return a.extractor.Extract(ctx, jobID, rawURL)
	default:
		fetchURL := driveDownloadURL(rawURL)
		a.logger.Info("detected direct url, downloading", "job_id", jobID, "fetch_url", fetchURL)
		m, err := a.fetcher.Fetch(ctx, jobID, fetchURL)
		m.SourceURL = rawURL
		return m, err
	}
}

// Release removes the media file and its companions. Errors are logged.
func (a *Acquirer) Release(m types.Media) {
	for _, p := range append([]string{m.Path}, m.Companions...) {
		removeQuiet(a.logger, p)
	}
}

func removeQuiet(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to cleanup temp file", "path", path, "error", err)
	}
}
