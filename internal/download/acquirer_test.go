package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// fakeRunner records invocations and replays scripted results per call.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	steps []func(args []string) ([]byte, error)
}

func (r *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	i := len(r.calls) - 1
	if i >= len(r.steps) {
		return []byte("ERROR: unexpected call"), errors.New("exit status 1")
	}
	return r.steps[i](args)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func writeOutput(args []string) ([]byte, error) {
	return nil, os.WriteFile(argAfter(args, "-o"), []byte("merged video"), 0644)
}

func fail(msg string) func([]string) ([]byte, error) {
	return func([]string) ([]byte, error) {
		return []byte(msg), errors.New("exit status 1")
	}
}

func newTestAcquirer(t *testing.T, runner *fakeRunner, mutate func(*Options)) (*Acquirer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default().Download
	opts := Options{Download: cfg, TempDir: dir, Runner: runner.run}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a, dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestClassify(t *testing.T) {
	a, _ := newTestAcquirer(t, &fakeRunner{}, nil)

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc", types.SourceSite},
		{"https://youtu.be/abc", types.SourceSite},
		{"https://music.youtube.com/watch?v=abc", types.SourceSite},
		{"https://storage.example.com/video.mp4", types.SourceDirect},
		{"https://notyoutube.com/x.mp4", types.SourceDirect},
	}
	for _, tt := range tests {
		got, err := a.Classify(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}

	_, err := a.Classify("ftp://example.com/a.mp4")
	assert.ErrorIs(t, err, types.ErrDownload)
	_, err = a.Classify("not a url")
	assert.ErrorIs(t, err, types.ErrDownload)
}

func TestAcquire_DirectFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.webm":
			w.Header().Set("Content-Type", "video/webm")
			_, _ = w.Write([]byte("webm-bytes"))
		case "/stream":
			w.Header().Set("Content-Type", "video/quicktime; charset=binary")
			_, _ = w.Write([]byte("mov-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, dir := newTestAcquirer(t, &fakeRunner{}, nil)

	m, err := a.Acquire(context.Background(), "job-1", srv.URL+"/clip.webm")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-1.webm"), m.Path)
	assert.Equal(t, "video/webm", m.MimeType)
	assert.Equal(t, types.SourceDirect, m.SourceType)
	data, err := os.ReadFile(m.Path)
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))

	m2, err := a.Acquire(context.Background(), "job-2", srv.URL+"/stream")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-2.mov"), m2.Path)
	assert.Equal(t, "video/quicktime", m2.MimeType)

	a.Release(m)
	a.Release(m2)
	a.Release(m2) // idempotent
	assert.Empty(t, dirEntries(t, dir))
}

func TestAcquire_DirectFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a, dir := newTestAcquirer(t, &fakeRunner{}, nil)

	_, err := a.Acquire(context.Background(), "job-1", srv.URL+"/missing.mp4")
	require.ErrorIs(t, err, types.ErrDownload)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, dirEntries(t, dir))
}

func TestAcquire_DirectFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	a, _ := newTestAcquirer(t, &fakeRunner{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Acquire(ctx, "job-1", srv.URL+"/slow.mp4")
	assert.ErrorIs(t, err, types.ErrDownload)
}

func TestAcquire_SiteFallsThroughClients(t *testing.T) {
	runner := &fakeRunner{steps: []func([]string) ([]byte, error){
		fail("ERROR: [youtube] abc: Requested format is not available"),
		writeOutput,
	}}
	a, dir := newTestAcquirer(t, runner, nil)

	m, err := a.Acquire(context.Background(), "job-1", "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-1.mp4"), m.Path)
	assert.Equal(t, types.SourceSite, m.SourceType)
	assert.Empty(t, m.Companions)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "yt-dlp", runner.calls[0][0])
	assert.Equal(t, "youtube:player_client=android", argAfter(runner.calls[0], "--extractor-args"))
	assert.Equal(t, "youtube:player_client=ios", argAfter(runner.calls[1], "--extractor-args"))
	assert.Equal(t, "mp4", argAfter(runner.calls[1], "--merge-output-format"))
	assert.Equal(t, "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best", argAfter(runner.calls[1], "-f"))
	assert.Empty(t, argAfter(runner.calls[1], "--cookies"))
}

func TestAcquire_SiteUsesPerJobCookieCopy(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(bundle, []byte("# Netscape HTTP Cookie File\n"), 0600))

	var seen string
	runner := &fakeRunner{steps: []func([]string) ([]byte, error){
		func(args []string) ([]byte, error) {
			seen = argAfter(args, "--cookies")
			return writeOutput(args)
		},
	}}
	a, dir := newTestAcquirer(t, runner, func(o *Options) { o.Download.CookiesFile = bundle })

	m, err := a.Acquire(context.Background(), "job-7", "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-7.cookies.txt"), seen)
	assert.Equal(t, []string{seen}, m.Companions)

	a.Release(m)
	assert.Empty(t, dirEntries(t, dir))
	// the shared bundle is untouched
	_, err = os.Stat(bundle)
	assert.NoError(t, err)
}

func TestAcquire_SiteAuthWall(t *testing.T) {
	wall := "ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser or --cookies"
	runner := &fakeRunner{steps: []func([]string) ([]byte, error){
		fail(wall), fail(wall), fail("ERROR: unavailable"), fail(wall),
	}}
	a, dir := newTestAcquirer(t, runner, nil)

	_, err := a.Acquire(context.Background(), "job-1", "https://www.youtube.com/watch?v=abc")
	require.ErrorIs(t, err, types.ErrAuthRequired)
	assert.Contains(t, err.Error(), "provide a cookie bundle")
	assert.Len(t, runner.calls, 4)
	assert.Empty(t, dirEntries(t, dir))
}

func TestAcquire_SiteAuthWallWithRejectedCookies(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(bundle, []byte("# Netscape HTTP Cookie File\n"), 0600))

	wall := "ERROR: [youtube] abc: Sign in to confirm you're not a bot"
	runner := &fakeRunner{steps: []func([]string) ([]byte, error){
		fail(wall), fail(wall), fail(wall), fail(wall),
	}}
	a, dir := newTestAcquirer(t, runner, func(o *Options) { o.Download.CookiesFile = bundle })

	_, err := a.Acquire(context.Background(), "job-1", "https://www.youtube.com/watch?v=abc")
	require.ErrorIs(t, err, types.ErrAuthRequired)
	assert.Contains(t, err.Error(), "cookie bundle was rejected")
	assert.NotContains(t, err.Error(), "provide a cookie bundle")
	assert.Empty(t, dirEntries(t, dir))
}

func TestAcquire_SiteGenericFailureRemovesPartials(t *testing.T) {
	failWithPartial := func(args []string) ([]byte, error) {
		_ = os.WriteFile(argAfter(args, "-o")+".part", []byte("half"), 0644)
		return []byte("ERROR: Video unavailable"), errors.New("exit status 1")
	}
	runner := &fakeRunner{steps: []func([]string) ([]byte, error){
		failWithPartial, failWithPartial, failWithPartial, failWithPartial,
	}}
	a, dir := newTestAcquirer(t, runner, nil)

	_, err := a.Acquire(context.Background(), "job-1", "https://www.youtube.com/watch?v=abc")
	require.ErrorIs(t, err, types.ErrDownload)
	assert.False(t, errors.Is(err, types.ErrAuthRequired))
	assert.True(t, strings.Contains(err.Error(), "Video unavailable"))
	assert.Empty(t, dirEntries(t, dir))
}

func TestAcquire_RemoteReferenceMode(t *testing.T) {
	runner := &fakeRunner{}
	a, dir := newTestAcquirer(t, runner, func(o *Options) { o.RemoteSites = true })

	m, err := a.Acquire(context.Background(), "job-1", "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.True(t, m.Remote)
	assert.Empty(t, m.Path)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", m.SourceURL)
	assert.Empty(t, runner.calls)
	assert.Empty(t, dirEntries(t, dir))
}

func TestDriveDownloadURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://drive.google.com/file/d/1AbC-_xyz/view?usp=sharing", "https://drive.google.com/uc?export=download&id=1AbC-_xyz"},
		{"https://drive.google.com/open?id=1AbC-_xyz", "https://drive.google.com/uc?export=download&id=1AbC-_xyz"},
		{"https://drive.google.com/uc?export=download&id=1AbC", "https://drive.google.com/uc?export=download&id=1AbC"},
		{"https://example.com/file/d/123/view", "https://example.com/file/d/123/view"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, driveDownloadURL(tt.in), tt.in)
	}
}
