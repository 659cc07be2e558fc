package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// BrowserBackend is reported as backend_used for browser jobs.
const BrowserBackend = "browser"

// BrowserClient drives the consumer web app in headless Chrome using an
// exported session cookie file.
type BrowserClient struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

func NewBrowserClient(cfg config.BrowserConfig, logger *slog.Logger) *BrowserClient {
	return &BrowserClient{cfg: cfg, logger: logger.With("component", "browser")}
}

func (b *BrowserClient) Name() string        { return config.BackendBrowser }
func (b *BrowserClient) AcceptsRemote() bool { return true }

func (b *BrowserClient) Ready() error {
	if b.cfg.CookiesFile == "" {
		return fmt.Errorf("%w: GEMINI_COOKIES_FILE is not set", types.ErrConfig)
	}
	if _, err := os.Stat(b.cfg.CookiesFile); err != nil {
		return fmt.Errorf("%w: cookie file: %v", types.ErrConfig, err)
	}
	return nil
}

func (b *BrowserClient) Generate(ctx context.Context, media types.Media, prompt string) (types.Generation, error) {
	gen := types.Generation{Backend: BrowserBackend}
	logger := b.logger.With("job_id", media.JobID)

	cookies, err := LoadCookies(b.cfg.CookiesFile)
	if err != nil {
		return gen, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var location string
	err = chromedp.Run(browserCtx,
		network.Enable(),
		network.SetCookies(cookies),
		chromedp.Navigate(b.cfg.AppURL),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
	)
	if err != nil {
		return gen, b.wrapRunErr(ctx, "open app", err)
	}
	if b.isLoginPage(location) {
		return gen, fmt.Errorf("%w: redirected to %s, export fresh cookies", types.ErrAuthExpired, location)
	}
	logger.Info("browser session ready", "location", location)

	text := prompt
	var actions []chromedp.Action
	if media.Remote {
		text = prompt + "\n\n" + media.SourceURL
	} else {
		abs, err := filepath.Abs(media.Path)
		if err != nil {
			return gen, fmt.Errorf("%w: %v", types.ErrRemoteProcessing, err)
		}
		actions = append(actions,
			chromedp.SetUploadFiles(b.cfg.UploadSelector, []string{abs}, chromedp.ByQuery),
			// give the app time to attach the upload before sending
			chromedp.Sleep(3*time.Second),
		)
	}
	actions = append(actions,
		chromedp.WaitVisible(b.cfg.PromptSelector, chromedp.ByQuery),
		chromedp.Click(b.cfg.PromptSelector, chromedp.ByQuery),
		chromedp.SendKeys(b.cfg.PromptSelector, text, chromedp.ByQuery),
		chromedp.WaitEnabled(b.cfg.SendSelector, chromedp.ByQuery),
		chromedp.Click(b.cfg.SendSelector, chromedp.ByQuery),
	)
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return gen, b.wrapRunErr(ctx, "submit prompt", err)
	}
	logger.Info("prompt submitted, waiting for response to settle")

	read := func(ctx context.Context) (string, error) {
		var s string
		err := chromedp.Run(browserCtx, chromedp.Evaluate(lastResponseJS(b.cfg.ResponseSelector), &s,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithReturnByValue(true)
			}))
		return s, err
	}
	out, err := waitForStableText(ctx, read, b.cfg.Stabilize)
	if err != nil {
		return gen, err
	}
	gen.Text = out
	return gen, nil
}

func (b *BrowserClient) isLoginPage(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	for _, h := range b.cfg.LoginHosts {
		if strings.EqualFold(u.Hostname(), h) {
			return true
		}
	}
	return false
}

func (b *BrowserClient) wrapRunErr(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return wrapCtxErr(ctx, fmt.Errorf("%s: %v", step, err))
	}
	return fmt.Errorf("%w: browser %s: %v", types.ErrRemoteProcessing, step, err)
}

func lastResponseJS(selector string) string {
	sel, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%s);
		return els.length ? els[els.length - 1].innerText : "";
	})()`, sel)
}

// exportedCookie is the JSON shape produced by common browser cookie
// export extensions.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	SameSite       string  `json:"sameSite"`
	ExpirationDate float64 `json:"expirationDate"`
	Session        bool    `json:"session"`
}

// LoadCookies parses a JSON cookie export into CDP cookie params.
func LoadCookies(path string) ([]*network.CookieParam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	var raw []exportedCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cookie file %s is empty", path)
	}

	params := make([]*network.CookieParam, 0, len(raw))
	for _, c := range raw {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = network.CookieSameSiteNone
		}
		if !c.Session && c.ExpirationDate > 0 {
			sec := int64(c.ExpirationDate)
			exp := cdp.TimeSinceEpoch(time.Unix(sec, 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params, nil
}
