package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/models"
	"github.com/ysmood/gson"
)

// defaultUserAgent is a desktop Chrome user agent used when none is configured.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RodLauncher launches Chromium through go-rod with stealth flags.
type RodLauncher struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
}

// NewRodLauncher creates a launcher for the given browser and timing settings.
func NewRodLauncher(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *RodLauncher {
	return &RodLauncher{browserCfg: browserCfg, scraperCfg: scraperCfg}
}

// Launch starts a browser process bound to opts.ProfileDir.
func (l *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless && !opts.Visible).
		NoSandbox(l.browserCfg.NoSandbox)

	if opts.ProfileDir != "" {
		ln = ln.UserDataDir(opts.ProfileDir)
	}
	if l.browserCfg.BrowserBin != "" {
		ln = ln.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		ln = ln.Proxy(l.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))
	ln.Set(flags.Flag("window-size"), "1920,1080")

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "profile", opts.ProfileDir)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &rodBrowser{browser: browser, launcher: ln, cfg: l}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      *RodLauncher
}

// NewPage opens a fresh tab with stealth, headers and resource blocking installed.
// All of these must be in place before the first navigation.
func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	page = page.Context(context.Background())

	if b.cfg.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	ua := b.cfg.browserCfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	applyOverrides([]pageOverride{
		{"user agent", func() error {
			return page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
				UserAgent:      ua,
				AcceptLanguage: "en-US,en;q=0.9",
			})
		}},
		{"viewport", func() error {
			return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
				Width:             1920,
				Height:            1080,
				DeviceScaleFactor: 1,
			})
		}},
		{"extra headers", func() error {
			return proto.NetworkSetExtraHTTPHeaders{
				Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
			}.Call(page)
		}},
	})

	router := setupHijack(page, b.cfg.browserCfg.BlockedResourceTypes)

	return &rodPage{
		page:       page,
		router:     router,
		navTimeout: b.cfg.scraperCfg.NavigationTimeout,
		settleWait: b.cfg.scraperCfg.SettleWait,
	}, nil
}

// Close closes the browser without the launcher's Cleanup, which would remove
// the user-data directory holding the persisted session.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if err != nil {
		b.launcher.Kill()
	}
	return err
}

type rodPage struct {
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration
	settleWait time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	nav := p.page.Context(ctx)
	if p.navTimeout > 0 {
		nav = nav.Timeout(p.navTimeout)
	}
	if err := nav.Navigate(url); err != nil {
		return categorizeError(ctx, err, "navigation to "+url+" failed")
	}
	if err := nav.WaitLoad(); err != nil {
		slog.Debug("WaitLoad did not complete, proceeding", "error", err)
	}

	settle := p.page.Context(ctx)
	if p.settleWait > 0 {
		settle = settle.Timeout(p.settleWait)
	}
	if err := settle.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return categorizeError(ctx, err, "navigation interrupted")
	}
	return nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		return nil, err
	}
	return el.CancelTimeout().Context(ctx), nil
}

func (p *rodPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := p.element(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(ctx, err, "failed to extract page HTML")
	}
	return html, nil
}

func (p *rodPage) Meta(ctx context.Context) (string, string) {
	pg := p.page.Context(ctx)
	title := evalStringOrEmpty(pg, `() => document.title`)
	desc := evalStringOrEmpty(pg, `() => {
		const m = document.querySelector('meta[name="description"]');
		return m ? m.getAttribute('content') || '' : '';
	}`)
	return title, desc
}

func (p *rodPage) URL(ctx context.Context) string {
	return evalStringOrEmpty(p.page.Context(ctx), `() => window.location.href`)
}

func (p *rodPage) Type(ctx context.Context, selector, value string, timeout time.Duration) error {
	el, err := p.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		slog.Debug("select all text failed", "selector", selector, "error", err)
	}
	return el.Input(value)
}

func (p *rodPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) PressEnter(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector, time.Second)
	if err != nil {
		return err
	}
	return el.Type(input.Enter)
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	img, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0o600)
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// pageOverride is one best-effort page setup call.
type pageOverride struct {
	name  string
	apply func() error
}

// applyOverrides runs every override in order. A failure is logged at debug
// and does not stop the remaining overrides.
func applyOverrides(overrides []pageOverride) {
	for _, o := range overrides {
		if err := o.apply(); err != nil {
			slog.Debug("page override failed", "override", o.name, "error", err)
		}
	}
}

// categorizeError wraps raw browser errors into typed ScrapeErrors.
// A canceled caller context is reported as a timeout.
func categorizeError(ctx context.Context, err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
