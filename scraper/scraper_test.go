package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/profilescan/auth"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine/enginetest"
	"github.com/use-agent/profilescan/extractor"
	"github.com/use-agent/profilescan/models"
)

const profileText = "Alice Smith, staff engineer at Example Corp, twelve years in distributed storage."

type fakeStore struct {
	dir      string
	exists   bool
	resolved int
}

func (s *fakeStore) Resolve() (string, error) {
	s.resolved++
	return s.dir, nil
}

func (s *fakeStore) Exists() bool { return s.exists }

type harness struct {
	scraper  *Scraper
	launcher *enginetest.Launcher
	store    *fakeStore
	artifact string

	mu     sync.Mutex
	delays []time.Duration
}

func authConfig(withCreds bool) config.AuthConfig {
	cfg := config.AuthConfig{
		LoginURL:               "https://example.test/login",
		ProbeURL:               "https://example.test/feed/",
		AuthenticatedSelectors: []string{"#global-nav"},
		LoginFormSelectors:     []string{"#username"},
		SecondFactorSelectors:  []string{"#pin"},
		IdentifierField:        "#username",
		SecretField:            "#password",
		SubmitButton:           "#submit",
		CodeField:              "#pin",
		CodeSubmitButton:       "#pin-submit",
		ObserveTimeout:         20 * time.Millisecond,
	}
	if withCreds {
		cfg.Identifier, cfg.Secret = "me@example.com", "hunter2"
	}
	return cfg
}

func newHarness(t *testing.T, authCfg config.AuthConfig, pages func() *enginetest.Page) *harness {
	t.Helper()
	h := &harness{
		launcher: enginetest.NewLauncher(pages),
		store:    &fakeStore{dir: t.TempDir()},
		artifact: t.TempDir(),
	}
	cfg := config.ScraperConfig{
		RetryBaseDelay: 2 * time.Second,
		RetryMaxDelay:  30 * time.Second,
		ArtifactDir:    h.artifact,
	}
	ex := extractor.New(config.ExtractorConfig{
		MainSelector: "main",
		BodySelector: "body",
		Wait:         20 * time.Millisecond,
		MinLength:    50,
		MaxLength:    8000,
	})
	h.scraper = NewScraper(cfg, h.launcher, h.store, auth.NewEngine(authCfg, h.artifact, nil), ex)
	h.scraper.sleep = func(_ context.Context, d time.Duration) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.delays = append(h.delays, d)
		return nil
	}
	return h
}

func textPage() *enginetest.Page {
	return enginetest.NewPage().SetText("main", profileText)
}

func emptyPage() *enginetest.Page {
	return enginetest.NewPage()
}

func TestScrape_ScenarioA_PublicContentWithoutAuth(t *testing.T) {
	h := newHarness(t, authConfig(false), textPage)

	res, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{
		URL:        "https://www.linkedin.com/in/alice",
		MaxRetries: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "main-region", res.Strategy)
	assert.Equal(t, profileText, res.Text)
	assert.False(t, res.Authenticated)
	assert.Len(t, res.Fingerprint, 16)

	pages := h.launcher.AllPages()
	require.Len(t, pages, 1)
	assert.Equal(t, []string{"https://www.linkedin.com/in/alice"}, pages[0].Navigations, "no auth navigation")

	// Reuse disabled: a throwaway profile, removed after the call.
	require.Len(t, h.launcher.Launches, 1)
	profile := h.launcher.Launches[0].ProfileDir
	assert.NotEqual(t, h.store.dir, profile)
	assert.Zero(t, h.store.resolved)
	_, statErr := os.Stat(profile)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 1, h.launcher.BrowserCloses())
}

func TestScrape_ScenarioB_ReusedSession(t *testing.T) {
	h := newHarness(t, authConfig(true), func() *enginetest.Page {
		p := textPage()
		p.OnNavigate = func(p *enginetest.Page, url string) { p.Show("#global-nav") }
		return p
	})
	h.store.exists = true

	res, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{
		URL:               "https://www.linkedin.com/in/alice",
		AllowSessionReuse: true,
	})

	require.NoError(t, err)
	assert.True(t, res.Authenticated)
	assert.Equal(t, h.store.dir, h.launcher.Launches[0].ProfileDir)
	assert.Equal(t, 1, h.store.resolved)

	page := h.launcher.AllPages()[0]
	assert.Equal(t, []string{"https://example.test/feed/", "https://www.linkedin.com/in/alice"}, page.Navigations)
	assert.Empty(t, page.Typed)
}

func TestScrape_ScenarioF_AllRoundsEmpty(t *testing.T) {
	h := newHarness(t, authConfig(false), emptyPage)

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{
		URL:        "https://www.linkedin.com/in/alice",
		MaxRetries: 2,
	})

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeRetriesExhausted, models.CodeOf(err))
	assert.ErrorIs(t, err, models.ErrRetriesExhausted)
	assert.ErrorIs(t, err, models.ErrExtractionEmpty)

	pages := h.launcher.AllPages()
	require.Len(t, pages, 3)
	for _, p := range pages {
		assert.True(t, p.Closed)
	}
	last := pages[2].Screenshots
	require.Len(t, last, 1)
	assert.Equal(t, last[0], models.ArtifactOf(err))
	assert.True(t, strings.HasSuffix(last[0], "_r3.png"))
	assert.Equal(t, filepath.Dir(last[0]), h.artifact)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.delays)
	assert.Equal(t, 1, h.launcher.BrowserCloses())
}

func TestScrape_RoundBoundHoldsForAnyN(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		h := newHarness(t, authConfig(false), emptyPage)

		_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: n})

		require.Error(t, err)
		assert.Len(t, h.launcher.AllPages(), n+1, "n=%d", n)
		assert.Len(t, h.delays, n, "n=%d", n)
	}
}

func TestScrape_CarriesLastReasonNotFirst(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := newHarness(t, authConfig(false), func() *enginetest.Page {
		mu.Lock()
		defer mu.Unlock()
		calls++
		p := enginetest.NewPage()
		if calls == 1 {
			p.NavigateErr = errors.New("net::ERR_CONNECTION_RESET")
		}
		return p
	})

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 1})

	assert.ErrorIs(t, err, models.ErrExtractionEmpty)
	assert.NotErrorIs(t, err, models.ErrNavigation)
}

func TestScrape_NavigationFailure(t *testing.T) {
	h := newHarness(t, authConfig(false), func() *enginetest.Page {
		p := enginetest.NewPage()
		p.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
		return p
	})

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 0})

	assert.ErrorIs(t, err, models.ErrNavigation)
	assert.Empty(t, h.delays)
}

func TestScrape_SucceedsOnSecondRound(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := newHarness(t, authConfig(false), func() *enginetest.Page {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return emptyPage()
		}
		return textPage()
	})

	res, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 5})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Rounds)
	assert.Len(t, h.launcher.AllPages(), 2)
	assert.Equal(t, []time.Duration{2 * time.Second}, h.delays)
}

func TestScrape_AuthenticationFailureReusesLoginArtifact(t *testing.T) {
	h := newHarness(t, authConfig(true), func() *enginetest.Page {
		p := enginetest.NewPage()
		p.OnNavigate = func(p *enginetest.Page, url string) {
			p.HideAll().Show("#username", "#password", "#submit")
		}
		return p
	})

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{
		URL:        "https://www.linkedin.com/in/a",
		Login:      true,
		MaxRetries: 0,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, models.ErrLoginFailed)
	assert.ErrorIs(t, err, models.ErrCredentialsRejected)

	page := h.launcher.AllPages()[0]
	require.Len(t, page.Screenshots, 1, "no second capture for an auth failure")
	assert.Contains(t, page.Screenshots[0], "login_failed_")
	assert.Equal(t, page.Screenshots[0], models.ArtifactOf(err))
	assert.NotContains(t, page.Navigations, "https://www.linkedin.com/in/a")
}

func TestScrape_BackoffIsCapped(t *testing.T) {
	h := newHarness(t, authConfig(false), emptyPage)

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 6})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, h.delays)
}

func TestScrape_LaunchFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, authConfig(false), textPage)
	h.launcher.LaunchErr = errors.New("chromium not found")

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 2})

	assert.Equal(t, models.ErrCodeBrowserCrash, models.CodeOf(err))
	assert.Len(t, h.launcher.Launches, 1)
	assert.Empty(t, h.delays)
}

func TestScrape_PageFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, authConfig(false), textPage)
	h.launcher.PageErr = errors.New("target crashed")

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 2})

	assert.Equal(t, models.ErrCodeBrowserCrash, models.CodeOf(err))
	assert.Empty(t, h.delays)
	assert.Equal(t, 1, h.launcher.BrowserCloses())
}

func TestScrape_CanceledDuringBackoff(t *testing.T) {
	h := newHarness(t, authConfig(false), emptyPage)
	ctx, cancel := context.WithCancel(context.Background())
	h.scraper.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := h.scraper.Scrape(ctx, &models.ScrapeRequest{URL: "https://www.linkedin.com/in/a", MaxRetries: 3})

	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.Len(t, h.launcher.AllPages(), 1)
	assert.Equal(t, 1, h.launcher.BrowserCloses())
}

func TestScrape_LoginWithoutCredentialsIsNotRetried(t *testing.T) {
	h := newHarness(t, authConfig(false), textPage)

	_, err := h.scraper.Scrape(context.Background(), &models.ScrapeRequest{
		URL:        "https://www.linkedin.com/in/a",
		Login:      true,
		MaxRetries: 2,
	})

	assert.Equal(t, models.ErrCodeAuthenticationFailed, models.CodeOf(err))
	assert.ErrorIs(t, err, models.ErrLoginFailed)
	assert.ErrorIs(t, err, models.ErrCredentialsMissing)
	assert.Empty(t, h.launcher.Launches)
	assert.Empty(t, h.delays)
}
