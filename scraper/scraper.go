// Package scraper runs the retrying scrape: one browser per call, strictly
// sequential rounds of authenticate, navigate and extract.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/use-agent/profilescan/auth"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine"
	"github.com/use-agent/profilescan/extractor"
	"github.com/use-agent/profilescan/models"
	"github.com/use-agent/profilescan/session"
	"github.com/use-agent/profilescan/simhash"
)

// SessionStore is the persisted-profile surface the scraper needs.
type SessionStore interface {
	Resolve() (string, error)
	Exists() bool
}

// Scraper orchestrates scrape rounds. A Scraper may be reused across calls
// but a single call never runs rounds concurrently.
type Scraper struct {
	cfg       config.ScraperConfig
	launcher  engine.Launcher
	store     SessionStore
	auth      *auth.Engine
	extractor *extractor.Extractor

	// sleep waits between rounds; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScraper wires the orchestrator's collaborators.
func NewScraper(cfg config.ScraperConfig, launcher engine.Launcher, store SessionStore, authEngine *auth.Engine, ex *extractor.Extractor) *Scraper {
	return &Scraper{
		cfg:       cfg,
		launcher:  launcher,
		store:     store,
		auth:      authEngine,
		extractor: ex,
		sleep:     sleepCtx,
	}
}

// Scrape returns the profile text of req.URL, retrying failed rounds up to
// req.MaxRetries times with exponential backoff.
//
// Lifecycle:
//
//  0. Preflight         – a login request without credentials fails before launch
//  1. Profile dir        – persisted store, or a throwaway dir when reuse is off
//  2. Launch             – one browser for the whole call; closed on every path
//  3. Rounds 1..n+1      – fresh page per round: auth → navigate → extract
//  4. Round failure      – screenshot (best-effort), backoff, next round
//  5. Exhausted          – RETRIES_EXHAUSTED wrapping the last round's reason
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	req.Defaults()
	runID := uuid.NewString()[:8]
	log := slog.With("run", runID, "url", req.URL)
	start := time.Now()

	if req.Login && !s.auth.HasCredentials() {
		log.Error("login requested without credentials; not launching")
		loginErr := models.NewScrapeError(models.ErrCodeLoginFailed, "login failed", auth.CredentialsMissing())
		return nil, models.NewScrapeError(models.ErrCodeAuthenticationFailed, "authentication failed", loginErr)
	}

	// ── 1. Profile dir ───────────────────────────────────────────────
	// Session presence is decided before launch; the browser populates
	// the dir as soon as it starts.
	sessionAvailable := req.AllowSessionReuse && s.store.Exists()
	profileDir, cleanup, err := s.profileDir(req.AllowSessionReuse)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// ── 2. Launch ────────────────────────────────────────────────────
	browser, err := s.launcher.Launch(ctx, engine.LaunchOptions{ProfileDir: profileDir, Visible: req.Visible})
	if err != nil {
		if models.CodeOf(err) == models.ErrCodeInternal {
			err = models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
		}
		return nil, err
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.Warn("browser close failed", "error", closeErr)
		}
	}()

	run := s.auth.NewRun(auth.RunOptions{
		RunID:            runID,
		SessionAvailable: sessionAvailable,
		LoginRequested:   req.Login,
	})
	bo := s.newBackOff()
	rounds := req.Rounds()
	tracker := &roundTracker{}

	log.Info("scrape started", "rounds", rounds, "session_reuse", sessionAvailable, "login", req.Login)

	// ── 3. Rounds ────────────────────────────────────────────────────
	var lastErr error
	var lastArtifact string
	for round := 1; round <= rounds; round++ {
		result, artifact, roundErr := s.round(ctx, browser, run, req, runID, round, tracker)
		if roundErr == nil {
			result.Rounds = round
			log.Info("scrape succeeded",
				"round", round,
				"strategy", result.Strategy,
				"length", result.Length,
				"authenticated", result.Authenticated,
				"duration", time.Since(start),
			)
			return result, nil
		}
		lastErr, lastArtifact = roundErr, artifact

		if models.CodeOf(roundErr) == models.ErrCodeBrowserCrash {
			log.Error("browser failed; not retrying", "round", round, "error", roundErr)
			return nil, roundErr
		}
		if ctx.Err() != nil || round == rounds {
			break
		}

		// ── 4. Backoff ───────────────────────────────────────────────
		delay := bo.NextBackOff()
		log.Warn("round failed; retrying",
			"round", round,
			"code", models.CodeOf(roundErr),
			"error", roundErr,
			"backoff", delay,
		)
		if err := s.sleep(ctx, delay); err != nil {
			break
		}
	}

	// ── 5. Exhausted ─────────────────────────────────────────────────
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "scrape canceled", ctxErr).WithArtifact(lastArtifact)
	}
	log.Error("scrape failed", "rounds", rounds, "code", models.CodeOf(lastErr), "artifact", lastArtifact)
	return nil, models.NewScrapeError(
		models.ErrCodeRetriesExhausted,
		fmt.Sprintf("no usable content after %d rounds", rounds),
		lastErr,
	).WithArtifact(lastArtifact)
}

// round runs one authenticate → navigate → extract pass on a fresh page.
// On failure it returns the diagnostic artifact path, if any.
func (s *Scraper) round(
	ctx context.Context,
	browser engine.Browser,
	run *auth.Run,
	req *models.ScrapeRequest,
	runID string,
	round int,
	tracker *roundTracker,
) (*models.ScrapeResult, string, error) {
	log := slog.With("run", runID, "round", round)

	page, err := browser.NewPage(ctx)
	if err != nil {
		if models.CodeOf(err) == models.ErrCodeInternal {
			err = models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
		}
		return nil, "", err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.Debug("page close failed", "error", closeErr)
		}
	}()

	attempt, err := run.Authenticate(ctx, page)
	if err != nil {
		if errors.Is(err, models.ErrLoginFailed) {
			// The login failure already carries its own screenshot.
			authErr := models.NewScrapeError(models.ErrCodeAuthenticationFailed, "authentication failed", err).
				WithArtifact(attempt.Artifact)
			return nil, attempt.Artifact, authErr
		}
		return nil, s.capture(ctx, page, runID, round, tracker), asNavigationError(err, "session probe failed")
	}

	log.Debug("navigating to target", "url", req.URL)
	if err := page.Navigate(ctx, req.URL); err != nil {
		return nil, s.capture(ctx, page, runID, round, tracker), asNavigationError(err, "navigation to target URL failed")
	}

	cand, err := s.extractor.Extract(ctx, page)
	if err != nil {
		return nil, s.capture(ctx, page, runID, round, tracker), err
	}

	title, desc := page.Meta(ctx)
	return &models.ScrapeResult{
		URL:           req.URL,
		Title:         title,
		Description:   desc,
		Text:          cand.Text,
		Length:        cand.Length,
		Strategy:      cand.Strategy,
		Authenticated: attempt.Authenticated(),
		Fingerprint:   simhash.Hex(simhash.Fingerprint(cand.Text)),
	}, "", nil
}

// capture saves a best-effort screenshot of a failed round. Capture errors
// are logged and swallowed.
func (s *Scraper) capture(ctx context.Context, page engine.Page, runID string, round int, tracker *roundTracker) string {
	if html, err := page.HTML(ctx); err == nil {
		tracker.observe(runID, round, html)
	}

	path := filepath.Join(s.cfg.ArtifactDir, fmt.Sprintf("scrape_failed_%s_r%d.png", runID, round))
	if err := page.Screenshot(ctx, path); err != nil {
		slog.Debug("failure screenshot not captured", "run", runID, "round", round, "error", err)
		return ""
	}
	slog.Info("saved failure screenshot", "run", runID, "round", round, "path", path)
	return path
}

func (s *Scraper) profileDir(reuse bool) (string, func(), error) {
	if !reuse {
		dir, cleanup, err := session.Temp()
		if err != nil {
			return "", nil, models.NewScrapeError(models.ErrCodeSession, "failed to create temporary browser profile", err)
		}
		return dir, cleanup, nil
	}
	dir, err := s.store.Resolve()
	if err != nil {
		return "", nil, models.NewScrapeError(models.ErrCodeSession, "failed to prepare session directory", err)
	}
	return dir, func() {}, nil
}

func (s *Scraper) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryBaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = s.cfg.RetryMaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// asNavigationError keeps typed errors and labels anything else NAVIGATION_FAILED.
func asNavigationError(err error, msg string) error {
	if models.CodeOf(err) != models.ErrCodeInternal {
		return err
	}
	return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
