package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine"
	"github.com/use-agent/profilescan/models"
)

// clickTimeout bounds a click on an element already known to be present.
const clickTimeout = 5 * time.Second

// Engine holds the login configuration shared by every run.
type Engine struct {
	cfg         config.AuthConfig
	creds       models.Credentials
	prompter    CodePrompter
	artifactDir string
}

// NewEngine creates an Engine. Credentials come from cfg and stay in memory.
func NewEngine(cfg config.AuthConfig, artifactDir string, prompter CodePrompter) *Engine {
	if prompter == nil {
		prompter = RejectPrompter{}
	}
	return &Engine{
		cfg:         cfg,
		creds:       models.Credentials{Identifier: cfg.Identifier, Secret: cfg.Secret},
		prompter:    prompter,
		artifactDir: artifactDir,
	}
}

// HasCredentials reports whether a login can be attempted.
func (e *Engine) HasCredentials() bool {
	return e.creds.Valid()
}

// RunOptions describes one scrape invocation.
type RunOptions struct {
	// RunID names diagnostic artifacts.
	RunID string

	// SessionAvailable is true when persisted session storage exists and
	// the invocation allows reusing it.
	SessionAvailable bool

	// LoginRequested asks for an authenticated session; a reused session
	// that probes as authenticated satisfies it.
	LoginRequested bool
}

// Run is the authentication state of one invocation across its rounds.
// It carries the second-factor budget: at most one prompt per Run.
type Run struct {
	e        *Engine
	opts     RunOptions
	prompts  int
	attempts int
}

// NewRun starts a run.
func (e *Engine) NewRun(opts RunOptions) *Run {
	return &Run{e: e, opts: opts}
}

// PromptsIssued returns how many second-factor prompts this run has issued.
func (r *Run) PromptsIssued() int {
	return r.prompts
}

// Attempt is the outcome of one Authenticate call.
type Attempt struct {
	State         State
	PromptsIssued int
	Reason        error
	Artifact      string

	// Skipped means no session, no credentials and no login request, so
	// nothing was navigated.
	Skipped bool

	// Degraded means the session probe failed and no credentials are
	// configured; the round proceeds with public content.
	Degraded bool

	Trace []Transition
}

// Authenticated reports whether the attempt ended signed in.
func (a *Attempt) Authenticated() bool {
	return a.State == Authenticated
}

func (a *Attempt) step(obs Observation) {
	t := Next(a.State, obs)
	a.Trace = append(a.Trace, t)
	slog.Debug("auth transition", "from", t.From, "observed", t.Observation, "to", t.To)
	a.State = t.To
	if t.Reason != nil {
		a.Reason = t.Reason
	}
}

func (a *Attempt) fail(reason error) {
	a.Trace = append(a.Trace, Transition{From: a.State, Observation: ObservedUnrecognized, To: LoginFailed, Reason: reason})
	a.State = LoginFailed
	a.Reason = reason
}

// marker pairs a selector group with the observation it signals.
type marker struct {
	selectors []string
	obs       Observation
}

// Authenticate runs the probe/login/second-factor sequence on page.
//
// A nil error means the round may proceed: the attempt is Authenticated,
// Skipped or Degraded. A LoginFailed attempt returns a LOGIN_FAILED error
// wrapping the reason, with the screenshot path attached. Navigation and
// cancellation errors are returned as-is.
func (r *Run) Authenticate(ctx context.Context, page engine.Page) (*Attempt, error) {
	r.attempts++
	a := &Attempt{State: NoSession, PromptsIssued: r.prompts}
	log := slog.With("run", r.opts.RunID, "attempt", r.attempts)

	hasCreds := r.e.HasCredentials()
	if !r.opts.SessionAvailable && !r.opts.LoginRequested && !hasCreds {
		a.Skipped = true
		log.Debug("authentication skipped: no session and no login configured")
		return a, nil
	}
	if r.opts.LoginRequested && !hasCreds {
		a.fail(CredentialsMissing())
		return a, r.failure(ctx, page, a, false)
	}

	if r.opts.SessionAvailable {
		a.step(ObservedSession)
	} else {
		a.step(ObservedNoSession)
	}

	if a.State == Probing {
		log.Info("probing existing session", "url", r.e.cfg.ProbeURL)
		if err := page.Navigate(ctx, r.e.cfg.ProbeURL); err != nil {
			return a, err
		}
		obs, err := r.observe(ctx, page, r.probeMarkers(), nil)
		if err != nil {
			return a, err
		}
		a.step(obs)
		if a.State == LoginRequired && !hasCreds {
			a.Degraded = true
			log.Warn("session is not authenticated and no credentials are configured; continuing with public content")
			return a, nil
		}
	}

	if a.State == LoginRequired {
		if err := r.login(ctx, page, a); err != nil {
			return a, err
		}
	}

	if a.State == SecondFactorPending {
		if err := r.secondFactor(ctx, page, a); err != nil {
			return a, err
		}
	}

	a.PromptsIssued = r.prompts
	switch a.State {
	case Authenticated:
		log.Info("authenticated; session retained in browser profile")
		return a, nil
	case LoginFailed:
		return a, r.failure(ctx, page, a, true)
	default:
		a.fail(fmt.Errorf("authentication stopped in state %s", a.State))
		return a, r.failure(ctx, page, a, true)
	}
}

func (r *Run) login(ctx context.Context, page engine.Page, a *Attempt) error {
	cfg := r.e.cfg
	slog.Info("logging in", "run", r.opts.RunID, "identifier", r.e.creds.Identifier)

	if err := page.Navigate(ctx, cfg.LoginURL); err != nil {
		return err
	}

	// Already signed in: the login page shows the signed-in chrome.
	obs, err := r.observe(ctx, page, []marker{
		{cfg.AuthenticatedSelectors, ObservedAuthenticated},
		{cfg.LoginFormSelectors, ObservedLoginForm},
	}, nil)
	if err != nil {
		return err
	}
	if obs == ObservedAuthenticated {
		a.step(obs)
		return nil
	}

	if err := page.Type(ctx, cfg.IdentifierField, r.e.creds.Identifier, cfg.ObserveTimeout); err != nil {
		a.fail(fmt.Errorf("identifier field %q: %w", cfg.IdentifierField, err))
		return nil
	}
	if err := page.Type(ctx, cfg.SecretField, r.e.creds.Secret, cfg.ObserveTimeout); err != nil {
		a.fail(fmt.Errorf("secret field %q: %w", cfg.SecretField, err))
		return nil
	}
	if err := submit(ctx, page, cfg.SubmitButton, cfg.SecretField); err != nil {
		a.fail(fmt.Errorf("submit login form: %w", err))
		return nil
	}
	a.step(ObservedSubmitted)

	obs, err = r.observe(ctx, page, []marker{
		{cfg.AuthenticatedSelectors, ObservedAuthenticated},
		{cfg.SecondFactorSelectors, ObservedSecondFactor},
	}, []marker{
		{cfg.LoginFormSelectors, ObservedLoginForm},
	})
	if err != nil {
		return err
	}
	a.step(obs)
	return nil
}

func (r *Run) secondFactor(ctx context.Context, page engine.Page, a *Attempt) error {
	cfg := r.e.cfg
	if r.prompts >= 1 {
		a.fail(secondFactorRejected(errors.New("verification code already requested in this run")))
		return nil
	}

	r.prompts++
	a.PromptsIssued = r.prompts
	slog.Info("second-factor verification required", "run", r.opts.RunID)

	code, err := r.e.prompter.RequestCode(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.fail(secondFactorRejected(err))
		return nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		a.fail(secondFactorRejected(errors.New("empty verification code")))
		return nil
	}

	if err := page.Type(ctx, cfg.CodeField, code, cfg.ObserveTimeout); err != nil {
		a.fail(secondFactorRejected(fmt.Errorf("code field %q: %w", cfg.CodeField, err)))
		return nil
	}
	if err := submit(ctx, page, cfg.CodeSubmitButton, cfg.CodeField); err != nil {
		a.fail(secondFactorRejected(err))
		return nil
	}
	a.step(ObservedSubmitted)

	obs, err := r.observe(ctx, page, []marker{
		{cfg.AuthenticatedSelectors, ObservedAuthenticated},
	}, []marker{
		{cfg.SecondFactorSelectors, ObservedSecondFactor},
		{cfg.LoginFormSelectors, ObservedLoginForm},
	})
	if err != nil {
		return err
	}
	a.step(obs)
	return nil
}

// submit clicks the first present submit button, falling back to Enter in field.
func submit(ctx context.Context, page engine.Page, button, field string) error {
	if button != "" {
		for _, sel := range strings.Split(button, ",") {
			sel = strings.TrimSpace(sel)
			if ok, _ := page.Has(ctx, sel); ok {
				if err := page.Click(ctx, sel, clickTimeout); err == nil {
					return nil
				}
			}
		}
	}
	return page.PressEnter(ctx, field)
}

func (r *Run) probeMarkers() []marker {
	cfg := r.e.cfg
	return []marker{
		{cfg.AuthenticatedSelectors, ObservedAuthenticated},
		{cfg.SecondFactorSelectors, ObservedSecondFactor},
		{cfg.LoginFormSelectors, ObservedLoginForm},
	}
}

// observe waits up to ObserveTimeout for any wanted marker. When none shows,
// the fallback markers are checked once, and otherwise the page is Unrecognized.
// Waiting only on wanted markers keeps a still-visible login form from being
// read as a rejection while the submission is in flight.
func (r *Run) observe(ctx context.Context, page engine.Page, wanted, fallback []marker) (Observation, error) {
	groups := make([][]string, len(wanted))
	for i, m := range wanted {
		groups[i] = m.selectors
	}

	idx, err := engine.WaitAny(ctx, page, groups, r.e.cfg.ObserveTimeout)
	if err != nil {
		return ObservedUnrecognized, err
	}
	if idx >= 0 {
		return wanted[idx].obs, nil
	}

	for _, m := range fallback {
		for _, sel := range m.selectors {
			if ok, _ := page.Has(ctx, sel); ok {
				return m.obs, nil
			}
		}
	}
	return ObservedUnrecognized, nil
}

// failure captures a best-effort screenshot and builds the LOGIN_FAILED error.
func (r *Run) failure(ctx context.Context, page engine.Page, a *Attempt, capture bool) error {
	slog.Warn("login failed", "run", r.opts.RunID, "attempt", r.attempts, "reason", a.Reason)

	if capture && page != nil {
		path := filepath.Join(r.e.artifactDir, fmt.Sprintf("login_failed_%s_%d.png", r.opts.RunID, r.attempts))
		if err := page.Screenshot(ctx, path); err != nil {
			slog.Debug("login failure screenshot not captured", "path", path, "error", err)
		} else {
			a.Artifact = path
			slog.Info("saved login failure screenshot", "path", path)
		}
	}

	return models.NewScrapeError(models.ErrCodeLoginFailed, "login failed", a.Reason).WithArtifact(a.Artifact)
}
