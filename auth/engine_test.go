package auth

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine/enginetest"
	"github.com/use-agent/profilescan/models"
)

const (
	loginURL = "https://example.test/login"
	probeURL = "https://example.test/feed/"
)

func testAuthConfig(withCreds bool) config.AuthConfig {
	cfg := config.AuthConfig{
		LoginURL:               loginURL,
		ProbeURL:               probeURL,
		AuthenticatedSelectors: []string{"#global-nav"},
		LoginFormSelectors:     []string{"#username"},
		SecondFactorSelectors:  []string{"#pin"},
		IdentifierField:        "#username",
		SecretField:            "#password",
		SubmitButton:           "#submit",
		CodeField:              "#pin",
		CodeSubmitButton:       "#pin-submit",
		ObserveTimeout:         30 * time.Millisecond,
	}
	if withCreds {
		cfg.Identifier = "me@example.com"
		cfg.Secret = "hunter2"
	}
	return cfg
}

// countingPrompter returns code and counts calls.
type countingPrompter struct {
	code  string
	err   error
	calls atomic.Int32
}

func (p *countingPrompter) RequestCode(context.Context) (string, error) {
	p.calls.Add(1)
	return p.code, p.err
}

// loginPage shows a login form. After credentials are submitted it shows
// afterLogin; after a code is submitted it shows afterCode.
func loginPage(afterLogin, afterCode []string) *enginetest.Page {
	p := enginetest.NewPage()
	p.OnNavigate = func(p *enginetest.Page, url string) {
		if url == loginURL {
			p.HideAll().Show("#username", "#password", "#submit")
		}
	}
	p.OnClick = func(p *enginetest.Page, sel string) {
		switch sel {
		case "#submit":
			p.HideAll().Show(afterLogin...)
		case "#pin-submit":
			p.HideAll().Show(afterCode...)
		}
	}
	return p
}

func TestAuthenticate_SkippedWithoutSessionOrLogin(t *testing.T) {
	e := NewEngine(testAuthConfig(false), t.TempDir(), nil)
	page := enginetest.NewPage().Show("#global-nav")

	a, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Skipped)
	assert.False(t, a.Authenticated())
	assert.Empty(t, page.Navigations)
}

func TestAuthenticate_ReuseDisabledNeverProbes(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := loginPage([]string{"#global-nav"}, nil)

	a, err := e.NewRun(RunOptions{RunID: "r", SessionAvailable: false}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Authenticated())
	require.NotEmpty(t, a.Trace)
	assert.Equal(t, LoginRequired, a.Trace[0].To)
	for _, tr := range a.Trace {
		assert.NotEqual(t, Probing, tr.To)
	}
	assert.Equal(t, []string{loginURL}, page.Navigations)
	assert.Equal(t, "me@example.com", page.Typed["#username"])
}

func TestAuthenticate_SessionReuse(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := enginetest.NewPage()
	page.OnNavigate = func(p *enginetest.Page, url string) { p.Show("#global-nav") }

	a, err := e.NewRun(RunOptions{RunID: "r", SessionAvailable: true}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Authenticated())
	assert.Equal(t, []string{probeURL}, page.Navigations)
	assert.Empty(t, page.Typed, "no credentials typed for a reused session")
}

func TestAuthenticate_DegradedWithoutCredentials(t *testing.T) {
	e := NewEngine(testAuthConfig(false), t.TempDir(), nil)
	page := enginetest.NewPage()
	page.OnNavigate = func(p *enginetest.Page, url string) { p.Show("#username") }

	a, err := e.NewRun(RunOptions{RunID: "r", SessionAvailable: true}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Degraded)
	assert.Equal(t, LoginRequired, a.State)
}

func TestAuthenticate_ExpiredSessionFallsBackToLogin(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := loginPage([]string{"#global-nav"}, nil)

	a, err := e.NewRun(RunOptions{RunID: "r", SessionAvailable: true}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Authenticated())
	assert.Equal(t, []string{probeURL, loginURL}, page.Navigations)
	assert.Equal(t, Probing, a.Trace[0].To)
	assert.Equal(t, LoginRequired, a.Trace[1].To)
}

func TestAuthenticate_SecondFactorAccepted(t *testing.T) {
	prompter := &countingPrompter{code: " 123456 "}
	e := NewEngine(testAuthConfig(true), t.TempDir(), prompter)
	page := loginPage([]string{"#pin", "#pin-submit"}, []string{"#global-nav"})

	run := e.NewRun(RunOptions{RunID: "r"})
	a, err := run.Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Authenticated())
	assert.Equal(t, int32(1), prompter.calls.Load())
	assert.Equal(t, 1, a.PromptsIssued)
	assert.Equal(t, 1, run.PromptsIssued())
	assert.Equal(t, "123456", page.Typed["#pin"])
	assert.Equal(t, []string{"#submit", "#pin-submit"}, page.Clicks)
}

func TestAuthenticate_SecondFactorRejectedPromptsOnce(t *testing.T) {
	dir := t.TempDir()
	prompter := &countingPrompter{code: "000000"}
	e := NewEngine(testAuthConfig(true), dir, prompter)
	run := e.NewRun(RunOptions{RunID: "run1"})
	newPage := func() *enginetest.Page {
		return loginPage([]string{"#pin", "#pin-submit"}, []string{"#pin", "#pin-submit"})
	}

	a, err := run.Authenticate(context.Background(), newPage())

	require.Error(t, err)
	assert.Equal(t, LoginFailed, a.State)
	assert.ErrorIs(t, err, models.ErrLoginFailed)
	assert.ErrorIs(t, err, models.ErrSecondFactorRejected)
	assert.Equal(t, filepath.Join(dir, "login_failed_run1_1.png"), a.Artifact)
	assert.Equal(t, a.Artifact, models.ArtifactOf(err))
	assert.FileExists(t, a.Artifact)

	// A later round in the same run must not prompt again.
	a, err = run.Authenticate(context.Background(), newPage())

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSecondFactorRejected)
	assert.Equal(t, int32(1), prompter.calls.Load())
	assert.Equal(t, 1, a.PromptsIssued)
	assert.Equal(t, filepath.Join(dir, "login_failed_run1_2.png"), a.Artifact)
}

func TestAuthenticate_CredentialsRejected(t *testing.T) {
	prompter := &countingPrompter{code: "1"}
	e := NewEngine(testAuthConfig(true), t.TempDir(), prompter)
	page := loginPage([]string{"#username", "#password", "#submit"}, nil)

	a, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	require.Error(t, err)
	assert.Equal(t, LoginFailed, a.State)
	assert.ErrorIs(t, err, models.ErrCredentialsRejected)
	assert.Equal(t, models.ErrCodeLoginFailed, models.CodeOf(err))
	assert.Zero(t, prompter.calls.Load())
}

func TestAuthenticate_UnrecognizedAfterSubmitIsRejection(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := loginPage(nil, nil)

	_, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	assert.ErrorIs(t, err, models.ErrCredentialsRejected)
}

func TestAuthenticate_LoginRequestedWithoutCredentials(t *testing.T) {
	e := NewEngine(testAuthConfig(false), t.TempDir(), nil)
	page := enginetest.NewPage()

	a, err := e.NewRun(RunOptions{RunID: "r", LoginRequested: true}).Authenticate(context.Background(), page)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrLoginFailed)
	assert.Equal(t, models.ErrCodeCredentialsMissing, models.CodeOf(a.Reason))
	assert.Empty(t, page.Navigations)
	assert.Empty(t, page.Screenshots)
}

func TestAuthenticate_PrompterErrorRejectsSecondFactor(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), RejectPrompter{})
	page := loginPage([]string{"#pin", "#pin-submit"}, []string{"#global-nav"})

	_, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	assert.ErrorIs(t, err, models.ErrSecondFactorRejected)
	assert.ErrorIs(t, err, ErrPromptUnavailable)
}

func TestAuthenticate_EnterFallbackWithoutSubmitButton(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := enginetest.NewPage()
	page.OnNavigate = func(p *enginetest.Page, url string) { p.Show("#username", "#password") }
	page.OnEnter = func(p *enginetest.Page, sel string) {
		if sel == "#password" {
			p.HideAll().Show("#global-nav")
		}
	}

	a, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	require.NoError(t, err)
	assert.True(t, a.Authenticated())
}

func TestAuthenticate_NavigationErrorIsReturned(t *testing.T) {
	e := NewEngine(testAuthConfig(true), t.TempDir(), nil)
	page := enginetest.NewPage()
	page.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	_, err := e.NewRun(RunOptions{RunID: "r", SessionAvailable: true}).Authenticate(context.Background(), page)

	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrLoginFailed)
}

func TestTerminalPrompter(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: strings.NewReader("  654321\n"), Out: &out}

	code, err := p.RequestCode(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "654321", code)
	assert.Contains(t, out.String(), "Enter the code")
}

func TestTerminalPrompter_EOFWithoutInput(t *testing.T) {
	p := &TerminalPrompter{In: strings.NewReader(""), Out: &bytes.Buffer{}}

	_, err := p.RequestCode(context.Background())

	assert.Error(t, err)
}

func TestArtifactNotRequiredForFailure(t *testing.T) {
	// An unwritable artifact dir must not mask the login failure.
	e := NewEngine(testAuthConfig(true), filepath.Join(t.TempDir(), "missing", "dir"), nil)
	page := loginPage([]string{"#username", "#password", "#submit"}, nil)

	a, err := e.NewRun(RunOptions{RunID: "r"}).Authenticate(context.Background(), page)

	assert.ErrorIs(t, err, models.ErrCredentialsRejected)
	assert.Empty(t, a.Artifact)
	assert.Empty(t, models.ArtifactOf(err))
}
