// Package auth drives a page through probe, login and second-factor steps
// until the browser session is authenticated or the attempt fails.
package auth

import (
	"fmt"

	"github.com/use-agent/profilescan/models"
)

// State is a node of the authentication state machine.
type State int

const (
	NoSession State = iota
	Probing
	LoginRequired
	CredentialsSubmitted
	SecondFactorPending
	CodeSubmitted
	Authenticated
	LoginFailed
)

var stateNames = [...]string{
	NoSession:            "NoSession",
	Probing:              "Probing",
	LoginRequired:        "LoginRequired",
	CredentialsSubmitted: "CredentialsSubmitted",
	SecondFactorPending:  "SecondFactorPending",
	CodeSubmitted:        "CodeSubmitted",
	Authenticated:        "Authenticated",
	LoginFailed:          "LoginFailed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == Authenticated || s == LoginFailed
}

// Observation is what the engine saw (or did) that drives a transition.
type Observation int

const (
	ObservedNoSession Observation = iota
	ObservedSession
	ObservedAuthenticated
	ObservedLoginForm
	ObservedSecondFactor
	ObservedUnrecognized
	ObservedSubmitted
)

var observationNames = [...]string{
	ObservedNoSession:     "NoSession",
	ObservedSession:       "Session",
	ObservedAuthenticated: "Authenticated",
	ObservedLoginForm:     "LoginForm",
	ObservedSecondFactor:  "SecondFactor",
	ObservedUnrecognized:  "Unrecognized",
	ObservedSubmitted:     "Submitted",
}

func (o Observation) String() string {
	if o >= 0 && int(o) < len(observationNames) {
		return observationNames[o]
	}
	return fmt.Sprintf("Observation(%d)", int(o))
}

// isPage reports whether o describes a rendered page rather than storage or an action.
func (o Observation) isPage() bool {
	switch o {
	case ObservedAuthenticated, ObservedLoginForm, ObservedSecondFactor, ObservedUnrecognized:
		return true
	}
	return false
}

// Transition is one edge taken by Next. Reason is set only when To is LoginFailed.
type Transition struct {
	From        State
	Observation Observation
	To          State
	Reason      error
}

func credentialsRejected() error {
	return models.NewScrapeError(models.ErrCodeCredentialsRejected, "credentials were not accepted", nil)
}

// CredentialsMissing is the failure reason for a login request made without
// configured credentials. Retrying cannot change it.
func CredentialsMissing() error {
	return models.NewScrapeError(models.ErrCodeCredentialsMissing,
		"login requested but no credentials are configured (set PROFILESCAN_LOGIN_ID and PROFILESCAN_LOGIN_SECRET)", nil)
}

func secondFactorRejected(cause error) error {
	return models.NewScrapeError(models.ErrCodeSecondFactorRejected, "second-factor code was not accepted", cause)
}

// Next is the transition function. It is pure: the same inputs always give
// the same Transition, and terminal states never change.
func Next(from State, obs Observation) Transition {
	t := Transition{From: from, Observation: obs, To: from}
	if from.Terminal() {
		return t
	}

	switch {
	case from == NoSession && obs == ObservedSession:
		t.To = Probing
	case from == NoSession && obs == ObservedNoSession:
		t.To = LoginRequired

	case from == Probing && obs == ObservedAuthenticated:
		t.To = Authenticated
	case from == Probing && obs.isPage():
		t.To = LoginRequired

	// The login page redirects away when the profile is already signed in.
	case from == LoginRequired && obs == ObservedAuthenticated:
		t.To = Authenticated
	case from == LoginRequired && obs == ObservedSubmitted:
		t.To = CredentialsSubmitted

	case from == CredentialsSubmitted && obs == ObservedAuthenticated:
		t.To = Authenticated
	case from == CredentialsSubmitted && obs == ObservedSecondFactor:
		t.To = SecondFactorPending
	case from == CredentialsSubmitted && (obs == ObservedLoginForm || obs == ObservedUnrecognized):
		t.To, t.Reason = LoginFailed, credentialsRejected()

	case from == SecondFactorPending && obs == ObservedSubmitted:
		t.To = CodeSubmitted

	case from == CodeSubmitted && obs == ObservedAuthenticated:
		t.To = Authenticated
	case from == CodeSubmitted && obs.isPage():
		t.To, t.Reason = LoginFailed, secondFactorRejected(nil)

	default:
		t.To = LoginFailed
		t.Reason = fmt.Errorf("invalid transition: %s on %s", from, obs)
	}
	return t
}
