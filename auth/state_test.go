package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/profilescan/models"
)

func TestNext_Table(t *testing.T) {
	tests := []struct {
		from State
		obs  Observation
		to   State
		code string
	}{
		{NoSession, ObservedSession, Probing, ""},
		{NoSession, ObservedNoSession, LoginRequired, ""},
		{Probing, ObservedAuthenticated, Authenticated, ""},
		{Probing, ObservedLoginForm, LoginRequired, ""},
		{Probing, ObservedSecondFactor, LoginRequired, ""},
		{Probing, ObservedUnrecognized, LoginRequired, ""},
		{LoginRequired, ObservedAuthenticated, Authenticated, ""},
		{LoginRequired, ObservedSubmitted, CredentialsSubmitted, ""},
		{CredentialsSubmitted, ObservedAuthenticated, Authenticated, ""},
		{CredentialsSubmitted, ObservedSecondFactor, SecondFactorPending, ""},
		{CredentialsSubmitted, ObservedLoginForm, LoginFailed, models.ErrCodeCredentialsRejected},
		{CredentialsSubmitted, ObservedUnrecognized, LoginFailed, models.ErrCodeCredentialsRejected},
		{SecondFactorPending, ObservedSubmitted, CodeSubmitted, ""},
		{CodeSubmitted, ObservedAuthenticated, Authenticated, ""},
		{CodeSubmitted, ObservedSecondFactor, LoginFailed, models.ErrCodeSecondFactorRejected},
		{CodeSubmitted, ObservedLoginForm, LoginFailed, models.ErrCodeSecondFactorRejected},
		{CodeSubmitted, ObservedUnrecognized, LoginFailed, models.ErrCodeSecondFactorRejected},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.obs.String(), func(t *testing.T) {
			got := Next(tt.from, tt.obs)
			assert.Equal(t, tt.from, got.From)
			assert.Equal(t, tt.to, got.To)
			if tt.code == "" {
				assert.NoError(t, got.Reason)
			} else {
				assert.Equal(t, tt.code, models.CodeOf(got.Reason))
			}
		})
	}
}

func TestNext_InvalidTransitionFails(t *testing.T) {
	for _, c := range []struct {
		from State
		obs  Observation
	}{
		{NoSession, ObservedAuthenticated},
		{Probing, ObservedSubmitted},
		{LoginRequired, ObservedSecondFactor},
		{SecondFactorPending, ObservedAuthenticated},
		{CredentialsSubmitted, ObservedSubmitted},
	} {
		got := Next(c.from, c.obs)
		assert.Equal(t, LoginFailed, got.To, "%s on %s", c.from, c.obs)
		assert.Error(t, got.Reason)
	}
}

func TestNext_TerminalStatesAreStable(t *testing.T) {
	for _, s := range []State{Authenticated, LoginFailed} {
		for o := ObservedNoSession; o <= ObservedSubmitted; o++ {
			got := Next(s, o)
			assert.Equal(t, s, got.To)
			assert.NoError(t, got.Reason)
		}
	}
}

func TestNext_IsPure(t *testing.T) {
	a := Next(CredentialsSubmitted, ObservedSecondFactor)
	b := Next(CredentialsSubmitted, ObservedSecondFactor)
	assert.Equal(t, a, b)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SecondFactorPending", SecondFactorPending.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "Submitted", ObservedSubmitted.String())
}
