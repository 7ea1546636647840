package models

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultMaxRetries is the retry bound used when a request leaves it unset.
const DefaultMaxRetries = 2

// ScrapeRequest is the input to the scrape orchestrator.
type ScrapeRequest struct {
	// URL is the target profile page. Required.
	URL string `json:"url"`

	// AllowSessionReuse lets the orchestrator reuse the persisted browser
	// profile. When false a throwaway profile is used for this request.
	AllowSessionReuse bool `json:"allow_session_reuse"`

	// Login requests an explicit login when no usable session exists.
	Login bool `json:"login"`

	// MaxRetries bounds the number of extra rounds after the first.
	// Negative means "use the default".
	MaxRetries int `json:"max_retries"`

	// Visible renders the browser window instead of running headless.
	Visible bool `json:"visible"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.MaxRetries < 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	r.URL = strings.TrimSpace(r.URL)
}

// Rounds returns the total number of rounds the request allows.
func (r *ScrapeRequest) Rounds() int {
	return r.MaxRetries + 1
}

// Credentials are the identifier and secret used for a login attempt.
// They are held in memory only and never persisted.
type Credentials struct {
	Identifier string
	Secret     string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Identifier != "" && c.Secret != ""
}

// String redacts the secret.
func (c Credentials) String() string {
	if c.Secret == "" {
		return c.Identifier
	}
	return c.Identifier + ":<redacted>"
}

// ValidateProfileURL checks that rawURL is a LinkedIn profile URL.
// With allowAnyHost set, any absolute http(s) URL is accepted.
func ValidateProfileURL(rawURL string, allowAnyHost bool) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return NewScrapeError(ErrCodeInvalidInput, "malformed URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return NewScrapeError(ErrCodeInvalidInput, "URL has no host", nil)
	}
	if allowAnyHost {
		return nil
	}
	if !strings.Contains(strings.ToLower(u.Hostname()), "linkedin.com") || !strings.Contains(u.Path, "/in/") {
		return NewScrapeError(ErrCodeInvalidInput,
			"please provide a LinkedIn profile URL (e.g. https://www.linkedin.com/in/username)", nil)
	}
	return nil
}
