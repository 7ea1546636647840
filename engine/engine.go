package engine

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned when a bounded wait for an element expires.
var ErrElementNotFound = errors.New("engine: element not found")

// Launcher opens a browser bound to a profile directory.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// LaunchOptions describes one browser launch.
type LaunchOptions struct {
	// ProfileDir is the user-data directory the browser persists its state to.
	ProfileDir string

	// Visible renders the browser window.
	Visible bool
}

// Browser is an open browser process. Close must be called on every exit path.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the DOM capability set used by authentication and extraction.
// Methods taking a timeout wait at most that long for the selector to appear.
type Page interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Has reports whether selector currently matches, without waiting.
	Has(ctx context.Context, selector string) (bool, error)

	// Text returns the rendered text of the first element matching selector.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// Meta returns the document title and meta description, best-effort.
	Meta(ctx context.Context) (title, description string)

	// URL returns the current location, or "" if unknown.
	URL(ctx context.Context) string

	Type(ctx context.Context, selector, value string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	PressEnter(ctx context.Context, selector string) error

	// Screenshot writes a PNG capture to path.
	Screenshot(ctx context.Context, path string) error

	Close() error
}
