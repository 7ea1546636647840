// Package enginetest provides scripted in-memory browsers for tests.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/use-agent/profilescan/engine"
)

// Page is a scripted engine.Page. Selectors are "present" when listed in the
// page's selector set; hooks let a test change the page in response to input.
type Page struct {
	mu sync.Mutex

	present map[string]bool
	texts   map[string]string

	HTMLDoc     string
	Title       string
	Description string
	Location    string

	// NavigateErr, when set, is returned by every Navigate call.
	NavigateErr error

	// OnNavigate runs after a successful Navigate.
	OnNavigate func(p *Page, url string)
	// OnClick runs after Click on a present selector.
	OnClick func(p *Page, selector string)
	// OnEnter runs after PressEnter on a present selector.
	OnEnter func(p *Page, selector string)

	Navigations []string
	Typed       map[string]string
	Clicks      []string
	Screenshots []string
	Closed      bool
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		present: make(map[string]bool),
		texts:   make(map[string]string),
		Typed:   make(map[string]string),
	}
}

// Show marks selectors as present.
func (p *Page) Show(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.present[s] = true
	}
	return p
}

// Hide marks selectors as absent.
func (p *Page) Hide(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		delete(p.present, s)
	}
	return p
}

// HideAll clears every present selector.
func (p *Page) HideAll() *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present = make(map[string]bool)
	return p
}

// SetText marks selector present with the given rendered text.
func (p *Page) SetText(selector, text string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
	p.texts[selector] = text
	return p
}

func (p *Page) has(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	err := p.NavigateErr
	hook := p.OnNavigate
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.has(selector), nil
}

func (p *Page) Text(ctx context.Context, selector string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present[selector] {
		return "", fmt.Errorf("%w: %s", engine.ErrElementNotFound, selector)
	}
	return p.texts[selector], nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTMLDoc, nil
}

func (p *Page) Meta(context.Context) (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Title, p.Description
}

func (p *Page) URL(context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Location
}

func (p *Page) Type(_ context.Context, selector, value string, _ time.Duration) error {
	if !p.has(selector) {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	p.Typed[selector] = value
	p.mu.Unlock()
	return nil
}

func (p *Page) Click(_ context.Context, selector string, _ time.Duration) error {
	if !p.has(selector) {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	p.Clicks = append(p.Clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *Page) PressEnter(_ context.Context, selector string) error {
	if !p.has(selector) {
		return fmt.Errorf("%w: %s", engine.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	hook := p.OnEnter
	p.mu.Unlock()
	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *Page) Screenshot(_ context.Context, path string) error {
	p.mu.Lock()
	p.Screenshots = append(p.Screenshots, path)
	p.mu.Unlock()
	return os.WriteFile(path, []byte("\x89PNG"), 0o600)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Browser hands out pages from a factory and counts Close calls.
type Browser struct {
	mu      sync.Mutex
	factory func() *Page
	Pages   []*Page
	PageErr error
	Closes  int
}

func (b *Browser) NewPage(context.Context) (engine.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PageErr != nil {
		return nil, b.PageErr
	}
	p := b.factory()
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closes++
	return nil
}

// Launcher is a scripted engine.Launcher.
type Launcher struct {
	mu sync.Mutex

	// NewPage builds the page for each NewPage call across all launches.
	NewPage func() *Page

	LaunchErr error
	PageErr   error

	Launches []engine.LaunchOptions
	Browsers []*Browser
}

// NewLauncher returns a launcher whose pages come from factory.
func NewLauncher(factory func() *Page) *Launcher {
	return &Launcher{NewPage: factory}
}

func (l *Launcher) Launch(ctx context.Context, opts engine.LaunchOptions) (engine.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Launches = append(l.Launches, opts)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &Browser{factory: l.NewPage, PageErr: l.PageErr}
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// AllPages returns every page handed out, in order.
func (l *Launcher) AllPages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Page
	for _, b := range l.Browsers {
		b.mu.Lock()
		out = append(out, b.Pages...)
		b.mu.Unlock()
	}
	return out
}

// BrowserCloses sums Close calls across every launched browser.
func (l *Launcher) BrowserCloses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, b := range l.Browsers {
		b.mu.Lock()
		n += b.Closes
		b.mu.Unlock()
	}
	return n
}
