// Package extractor pulls profile text out of a rendered page through an
// ordered chain of strategies.
package extractor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/use-agent/profilescan/cleaner"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/engine"
	"github.com/use-agent/profilescan/models"
)

// Strategy is one way of getting text out of a page.
type Strategy interface {
	Name() string

	// TryExtract returns the raw text found, or "" when the strategy's
	// target is absent. ctx carries the strategy's bounded wait.
	TryExtract(ctx context.Context, page engine.Page) (string, error)
}

// Candidate is the winning strategy's output.
type Candidate struct {
	Text     string
	Length   int
	Strategy string
}

// Extractor runs strategies in priority order and keeps the first one whose
// normalized text reaches MinLength.
type Extractor struct {
	strategies []Strategy
	wait       time.Duration
	minLength  int
	maxLength  int
}

// New builds the default chain: main region, body text, document dump.
func New(cfg config.ExtractorConfig) *Extractor {
	return NewWithStrategies(cfg,
		&SelectorStrategy{StrategyName: "main-region", Selector: cfg.MainSelector},
		&SelectorStrategy{StrategyName: "body-text", Selector: cfg.BodySelector},
		&DocumentStrategy{},
	)
}

// NewWithStrategies builds an extractor over an explicit strategy list.
func NewWithStrategies(cfg config.ExtractorConfig, strategies ...Strategy) *Extractor {
	return &Extractor{
		strategies: strategies,
		wait:       cfg.Wait,
		minLength:  cfg.MinLength,
		maxLength:  cfg.MaxLength,
	}
}

// Extract returns the first candidate above threshold, or an
// EXTRACTION_EMPTY error when every strategy comes up short.
func (e *Extractor) Extract(ctx context.Context, page engine.Page) (*Candidate, error) {
	for _, s := range e.strategies {
		raw, err := e.try(ctx, s, page)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "extraction interrupted", ctxErr)
		}
		if err != nil {
			slog.Debug("extraction strategy failed", "strategy", s.Name(), "error", err)
			continue
		}

		text := Normalize(raw)
		n := utf8.RuneCountInString(text)
		if n < e.minLength {
			slog.Debug("extraction strategy below threshold",
				"strategy", s.Name(), "length", n, "min", e.minLength)
			continue
		}

		text = Truncate(text, e.maxLength)
		return &Candidate{
			Text:     text,
			Length:   utf8.RuneCountInString(text),
			Strategy: s.Name(),
		}, nil
	}
	return nil, models.NewScrapeError(models.ErrCodeExtraction, "no strategy produced usable text", nil)
}

func (e *Extractor) try(ctx context.Context, s Strategy, page engine.Page) (string, error) {
	if e.wait <= 0 {
		return s.TryExtract(ctx, page)
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.wait)
	defer cancel()
	return s.TryExtract(waitCtx, page)
}

// SelectorStrategy reads the rendered text of the first element matching Selector.
type SelectorStrategy struct {
	StrategyName string
	Selector     string
}

func (s *SelectorStrategy) Name() string { return s.StrategyName }

func (s *SelectorStrategy) TryExtract(ctx context.Context, page engine.Page) (string, error) {
	if s.Selector == "" {
		return "", nil
	}
	timeout := time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	text, err := page.Text(ctx, s.Selector, timeout)
	if errors.Is(err, engine.ErrElementNotFound) {
		return "", nil
	}
	return text, err
}

// DocumentStrategy dumps the whole document's visible text.
type DocumentStrategy struct{}

func (DocumentStrategy) Name() string { return "document-dump" }

func (DocumentStrategy) TryExtract(ctx context.Context, page engine.Page) (string, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}
	return cleaner.DocumentText(html, page.URL(ctx)), nil
}

// Normalize collapses runs of spaces within lines, trims every line and drops
// blank lines. Normalize is idempotent.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate cuts text to at most max runes. A non-positive max disables it.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max]))
}
