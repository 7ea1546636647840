// Package scan ties profile acquisition and analysis together: scrape the
// page (or clean supplied content), consult the report cache, then ask the
// analysis gateway for a risk report.
package scan

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/profilescan/cache"
	"github.com/use-agent/profilescan/cleaner"
	"github.com/use-agent/profilescan/extractor"
	"github.com/use-agent/profilescan/models"
	"github.com/use-agent/profilescan/simhash"
)

// Cache status values reported on an Outcome.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Scraper obtains profile text through a browser.
type Scraper interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
}

// Analyzer produces a risk report for a profile.
type Analyzer interface {
	Analyze(ctx context.Context, profile *models.Profile, preferredModel string) (*models.Report, error)
}

// Request describes one scan.
type Request struct {
	URL string

	// Text is pre-fetched page content. When set, scraping is skipped.
	// HTML input is cleaned to Markdown first.
	Text string

	// Selector narrows HTML Text before cleaning.
	Selector string

	Model      string
	MaxRetries int // negative means default
	Login      bool
	NoSession  bool
	Visible    bool

	// MaxAge enables the report cache, in milliseconds.
	MaxAge int
}

// Outcome is everything a scan produced. On error it still carries the
// parts that completed, so callers can show the scraped profile when only
// the analysis failed.
type Outcome struct {
	Profile     *models.Profile
	Scrape      *models.ScrapeResult
	Report      *models.Report
	CacheStatus string
	Timing      models.TimingInfo
}

// Service runs scans.
type Service struct {
	scraper   Scraper
	analyzer  Analyzer
	cleaner   *cleaner.Cleaner
	cache     *cache.Cache
	maxLength int
}

// NewService creates a Service. cc may be nil to disable caching.
func NewService(sc Scraper, an Analyzer, cl *cleaner.Cleaner, cc *cache.Cache, maxLength int) *Service {
	return &Service{scraper: sc, analyzer: an, cleaner: cl, cache: cc, maxLength: maxLength}
}

// Run executes req. Acquisition errors are returned as-is (scrape codes);
// analysis errors carry ANALYSIS_* codes.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	totalStart := time.Now()
	out := &Outcome{}
	defer func() {
		out.Timing.TotalMs = time.Since(totalStart).Milliseconds()
	}()

	scrapeStart := time.Now()
	profile, err := s.acquire(ctx, req, out)
	out.Timing.ScrapeMs = time.Since(scrapeStart).Milliseconds()
	if err != nil {
		return out, err
	}
	out.Profile = profile

	useCache := s.cache != nil && req.MaxAge > 0
	key := cache.Key(profile.URL, profile.Text, req.Model)
	if useCache {
		if cached, hit := s.cache.Get(key, req.MaxAge); hit {
			slog.Info("report served from cache",
				"url", profile.URL,
				"model", cached.Model,
				"fingerprint", simhash.Hex(simhash.Fingerprint(profile.Text)),
			)
			out.Report = cached
			out.CacheStatus = CacheHit
			return out, nil
		}
	}

	analysisStart := time.Now()
	report, err := s.analyzer.Analyze(ctx, profile, req.Model)
	out.Timing.AnalysisMs = time.Since(analysisStart).Milliseconds()
	if err != nil {
		return out, err
	}
	out.Report = report

	if useCache {
		s.cache.Set(key, report)
		out.CacheStatus = CacheMiss
	}
	return out, nil
}

func (s *Service) acquire(ctx context.Context, req Request, out *Outcome) (*models.Profile, error) {
	if req.Text != "" {
		return s.FromText(req.URL, req.Text, req.Selector)
	}

	res, err := s.scraper.Scrape(ctx, &models.ScrapeRequest{
		URL:               req.URL,
		AllowSessionReuse: !req.NoSession,
		Login:             req.Login,
		MaxRetries:        req.MaxRetries,
		Visible:           req.Visible,
	})
	if err != nil {
		return nil, err
	}
	out.Scrape = res
	return models.ProfileFromResult(res), nil
}

// FromText builds an analysis input from pre-fetched content.
func (s *Service) FromText(sourceURL, content, selector string) (*models.Profile, error) {
	p := &models.Profile{URL: sourceURL, Source: "file"}

	text := content
	if LooksLikeHTML(content) {
		doc, err := s.cleaner.CleanFile(content, sourceURL, selector)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "failed to clean HTML input", err)
		}
		p.Title = doc.Title
		p.Description = doc.Description
		text = doc.Markdown
	}

	p.Text = extractor.Truncate(extractor.Normalize(text), s.maxLength)
	if p.Text == "" {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "input contains no text", nil)
	}
	return p, nil
}

// LooksLikeHTML reports whether content is an HTML document rather than
// plain text.
func LooksLikeHTML(content string) bool {
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body") ||
		strings.Contains(head, "<head")
}
