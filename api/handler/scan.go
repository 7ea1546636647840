package handler

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/profilescan/models"
	"github.com/use-agent/profilescan/scan"
	"github.com/use-agent/profilescan/webhook"
)

// Scanner runs one scan.
type Scanner interface {
	Run(ctx context.Context, req scan.Request) (*scan.Outcome, error)
}

// Scans serializes scans: the persisted browser profile supports one
// browser at a time, so a request arriving while a scan runs is refused
// rather than queued.
type Scans struct {
	mu     sync.Mutex
	active atomic.Bool

	scanner       Scanner
	allowAnyHost  bool
	webhookSecret string
}

// NewScans creates the scan endpoint state.
func NewScans(scanner Scanner, allowAnyHost bool, webhookSecret string) *Scans {
	return &Scans{scanner: scanner, allowAnyHost: allowAnyHost, webhookSecret: webhookSecret}
}

// Active reports whether a scan is running.
func (s *Scans) Active() bool {
	return s.active.Load()
}

// Handler returns a handler for POST /api/v1/scan.
//
// Flow:
//  1. Parse & validate request.
//  2. Claim the scan slot (409 when busy).
//  3. Scan: scrape (or clean supplied text) → cache → analysis.
//  4. Respond, then fire the webhook if one was requested.
func (s *Scans) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), nil), nil)
			return
		}
		if err := models.ValidateProfileURL(req.URL, s.allowAnyHost); err != nil {
			respondError(c, err, nil)
			return
		}

		// ── 2. Claim slot ───────────────────────────────────────────
		if !s.mu.TryLock() {
			respondError(c, models.NewScrapeError(models.ErrCodeScanBusy, "another scan is in progress", nil), nil)
			return
		}
		s.active.Store(true)
		defer func() {
			s.active.Store(false)
			s.mu.Unlock()
		}()

		// ── 3. Scan ─────────────────────────────────────────────────
		scanID := uuid.NewString()[:8]
		maxRetries := -1
		if req.MaxRetries != nil {
			maxRetries = *req.MaxRetries
		}
		out, err := s.scanner.Run(c.Request.Context(), scan.Request{
			URL:        req.URL,
			Text:       req.Text,
			Model:      req.Model,
			MaxRetries: maxRetries,
			Login:      req.Login,
			NoSession:  req.NoSession,
			MaxAge:     req.MaxAge,
		})

		// ── 4. Respond + webhook ────────────────────────────────────
		var resp *models.ScanResponse
		if err != nil {
			resp = respondError(c, err, out)
		} else {
			resp = &models.ScanResponse{
				Success:     true,
				Report:      out.Report,
				Scrape:      out.Scrape,
				CacheStatus: out.CacheStatus,
				Timing:      out.Timing,
			}
			c.JSON(http.StatusOK, resp)
		}

		if req.WebhookURL != "" {
			eventType := webhook.EventScanCompleted
			if err != nil {
				eventType = webhook.EventScanFailed
			}
			webhook.DeliverAsync(req.WebhookURL, s.webhookSecret,
				webhook.NewEvent(eventType, scanID, req.URL, resp))
		}
	}
}

// respondError maps err to an HTTP status and writes a structured JSON error
// response. Partial results in out are included.
func respondError(c *gin.Context, err error, out *scan.Outcome) *models.ScanResponse {
	scanErr := models.AsScrapeError(err)
	resp := &models.ScanResponse{
		Success: false,
		Error:   scanErr.ToDetail(),
	}
	if out != nil {
		resp.Scrape = out.Scrape
		resp.Timing = out.Timing
	}
	c.JSON(mapErrorToStatus(scanErr), resp)
	return resp
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeScanBusy:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation,
		models.ErrCodeExtraction,
		models.ErrCodeAuthenticationFailed,
		models.ErrCodeRetriesExhausted,
		models.ErrCodeAnalysisFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeAnalysisUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
