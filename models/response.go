package models

// Version is reported by the CLI and the health endpoint.
const Version = "0.1.0"

// ScrapeResult is the successful outcome of the scrape orchestrator.
type ScrapeResult struct {
	// URL is the scraped target.
	URL string `json:"url"`

	// Title and Description are best-effort page metadata.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Text is the normalized, truncated profile text.
	Text string `json:"text"`

	// Length is the rune count of Text.
	Length int `json:"length"`

	// Strategy names the extraction strategy that produced Text.
	Strategy string `json:"strategy"`

	// Rounds is the number of rounds used, including the successful one.
	Rounds int `json:"rounds"`

	// Authenticated is true when the round ran with a logged-in session.
	Authenticated bool `json:"authenticated"`

	// Fingerprint is the hex SimHash of Text.
	Fingerprint string `json:"fingerprint"`
}

// Profile is the input to analysis, either scraped or loaded from a file.
type Profile struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`

	// Source is "browser" or "file".
	Source string `json:"source"`
}

// ProfileFromResult converts a ScrapeResult into an analysis input.
func ProfileFromResult(r *ScrapeResult) *Profile {
	return &Profile{
		URL:         r.URL,
		Title:       r.Title,
		Description: r.Description,
		Text:        r.Text,
		Source:      "browser",
	}
}

// Risk levels reported by the analysis.
const (
	RiskLow     = "Low"
	RiskMedium  = "Medium"
	RiskHigh    = "High"
	RiskUnknown = "Unknown"
)

// Report is the structured risk analysis returned by the analysis gateway.
type Report struct {
	RiskLevel       string   `json:"risk_level"`
	Framework       []string `json:"framework"`
	RedFlags        []string `json:"red_flags"`
	PositiveSignals []string `json:"positive_signals"`
	Concerns        []string `json:"concerns"`
	Conclusion      string   `json:"conclusion"`
	Confidence      string   `json:"confidence"`

	// Model is the model that actually produced the report.
	Model string `json:"model"`

	// FellBack is true when the preferred model was unavailable.
	FellBack bool `json:"fell_back,omitempty"`

	Usage *LLMUsage `json:"usage,omitempty"`
}

// LLMUsage reports token consumption from the LLM call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// URL is the profile to scan. Required.
	URL string `json:"url" binding:"required,url"`

	// Text bypasses scraping when set.
	Text string `json:"text,omitempty"`

	// Model overrides the default model.
	Model string `json:"model,omitempty"`

	// MaxRetries overrides the retry bound. Nil means default.
	MaxRetries *int `json:"max_retries,omitempty" binding:"omitempty,min=0,max=10"`

	// Login requests an explicit login.
	Login bool `json:"login,omitempty"`

	// NoSession disables session reuse and persistence for this scan.
	NoSession bool `json:"no_session,omitempty"`

	// MaxAge enables the report cache: a cached report younger than
	// MaxAge milliseconds for the same URL, identical content and model is
	// returned directly.
	MaxAge int `json:"max_age,omitempty"`

	// WebhookURL receives a scan.completed / scan.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// ScanResponse is the response for POST /api/v1/scan.
type ScanResponse struct {
	Success     bool          `json:"success"`
	Report      *Report       `json:"report,omitempty"`
	Scrape      *ScrapeResult `json:"scrape,omitempty"`
	CacheStatus string        `json:"cache_status,omitempty"`
	Timing      TimingInfo    `json:"timing"`
	Error       *ErrorDetail  `json:"error,omitempty"`
}

// TimingInfo provides duration breakdowns for a scan.
type TimingInfo struct {
	TotalMs    int64 `json:"total_ms"`
	ScrapeMs   int64 `json:"scrape_ms"`
	AnalysisMs int64 `json:"analysis_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	ScanActive    bool   `json:"scan_active"`
	SessionExists bool   `json:"session_exists"`
}
