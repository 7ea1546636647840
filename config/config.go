package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
)

// AppDirName is the per-user directory holding the session profile and config file.
const AppDirName = ".profilescan"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Browser   BrowserConfig   `toml:"browser"`
	Scraper   ScraperConfig   `toml:"scraper"`
	Session   SessionConfig   `toml:"session"`
	Auth      AuthConfig      `toml:"auth"`
	Extractor ExtractorConfig `toml:"extractor"`
	LLM       LLMConfig       `toml:"llm"`
	API       APIConfig       `toml:"api"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Cache     CacheConfig     `toml:"cache"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `toml:"host"` // default: "127.0.0.1"
	Port int    `toml:"port"` // default: 8080
	Mode string `toml:"mode"` // "debug", "release", "test"; default: "release"

	// Interactive lets the server prompt its own terminal for second-factor codes.
	Interactive bool `toml:"interactive"` // default: false

	// WebhookSecret signs webhook payloads. Empty sends them unsigned.
	WebhookSecret string `toml:"webhook_secret"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `toml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `toml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `toml:"browser_bin"`

	// Proxy is the proxy URL for all browser traffic.
	Proxy string `toml:"proxy"`

	// UserAgent overrides the desktop user agent.
	UserAgent string `toml:"user_agent"`

	// Stealth injects the fingerprint-reduction script into every page.
	Stealth bool `toml:"stealth"` // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `toml:"blocked_resource_types"`
}

// ScraperConfig controls the retrying orchestrator.
type ScraperConfig struct {
	// NavigationTimeout bounds a single page.Navigate.
	NavigationTimeout time.Duration `toml:"navigation_timeout"` // default: 30s

	// SettleWait is the post-navigation DOM-stability wait.
	SettleWait time.Duration `toml:"settle_wait"` // default: 2s

	// RetryBaseDelay is the first inter-round backoff.
	RetryBaseDelay time.Duration `toml:"retry_base_delay"` // default: 2s

	// RetryMaxDelay caps the inter-round backoff.
	RetryMaxDelay time.Duration `toml:"retry_max_delay"` // default: 30s

	// ArtifactDir receives diagnostic screenshots.
	ArtifactDir string `toml:"artifact_dir"` // default: "."

	// AllowAnyHost disables the LinkedIn profile URL check.
	AllowAnyHost bool `toml:"allow_any_host"` // default: false
}

// SessionConfig controls the persisted browser profile.
type SessionConfig struct {
	// Dir is the persistent browser profile directory.
	Dir string `toml:"dir"` // default: ~/.profilescan/browser-profile
}

// AuthConfig controls the login state machine.
type AuthConfig struct {
	Identifier string `toml:"identifier"`
	Secret     string `toml:"secret"`

	LoginURL string `toml:"login_url"` // default: https://www.linkedin.com/login
	ProbeURL string `toml:"probe_url"` // default: https://www.linkedin.com/feed/

	// Marker selectors used to classify the current page.
	AuthenticatedSelectors []string `toml:"authenticated_selectors"`
	LoginFormSelectors     []string `toml:"login_form_selectors"`
	SecondFactorSelectors  []string `toml:"second_factor_selectors"`

	// Form field selectors.
	IdentifierField  string `toml:"identifier_field"`
	SecretField      string `toml:"secret_field"`
	SubmitButton     string `toml:"submit_button"`
	CodeField        string `toml:"code_field"`
	CodeSubmitButton string `toml:"code_submit_button"`

	// ObserveTimeout bounds each wait for a page marker.
	ObserveTimeout time.Duration `toml:"observe_timeout"` // default: 15s
}

// ExtractorConfig controls the extraction fallback chain.
type ExtractorConfig struct {
	MainSelector string        `toml:"main_selector"`
	BodySelector string        `toml:"body_selector"` // default: "body"
	Wait         time.Duration `toml:"wait"`          // default: 10s
	MinLength    int           `toml:"min_length"`    // default: 50
	MaxLength    int           `toml:"max_length"`    // default: 8000
}

// LLMConfig controls the analysis gateway.
type LLMConfig struct {
	// Provider is "openai" or "gemini".
	Provider string `toml:"provider"` // default: "openai"

	Model         string        `toml:"model"`          // default: "gpt-5"
	FallbackModel string        `toml:"fallback_model"` // default: "gpt-4o"
	APIKey        string        `toml:"api_key"`
	BaseURL       string        `toml:"base_url"`    // empty: the provider's public endpoint
	Timeout       time.Duration `toml:"timeout"`     // default: 120s
	MaxElapsed    time.Duration `toml:"max_elapsed"` // default: 2m
}

// APIConfig controls API key authentication for the HTTP server.
type APIConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `toml:"enabled"` // default: true

	// Keys is the list of valid API keys.
	Keys []string `toml:"keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `toml:"requests_per_second"` // default: 0.2

	// Burst is the maximum burst size per API key.
	Burst int `toml:"burst"` // default: 2
}

// CacheConfig controls the report cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached reports.
	MaxEntries int `toml:"max_entries"` // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`  // default: "info"
	Format string `toml:"format"` // "json" or "text"; default: "text"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Mode: "release",
		},
		Browser: BrowserConfig{
			Headless:             true,
			Stealth:              true,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
		},
		Scraper: ScraperConfig{
			NavigationTimeout: 30 * time.Second,
			SettleWait:        2 * time.Second,
			RetryBaseDelay:    2 * time.Second,
			RetryMaxDelay:     30 * time.Second,
			ArtifactDir:       ".",
		},
		Session: SessionConfig{
			Dir: DefaultSessionDir(),
		},
		Auth: AuthConfig{
			LoginURL: "https://www.linkedin.com/login",
			ProbeURL: "https://www.linkedin.com/feed/",
			AuthenticatedSelectors: []string{
				"#global-nav",
				"nav.global-nav",
				"img.global-nav__me-photo",
			},
			LoginFormSelectors: []string{
				"input#username",
				"input[name='session_key']",
				"form.login__form",
			},
			SecondFactorSelectors: []string{
				"input#input__email_verification_pin",
				"input#input__phone_verification_pin",
				"input[name='pin']",
			},
			IdentifierField:  "input#username",
			SecretField:      "input#password",
			SubmitButton:     "button[type='submit']",
			CodeField:        "input[name='pin']",
			CodeSubmitButton: "#two-step-submit-button, button[type='submit']",
			ObserveTimeout:   15 * time.Second,
		},
		Extractor: ExtractorConfig{
			MainSelector: "main, [role='main'], .scaffold-layout__main",
			BodySelector: "body",
			Wait:         10 * time.Second,
			MinLength:    50,
			MaxLength:    8000,
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-5",
			FallbackModel: "gpt-4o",
			Timeout:       120 * time.Second,
			MaxElapsed:    2 * time.Minute,
		},
		API: APIConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0.2,
			Burst:             2,
		},
		Cache: CacheConfig{
			MaxEntries: 500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the TOML file, then
// environment variables. An empty path falls back to PROFILESCAN_CONFIG and
// then to ~/.profilescan/config.toml; a missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("PROFILESCAN_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigPath()
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variables on top of cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("PROFILESCAN_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("PROFILESCAN_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("PROFILESCAN_MODE", cfg.Server.Mode)
	cfg.Server.Interactive = envBoolOr("PROFILESCAN_SERVER_INTERACTIVE", cfg.Server.Interactive)
	cfg.Server.WebhookSecret = envOr("PROFILESCAN_WEBHOOK_SECRET", cfg.Server.WebhookSecret)

	cfg.Browser.Headless = envBoolOr("PROFILESCAN_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.NoSandbox = envBoolOr("PROFILESCAN_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("PROFILESCAN_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.Proxy = envOr("PROFILESCAN_PROXY", cfg.Browser.Proxy)
	cfg.Browser.UserAgent = envOr("PROFILESCAN_USER_AGENT", cfg.Browser.UserAgent)
	cfg.Browser.Stealth = envBoolOr("PROFILESCAN_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.BlockedResourceTypes = envSliceOr("PROFILESCAN_BLOCKED_RESOURCES", cfg.Browser.BlockedResourceTypes)

	cfg.Scraper.NavigationTimeout = envDurationOr("PROFILESCAN_NAV_TIMEOUT", cfg.Scraper.NavigationTimeout)
	cfg.Scraper.SettleWait = envDurationOr("PROFILESCAN_SETTLE_WAIT", cfg.Scraper.SettleWait)
	cfg.Scraper.RetryBaseDelay = envDurationOr("PROFILESCAN_RETRY_BASE_DELAY", cfg.Scraper.RetryBaseDelay)
	cfg.Scraper.RetryMaxDelay = envDurationOr("PROFILESCAN_RETRY_MAX_DELAY", cfg.Scraper.RetryMaxDelay)
	cfg.Scraper.ArtifactDir = envOr("PROFILESCAN_ARTIFACT_DIR", cfg.Scraper.ArtifactDir)
	cfg.Scraper.AllowAnyHost = envBoolOr("PROFILESCAN_ALLOW_ANY_HOST", cfg.Scraper.AllowAnyHost)

	cfg.Session.Dir = envOr("PROFILESCAN_SESSION_DIR", cfg.Session.Dir)

	cfg.Auth.Identifier = envOr("PROFILESCAN_LOGIN_ID", cfg.Auth.Identifier)
	cfg.Auth.Secret = envOr("PROFILESCAN_LOGIN_SECRET", cfg.Auth.Secret)
	cfg.Auth.LoginURL = envOr("PROFILESCAN_LOGIN_URL", cfg.Auth.LoginURL)
	cfg.Auth.ProbeURL = envOr("PROFILESCAN_PROBE_URL", cfg.Auth.ProbeURL)
	cfg.Auth.ObserveTimeout = envDurationOr("PROFILESCAN_OBSERVE_TIMEOUT", cfg.Auth.ObserveTimeout)

	cfg.Extractor.Wait = envDurationOr("PROFILESCAN_EXTRACT_WAIT", cfg.Extractor.Wait)
	cfg.Extractor.MinLength = envIntOr("PROFILESCAN_MIN_TEXT", cfg.Extractor.MinLength)
	cfg.Extractor.MaxLength = envIntOr("PROFILESCAN_MAX_TEXT", cfg.Extractor.MaxLength)

	cfg.LLM.Provider = envOr("PROFILESCAN_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = envOr("PROFILESCAN_MODEL", cfg.LLM.Model)
	cfg.LLM.FallbackModel = envOr("PROFILESCAN_FALLBACK_MODEL", cfg.LLM.FallbackModel)
	cfg.LLM.BaseURL = envOr("PROFILESCAN_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Timeout = envDurationOr("PROFILESCAN_LLM_TIMEOUT", cfg.LLM.Timeout)
	switch cfg.LLM.Provider {
	case "gemini":
		cfg.LLM.APIKey = envOr("GEMINI_API_KEY", cfg.LLM.APIKey)
	default:
		cfg.LLM.APIKey = envOr("OPENAI_API_KEY", cfg.LLM.APIKey)
	}

	cfg.API.Enabled = envBoolOr("PROFILESCAN_AUTH_ENABLED", cfg.API.Enabled)
	cfg.API.Keys = envSliceOr("PROFILESCAN_API_KEYS", cfg.API.Keys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("PROFILESCAN_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("PROFILESCAN_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Cache.MaxEntries = envIntOr("PROFILESCAN_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)

	cfg.Log.Level = envOr("PROFILESCAN_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("PROFILESCAN_LOG_FORMAT", cfg.Log.Format)
}

// UseProvider switches the LLM provider and resets provider-specific defaults
// that were not explicitly configured.
func (c *Config) UseProvider(name string) {
	if name == "" || name == c.LLM.Provider {
		return
	}
	c.LLM.Provider = name
	if name == "gemini" {
		if c.LLM.Model == "gpt-5" {
			c.LLM.Model = "gemini-2.5-pro"
		}
		if c.LLM.FallbackModel == "gpt-4o" {
			c.LLM.FallbackModel = "gemini-2.5-flash"
		}
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}
}

// DefaultSessionDir returns ~/.profilescan/browser-profile.
func DefaultSessionDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(AppDirName, "browser-profile")
	}
	return filepath.Join(home, AppDirName, "browser-profile")
}

// DefaultConfigPath returns ~/.profilescan/config.toml, or "" when the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, AppDirName, "config.toml")
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
