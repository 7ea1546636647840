package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/models"
	"google.golang.org/genai"
)

// GeminiProvider talks to the Gemini API through the genai SDK.
type GeminiProvider struct {
	client     *genai.Client
	maxElapsed time.Duration
}

// NewGeminiProvider creates a Gemini client. An API key is required.
func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, models.NewScrapeError(models.ErrCodeLLMAuthFailure, "Gemini API key is required (set GEMINI_API_KEY)", nil)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "failed to create Gemini client", err)
	}
	return &GeminiProvider{client: client, maxElapsed: cfg.MaxElapsed}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Complete sends c with a JSON response MIME type and returns the text of
// the first candidate. 5xx responses are retried.
func (p *GeminiProvider) Complete(ctx context.Context, c Completion) (*CompletionResult, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = p.maxElapsed
	b.MaxInterval = 30 * time.Second

	var result *CompletionResult
	operation := func() error {
		start := time.Now()
		resp, err := p.client.Models.GenerateContent(ctx, c.Model, genai.Text(c.User), genCfg)
		if err != nil {
			se, retry := classifyGeminiError(err)
			if retry && ctx.Err() == nil {
				slog.Warn("Gemini transient error, retrying", "model", c.Model, "error", err)
				return se
			}
			return backoff.Permanent(se)
		}

		text := resp.Text()
		if text == "" {
			return backoff.Permanent(models.NewScrapeError(models.ErrCodeLLMFailure, "Gemini returned no content", nil))
		}

		model := resp.ModelVersion
		if model == "" {
			model = c.Model
		}
		usage := &models.LLMUsage{}
		if resp.UsageMetadata != nil {
			usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		slog.Info("LLM generation complete",
			"provider", p.Name(),
			"model", model,
			"duration", time.Since(start),
			"total_tokens", usage.TotalTokens,
		)
		result = &CompletionResult{Content: text, Model: model, Usage: usage}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "Gemini request failed", err)
	}
	return result, nil
}

// classifyGeminiError maps SDK errors to LLM_* codes and reports whether a
// retry is worthwhile.
func classifyGeminiError(err error) (*models.ScrapeError, bool) {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, "Gemini request failed", err), true
	}

	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("Gemini API returned %d %s", apiErr.Code, apiErr.Status)
	}
	switch {
	case apiErr.Code == http.StatusNotFound || apiErr.Status == "NOT_FOUND":
		return models.NewScrapeError(models.ErrCodeLLMModelUnavailable, msg, err), false
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
		apiErr.Status == "PERMISSION_DENIED" || apiErr.Status == "UNAUTHENTICATED":
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, err), false
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return models.NewScrapeError(models.ErrCodeLLMQuotaExceeded, msg, err), false
	case apiErr.Code >= 500:
		return models.NewScrapeError(models.ErrCodeLLMFailure, msg, err), true
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, msg, err), false
	}
}
