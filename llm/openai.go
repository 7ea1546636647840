package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/models"
)

// DefaultOpenAIBaseURL is the public OpenAI endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	client     *resty.Client
	maxElapsed time.Duration

	// newBackOff builds the retry policy for one Complete call.
	newBackOff func() backoff.BackOff
}

// NewOpenAIProvider creates a provider from cfg.
func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout)

	p := &OpenAIProvider{client: client, maxElapsed: cfg.MaxElapsed}
	p.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = p.maxElapsed
		b.MaxInterval = 30 * time.Second
		return b
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

// chatRequest is the OpenAI chat completion request body. Temperature is
// omitted: reasoning models reject anything but the default.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends c and returns the first choice. Network errors, 5xx and
// plain rate limiting are retried; everything else fails immediately.
func (p *OpenAIProvider) Complete(ctx context.Context, c Completion) (*CompletionResult, error) {
	body := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.System},
			{Role: "user", Content: c.User},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var result *CompletionResult
	operation := func() error {
		start := time.Now()
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(body).
			Post("/chat/completions")
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request canceled", ctx.Err()))
			}
			slog.Warn("LLM request failed, retrying", "provider", p.Name(), "error", err)
			return models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
		}

		if resp.StatusCode() != http.StatusOK {
			apiErr, retry := classifyLLMError(resp.StatusCode(), resp.Body())
			if retry {
				slog.Warn("LLM API transient error, retrying", "provider", p.Name(), "status", resp.StatusCode())
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		var chatResp chatResponse
		if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
			return backoff.Permanent(models.NewScrapeError(models.ErrCodeLLMFailure, "failed to parse LLM response", err))
		}
		if len(chatResp.Choices) == 0 {
			return backoff.Permanent(models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil))
		}

		model := chatResp.Model
		if model == "" {
			model = c.Model
		}
		slog.Info("LLM generation complete",
			"provider", p.Name(),
			"model", model,
			"duration", time.Since(start),
			"total_tokens", chatResp.Usage.TotalTokens,
		)
		result = &CompletionResult{
			Content: chatResp.Choices[0].Message.Content,
			Model:   model,
			Usage: &models.LLMUsage{
				PromptTokens:     chatResp.Usage.PromptTokens,
				CompletionTokens: chatResp.Usage.CompletionTokens,
				TotalTokens:      chatResp.Usage.TotalTokens,
			},
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(p.newBackOff(), ctx)); err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	return result, nil
}

// classifyLLMError maps an error response to an LLM_* code and reports
// whether the request is worth retrying.
func classifyLLMError(statusCode int, body []byte) (*models.ScrapeError, bool) {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	code := errResp.Error.Code
	lower := strings.ToLower(msg)

	switch {
	case statusCode == http.StatusNotFound,
		code == "model_not_found",
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "model_not_found"):
		return models.NewScrapeError(models.ErrCodeLLMModelUnavailable, msg, nil), false
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, nil), false
	case statusCode == http.StatusTooManyRequests && (code == "insufficient_quota" || errResp.Error.Type == "insufficient_quota"):
		return models.NewScrapeError(models.ErrCodeLLMQuotaExceeded, msg, nil), false
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeLLMRateLimited, msg, nil), true
	case statusCode >= 500:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil), true
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil), false
	}
}
