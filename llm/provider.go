// Package llm sends profile text to a generative-text service and parses the
// structured risk report it returns.
package llm

import (
	"context"

	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/models"
)

// Completion is one system + user prompt pair sent to a model.
type Completion struct {
	Model  string
	System string
	User   string
}

// CompletionResult is the raw model output.
type CompletionResult struct {
	Content string
	Model   string
	Usage   *models.LLMUsage
}

// Provider is an inference backend. Implementations classify failures with
// the LLM_* codes so the gateway can tell model unavailability apart from
// everything else.
type Provider interface {
	Name() string
	Complete(ctx context.Context, c Completion) (*CompletionResult, error)
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, models.NewScrapeError(models.ErrCodeLLMAuthFailure, "OpenAI API key is required (set OPENAI_API_KEY or --api-key)", nil)
		}
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "unknown LLM provider "+cfg.Provider, nil)
	}
}
