package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/use-agent/profilescan/cleaner"
	"github.com/use-agent/profilescan/models"
)

// Gateway runs the analysis with a single, narrow fallback: only a
// model-unavailable error from the preferred model triggers one retry with
// the fallback model.
type Gateway struct {
	provider      Provider
	defaultModel  string
	fallbackModel string
}

// NewGateway creates a Gateway over provider.
func NewGateway(provider Provider, defaultModel, fallbackModel string) *Gateway {
	return &Gateway{provider: provider, defaultModel: defaultModel, fallbackModel: fallbackModel}
}

// Provider returns the underlying provider name.
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Analyze produces a risk report for profile using preferredModel (or the
// default when empty).
//
// Errors: ANALYSIS_UNAVAILABLE when every tried model is unavailable;
// ANALYSIS_FAILED wrapping the provider error for anything else, including
// quota and authentication failures, which never trigger the fallback.
func (g *Gateway) Analyze(ctx context.Context, profile *models.Profile, preferredModel string) (*models.Report, error) {
	model := preferredModel
	if model == "" {
		model = g.defaultModel
	}
	completion := Completion{
		Model:  model,
		System: systemPrompt,
		User:   buildUserPrompt(profile),
	}
	slog.Debug("analysis prompt built",
		"provider", g.provider.Name(),
		"model", model,
		"estimated_tokens", cleaner.EstimateTokens(completion.User),
	)

	res, err := g.provider.Complete(ctx, completion)
	fellBack := false
	if errors.Is(err, models.ErrModelUnavailable) {
		if g.fallbackModel == "" || g.fallbackModel == model {
			return nil, models.NewScrapeError(models.ErrCodeAnalysisUnavailable, "model "+model+" is not available", err)
		}
		slog.Warn("model not available, falling back", "model", model, "fallback", g.fallbackModel)
		completion.Model = g.fallbackModel
		fellBack = true
		res, err = g.provider.Complete(ctx, completion)
		if errors.Is(err, models.ErrModelUnavailable) {
			return nil, models.NewScrapeError(models.ErrCodeAnalysisUnavailable,
				"neither "+model+" nor "+g.fallbackModel+" is available", err)
		}
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAnalysisFailed, "analysis request failed", err)
	}

	report, err := parseReport(res.Content)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAnalysisFailed, "model returned an unusable report", err)
	}
	report.Model = res.Model
	if report.Model == "" {
		report.Model = completion.Model
	}
	report.FellBack = fellBack
	report.Usage = res.Usage
	return report, nil
}

// parseReport decodes the model's JSON, tolerating a Markdown code fence.
func parseReport(content string) (*models.Report, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var r models.Report
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, err
	}
	r.RiskLevel = normalizeLevel(r.RiskLevel)
	if r.RiskLevel == models.RiskUnknown && r.Conclusion == "" {
		return nil, errors.New("report has neither a risk level nor a conclusion")
	}
	return &r, nil
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return models.RiskLow
	case "medium", "moderate":
		return models.RiskMedium
	case "high":
		return models.RiskHigh
	default:
		return models.RiskUnknown
	}
}
