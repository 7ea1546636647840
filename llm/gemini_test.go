package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/profilescan/models"
	"google.golang.org/genai"
)

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  string
		retry bool
	}{
		{"not found", genai.APIError{Code: 404, Status: "NOT_FOUND", Message: "models/gemini-9 is not found"}, models.ErrCodeLLMModelUnavailable, false},
		{"wrapped pointer", fmt.Errorf("call: %w", &genai.APIError{Code: 404}), models.ErrCodeLLMModelUnavailable, false},
		{"quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, models.ErrCodeLLMQuotaExceeded, false},
		{"auth", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, models.ErrCodeLLMAuthFailure, false},
		{"server", genai.APIError{Code: 503, Status: "UNAVAILABLE"}, models.ErrCodeLLMFailure, true},
		{"network", errors.New("connection reset"), models.ErrCodeLLMFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se, retry := classifyGeminiError(tt.err)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.retry, retry)
		})
	}
}
