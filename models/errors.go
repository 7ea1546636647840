package models

import (
	"errors"
	"fmt"
)

// Error codes used in CLI output, API responses and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeExtraction   = "EXTRACTION_EMPTY"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeSession      = "SESSION_STORAGE"
	ErrCodeScanBusy     = "SCAN_IN_PROGRESS"

	// Authentication codes.
	ErrCodeCredentialsMissing   = "CREDENTIALS_MISSING"
	ErrCodeCredentialsRejected  = "CREDENTIALS_REJECTED"
	ErrCodeSecondFactorRejected = "SECOND_FACTOR_REJECTED"
	ErrCodeLoginFailed          = "LOGIN_FAILED"

	// Orchestrator codes.
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeRetriesExhausted     = "RETRIES_EXHAUSTED"

	// Inference provider codes.
	ErrCodeLLMFailure          = "LLM_FAILURE"
	ErrCodeLLMAuthFailure      = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited      = "LLM_RATE_LIMITED"
	ErrCodeLLMQuotaExceeded    = "LLM_QUOTA_EXCEEDED"
	ErrCodeLLMModelUnavailable = "LLM_MODEL_UNAVAILABLE"

	// Analysis gateway codes.
	ErrCodeAnalysisUnavailable = "ANALYSIS_UNAVAILABLE"
	ErrCodeAnalysisFailed      = "ANALYSIS_FAILED"
)

// Sentinels for errors.Is. A ScrapeError matches a sentinel when the codes are equal.
var (
	ErrNavigation           = &ScrapeError{Code: ErrCodeNavigation}
	ErrExtractionEmpty      = &ScrapeError{Code: ErrCodeExtraction}
	ErrCredentialsMissing   = &ScrapeError{Code: ErrCodeCredentialsMissing}
	ErrCredentialsRejected  = &ScrapeError{Code: ErrCodeCredentialsRejected}
	ErrSecondFactorRejected = &ScrapeError{Code: ErrCodeSecondFactorRejected}
	ErrLoginFailed          = &ScrapeError{Code: ErrCodeLoginFailed}
	ErrAuthenticationFailed = &ScrapeError{Code: ErrCodeAuthenticationFailed}
	ErrRetriesExhausted     = &ScrapeError{Code: ErrCodeRetriesExhausted}
	ErrModelUnavailable     = &ScrapeError{Code: ErrCodeLLMModelUnavailable}
	ErrAnalysisUnavailable  = &ScrapeError{Code: ErrCodeAnalysisUnavailable}
	ErrAnalysisFailed       = &ScrapeError{Code: ErrCodeAnalysisFailed}
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Artifact string `json:"artifact,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error

	// Artifact is the path of a diagnostic screenshot, if one was captured.
	Artifact string
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScrapeError with the same code.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// WithArtifact attaches a diagnostic artifact path and returns e.
func (e *ScrapeError) WithArtifact(path string) *ScrapeError {
	e.Artifact = path
	return e
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return &ErrorDetail{Code: e.Code, Message: msg, Artifact: ArtifactOf(e)}
}

// CodeOf returns the code of the outermost ScrapeError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// ArtifactOf returns the first non-empty artifact path found in err's chain.
func ArtifactOf(err error) string {
	for err != nil {
		if se, ok := err.(*ScrapeError); ok && se.Artifact != "" {
			return se.Artifact
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// AsScrapeError returns err as a ScrapeError, wrapping foreign errors as internal.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}
