package ai

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error codes returned in the "error.code" field by Groq and the other
// OpenAI-compatible endpoints (OpenRouter passes most of them through).
const (
	CodeInvalidAPIKey         = "invalid_api_key"
	CodeModelNotFound         = "model_not_found"
	CodeModelDecommissioned   = "model_decommissioned"
	CodeRateLimitExceeded     = "rate_limit_exceeded"
	CodeContextLengthExceeded = "context_length_exceeded"
	CodeRequestTooLarge       = "request_too_large"
	CodeInsufficientQuota     = "insufficient_quota"
	CodeQuotaExceeded         = "quota_exceeded"
)

// AuthError is a rejected or missing API key (401/403, invalid_api_key).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected the API key: %s", e.provider(), e.APIError.Error())
}

// RateLimitError is a 429. RetryAfter comes from the Retry-After header when
// the provider sends one; Groq does on every per-minute limit.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit hit, retry in %ds: %s", e.provider(), int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("%s rate limit hit: %s", e.provider(), e.APIError.Error())
}

// ModelNotFoundError covers unknown and decommissioned models.
type ModelNotFoundError struct{ *APIError }

// Decommissioned reports whether the model existed but was retired.
func (e *ModelNotFoundError) Decommissioned() bool {
	return e.APIError != nil && e.Code == CodeModelDecommissioned
}

func (e *ModelNotFoundError) Error() string {
	if e.Decommissioned() {
		return fmt.Sprintf("model decommissioned: %s", e.APIError.Error())
	}
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// PromptTooLargeError means the analysis prompt did not fit: the model's
// context window (context_length_exceeded) or Groq's per-request token cap
// (413 request_too_large).
type PromptTooLargeError struct{ *APIError }

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("prompt too large: %s", e.APIError.Error())
}

// BadRequestError is any other 4xx validation failure.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError is a billing problem: exhausted quota or, on OpenRouter,
// a 402 for missing credits.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %s", e.provider(), e.APIError.Error())
}

// ServerError is a 5xx left after retries.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s server error: %s", e.provider(), e.APIError.Error())
}

// UnreachableError means no HTTP response came back at all: Ollama not
// running, DNS failure or no network.
type UnreachableError struct {
	Provider string
	Host     string
	Err      error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	target := e.Host
	if target == "" {
		target = e.Provider
	}
	if target != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", target, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func (e *APIError) provider() string {
	if e == nil || e.Provider == "" {
		return "provider"
	}
	return e.Provider
}

// classifyAPIError turns a decoded error body into one of the typed errors.
// Error codes win over status codes since Groq reports several distinct
// failures as a plain 400.
func classifyAPIError(apiErr *APIError, header http.Header) error {
	sc, code, msg := apiErr.StatusCode, apiErr.Code, apiErr.Message
	switch {
	case code == CodeInvalidAPIKey || sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case code == CodeModelNotFound || code == CodeModelDecommissioned:
		return &ModelNotFoundError{APIError: apiErr}
	case code == CodeContextLengthExceeded || code == CodeRequestTooLarge || sc == http.StatusRequestEntityTooLarge:
		return &PromptTooLargeError{APIError: apiErr}
	case code == CodeInsufficientQuota || code == CodeQuotaExceeded || sc == http.StatusPaymentRequired:
		return &QuotaExceededError{APIError: apiErr}
	case code == CodeRateLimitExceeded || sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if containsAllFold(msg, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		if containsAnyFold(msg, "context length", "context_length", "maximum context") {
			return &PromptTooLargeError{APIError: apiErr}
		}
		return &BadRequestError{APIError: apiErr}
	case containsAnyFold(msg, "quota", "billing", "insufficient credits"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
