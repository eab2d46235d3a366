package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

const (
	defaultRateLimitBackoff = 60 * time.Second
	quotaCode               = "insufficient_quota"
)

// APIError is a classified model provider failure
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	// RetryAfter is the provider's hint, or a default for rate limits. Zero when unknown.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// QuotaExhausted reports a billing failure that retrying will not fix
func (e *APIError) QuotaExhausted() bool {
	return e.Code == quotaCode
}

// RateLimited reports a transient 429
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests && !e.QuotaExhausted()
}

// ExtractAPIError classifies err. It returns nil for errors that did not come from the provider API.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var oaiErr *openai.Error
	if !errors.As(err, &oaiErr) {
		return nil
	}

	out := &APIError{
		StatusCode: oaiErr.StatusCode,
		Type:       oaiErr.Type,
		Code:       oaiErr.Code,
		Message:    oaiErr.Message,
	}
	if oaiErr.Response != nil {
		out.RetryAfter = parseRetryAfter(oaiErr.Response.Header.Get("Retry-After"))
		if out.Code == "" {
			fillFromBody(out, oaiErr.Response)
		}
	}
	if out.RetryAfter == 0 && out.RateLimited() {
		out.RetryAfter = defaultRateLimitBackoff
	}
	return out
}

// IsRateLimitError checks if an error is a transient rate limit
func IsRateLimitError(err error) bool {
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return apiErr.RateLimited()
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return apiErr.QuotaExhausted()
	}
	return err != nil && strings.Contains(err.Error(), quotaCode)
}

// errorBody is the provider's error payload, bare or inside an "error" envelope
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// fillFromBody reads the buffered error response when the SDK left the fields empty
func fillFromBody(out *APIError, res *http.Response) {
	if res.Body == nil {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return
	}
	res.Body = io.NopCloser(bytes.NewReader(raw))

	var env struct {
		Error *errorBody `json:"error"`
		errorBody
	}
	if json.Unmarshal(raw, &env) != nil {
		return
	}
	body := env.errorBody
	if env.Error != nil {
		body = *env.Error
	}
	out.Code = body.Code
	if out.Type == "" {
		out.Type = body.Type
	}
	if out.Message == "" {
		out.Message = body.Message
	}
}

// parseRetryAfter accepts the delta-seconds form of Retry-After
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
