package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors.
var (
	ErrNoAPIKey       = errors.New("api key not configured")
	ErrNoVideos       = errors.New("no videos found")
	ErrEmptyQuery     = errors.New("empty query")
	ErrQueryTooLong   = errors.New("query too long")
	ErrInvalidRegion  = errors.New("invalid region")
	ErrQueryInjection = errors.New("query contains suspicious content")
	ErrMissingField   = errors.New("required field missing")
	ErrNoOutput       = errors.New("model returned no usable output")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ConfigError reports a missing or unusable credential for a service.
type ConfigError struct {
	Service string
	Wrapped error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Service, e.Wrapped)
}

func (e *ConfigError) Unwrap() error { return e.Wrapped }

// NewConfigError creates a ConfigError wrapping ErrNoAPIKey.
func NewConfigError(service string) *ConfigError {
	return &ConfigError{Service: service, Wrapped: ErrNoAPIKey}
}

// maxBodyExcerpt is how much of an upstream body is kept on errors.
const maxBodyExcerpt = 120

// UpstreamError is a non-2xx response from an external API.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// NewUpstreamError builds an UpstreamError, truncating the body excerpt.
func NewUpstreamError(endpoint string, status int, body []byte) *UpstreamError {
	return &UpstreamError{Endpoint: endpoint, StatusCode: status, Body: truncate(string(body), maxBodyExcerpt)}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s (%d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// Quota reports whether the response looks like quota or rate exhaustion.
func (e *UpstreamError) Quota() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode != http.StatusForbidden {
		return false
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "quota") || strings.Contains(body, "ratelimit")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Temporary reports whether retrying the same request may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
