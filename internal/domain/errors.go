package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ConfigurationError rejects a request or startup immediately. Never retried.
type ConfigurationError struct {
	Key string
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Msg
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Msg)
}

// ProviderTimeoutError means an external call exceeded its deadline.
type ProviderTimeoutError struct {
	Provider string
	Err      error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout: %v", e.Provider, e.Err)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Err }

// ProviderAuthError means the provider rejected the credentials.
type ProviderAuthError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderAuthError) Error() string {
	return fmt.Sprintf("%s: auth failed: status %d: %s", e.Provider, e.Status, e.Body)
}

// ProviderRateLimitError means the provider answered 429.
type ProviderRateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Body       string
}

func (e *ProviderRateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %s): %s", e.Provider, e.RetryAfter, e.Body)
}

// ProviderError covers any other provider failure (5xx, bad request, transport).
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError means provider or model output could not be interpreted.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// OptimizationInfeasibleError is reserved for pathological solver inputs.
type OptimizationInfeasibleError struct {
	Reason string
}

func (e *OptimizationInfeasibleError) Error() string {
	return "optimization infeasible: " + e.Reason
}

// ClassifyHTTPStatus maps a non-2xx provider response into the error taxonomy.
func ClassifyHTTPStatus(provider string, status int, body string, retryAfter time.Duration) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderAuthError{Provider: provider, Status: status, Body: body}
	case status == http.StatusTooManyRequests:
		return &ProviderRateLimitError{Provider: provider, RetryAfter: retryAfter, Body: body}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ProviderTimeoutError{Provider: provider, Err: fmt.Errorf("status %d: %s", status, body)}
	default:
		return &ProviderError{Provider: provider, Status: status, Err: errors.New(body)}
	}
}

// ClassifyTransportError maps a failed round trip into the error taxonomy.
// Caller cancellation is returned unchanged.
func ClassifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderTimeoutError{Provider: provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderTimeoutError{Provider: provider, Err: err}
	}
	return &ProviderError{Provider: provider, Err: err}
}

// IsTransient reports whether err is worth retrying: timeouts, rate limits,
// 5xx responses and transport failures.
func IsTransient(err error) bool {
	var te *ProviderTimeoutError
	var re *ProviderRateLimitError
	var pe *ProviderError
	switch {
	case errors.As(err, &te), errors.As(err, &re):
		return true
	case errors.As(err, &pe):
		return pe.Status == 0 || pe.Status >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
