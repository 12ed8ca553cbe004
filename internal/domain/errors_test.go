package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantAuth  bool
		wantRate  bool
		wantTime  bool
		transient bool
	}{
		{status: 401, wantAuth: true},
		{status: 403, wantAuth: true},
		{status: 429, wantRate: true, transient: true},
		{status: 504, wantTime: true, transient: true},
		{status: 503, transient: true},
		{status: 400},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyHTTPStatus("ors", tt.status, "body", time.Second)

			var ae *ProviderAuthError
			var re *ProviderRateLimitError
			var te *ProviderTimeoutError
			if got := errors.As(err, &ae); got != tt.wantAuth {
				t.Fatalf("auth = %v, want %v", got, tt.wantAuth)
			}
			if got := errors.As(err, &re); got != tt.wantRate {
				t.Fatalf("rate limit = %v, want %v", got, tt.wantRate)
			}
			if got := errors.As(err, &te); got != tt.wantTime {
				t.Fatalf("timeout = %v, want %v", got, tt.wantTime)
			}
			if got := IsTransient(err); got != tt.transient {
				t.Fatalf("transient = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	err := ClassifyTransportError("google", fmt.Errorf("do: %w", context.DeadlineExceeded))
	var te *ProviderTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected ProviderTimeoutError, got %T", err)
	}
	if te.Provider != "google" {
		t.Fatalf("provider = %q, want google", te.Provider)
	}

	if err := ClassifyTransportError("google", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must pass through, got %v", err)
	}

	wrapped := fmt.Errorf("extract: %w", ClassifyTransportError("x", errors.New("connection reset")))
	if !IsTransient(wrapped) {
		t.Fatalf("transport failures must be transient")
	}
}

func TestClampScore(t *testing.T) {
	if got := ClampScore(TierExact, 0.3); got != 0.7 {
		t.Fatalf("exact low = %v, want 0.7", got)
	}
	if got := ClampScore(TierApproximate, 0.95); got != 0.69 {
		t.Fatalf("approximate high = %v, want 0.69", got)
	}
	if got := ClampScore(TierNone, 0.95); got != 0 {
		t.Fatalf("none = %v, want 0", got)
	}
}

func TestDistanceMatrixValidate(t *testing.T) {
	m := NewDistanceMatrix(3, "haversine")
	if err := m.Validate(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Validate(4); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
