package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

func TestCall_Success(t *testing.T) {
	l := NewLimiter(fastLimits())

	result, err := Call(context.Background(), l, logger.NewNoOpLogger(), func(ctx context.Context) (string, error) {
		return "success", nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got: %s", result)
	}
}

func TestCall_NonRetryableError(t *testing.T) {
	l := NewLimiter(fastLimits())
	testErr := errors.New("connection refused")

	calls := 0
	_, err := Call(context.Background(), l, logger.NewNoOpLogger(), func(ctx context.Context) (string, error) {
		calls++
		return "", testErr
	})
	if err != testErr {
		t.Errorf("Expected original error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestCall_RetriesExhausted(t *testing.T) {
	l := NewLimiter(fastLimits())

	calls := 0
	_, err := Call(context.Background(), l, logger.NewNoOpLogger(), func(ctx context.Context) (int, error) {
		calls++
		return 0, &ServiceError{Endpoint: "/parse_selection", StatusCode: http.StatusServiceUnavailable}
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls (1 + 3 retries), got %d", calls)
	}
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Errorf("Expected wrapped *ServiceError, got %v", err)
	}
}

func TestCall_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLimiter(Limits{RequestsPerSecond: 1, Burst: 1})
	_, err := Call(ctx, l, logger.NewNoOpLogger(), func(ctx context.Context) (string, error) {
		t.Error("Function should not be called with cancelled context")
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestBackoff_Capped(t *testing.T) {
	l := NewLimiter(Limits{BaseRetryDelay: time.Second, MaxRetryDelay: 4 * time.Second})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := l.backoff(tt.attempt); got != tt.expected {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestServiceError_Retryable(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, false},
		{0, false},
	}
	for _, tt := range tests {
		err := &ServiceError{StatusCode: tt.status}
		if got := err.Retryable(); got != tt.expected {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}
