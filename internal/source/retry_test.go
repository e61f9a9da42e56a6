package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func fastRetry(t *testing.T, maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
		Logger:     zaptest.NewLogger(t),
	}
}

func TestWithRetrySuccess(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), "test", fastRetry(t, 3), func(ctx context.Context) (string, error) {
		calls++
		return "# Introduction", nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if result != "# Introduction" {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestWithRetryRetryableError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), "test", fastRetry(t, 3), func(ctx context.Context) (string, error) {
		calls++
		return "", &SourceError{Source: "test", Operation: "fetch", Err: errors.New("timeout"), Retryable: true}
	})

	if err == nil {
		t.Error("expected error")
	}
	// Initial attempt plus MaxRetries
	if calls != 4 {
		t.Errorf("expected 4 calls (1 initial + 3 retries), got %d", calls)
	}

	var sourceErr *SourceError
	if !errors.As(err, &sourceErr) || sourceErr.Retryable {
		t.Errorf("exhausted error should be a non-retryable SourceError, got %#v", err)
	}
}

func TestWithRetryNonRetryableError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), "test", fastRetry(t, 3), func(ctx context.Context) (string, error) {
		calls++
		return "", &NotFoundError{Source: "test", Path: "assets/md/missing.md"}
	})

	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError to pass through, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retries), got %d", calls)
	}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), "test", fastRetry(t, 3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &SourceError{Source: "test", Operation: "fetch", Err: errors.New("temporary"), Retryable: true}
		}
		return "ok", nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if result != "ok" {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestWithRetryWrapsPlainError(t *testing.T) {
	_, err := WithRetry(context.Background(), "http", fastRetry(t, 1), func(ctx context.Context) (string, error) {
		return "", errors.New("connection reset by peer")
	})

	var sourceErr *SourceError
	if !errors.As(err, &sourceErr) {
		t.Fatalf("expected SourceError, got %T", err)
	}
	if sourceErr.Source != "http" || sourceErr.Operation != "fetch" {
		t.Errorf("unexpected wrapping: %+v", sourceErr)
	}
}

func TestWithRetryContextCanceled(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 10,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, "test", cfg, func(ctx context.Context) (string, error) {
		calls++
		return "", &SourceError{Source: "test", Operation: "fetch", Err: errors.New("fail"), Retryable: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls > 2 {
		t.Errorf("expected at most 2 calls before context cancel, got %d", calls)
	}
}

func TestWithRetryHTTPRetryable(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedCalls int
	}{
		{"500 should retry", 500, 3},
		{"503 should retry", 503, 3},
		{"429 should retry", 429, 3},
		{"400 should not retry", 400, 1},
		{"404 should not retry", 404, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			WithRetry(context.Background(), "test", fastRetry(t, 2), func(ctx context.Context) (string, error) {
				calls++
				return "", &HTTPError{Source: "test", StatusCode: tt.statusCode, Status: "error"}
			})
			if calls != tt.expectedCalls {
				t.Errorf("expected %d calls, got %d", tt.expectedCalls, calls)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable source error", &SourceError{Retryable: true}, true},
		{"non-retryable source error", &SourceError{Retryable: false}, false},
		{"http 500", &HTTPError{StatusCode: 500}, true},
		{"http 404", &HTTPError{StatusCode: 404}, false},
		{"connection error", &ConnectionError{Source: "test"}, true},
		{"timeout error", &TimeoutError{Source: "test"}, true},
		{"circuit open error", &CircuitOpenError{Source: "test"}, false},
		{"validation error", &ValidationError{Source: "test"}, false},
		{"not found", &NotFoundError{Source: "test"}, false},
		{"generic error", errors.New("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if shouldRetry(tt.err) != tt.expected {
				t.Errorf("expected shouldRetry=%v for %T", tt.expected, tt.err)
			}
		})
	}
}

func TestCalculateDelayBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond, Multiplier: 2}

	for attempt := 0; attempt < 6; attempt++ {
		d := calculateDelay(attempt, cfg)
		if d > time.Duration(float64(cfg.MaxDelay)*1.2) {
			t.Errorf("attempt %d: delay %v exceeds jittered max", attempt, d)
		}
		if d < time.Duration(float64(cfg.BaseDelay)*0.8) {
			t.Errorf("attempt %d: delay %v below jittered base", attempt, d)
		}
	}
}
