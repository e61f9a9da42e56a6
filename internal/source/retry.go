package source

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay between retries (default: 100ms)
	MaxDelay   time.Duration // Maximum delay between retries (default: 5s)
	Multiplier float64       // Delay multiplier for exponential backoff (default: 2.0)
	Logger     *zap.Logger   // Receives retry attempts; nil disables logging
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}
}

func (c RetryConfig) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// RetryableFunc fetches one piece of content and may be retried.
type RetryableFunc func(ctx context.Context) (string, error)

// WithRetry wraps a function with retry logic
func WithRetry(ctx context.Context, source string, cfg RetryConfig, fn RetryableFunc) (string, error) {
	log := cfg.logger().With(zap.String("source", source))
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) {
			log.Debug("non-retryable error", zap.Error(err))
			return "", err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			delay := calculateDelay(attempt, cfg)
			log.Warn("attempt failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
		}
	}

	log.Warn("all attempts failed", zap.Int("attempts", cfg.MaxRetries+1))

	// Retries are exhausted either way
	var sourceErr *SourceError
	if errors.As(lastErr, &sourceErr) {
		sourceErr.Retryable = false
		return "", lastErr
	}

	return "", &SourceError{
		Source:    source,
		Operation: "fetch",
		Err:       lastErr,
		Retryable: false,
	}
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr.Retryable
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}

	var circuitErr *CircuitOpenError
	if errors.As(err, &circuitErr) {
		return false
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return false
	}

	return isRetryableError(err)
}

// calculateDelay computes the delay for the given attempt using exponential backoff with jitter
func calculateDelay(attempt int, cfg RetryConfig) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(cfg.BaseDelay) * math.Pow(multiplier, float64(attempt))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// Jitter in [0.8, 1.2)
	delay *= 0.8 + rand.Float64()*0.4

	return time.Duration(delay)
}
