package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the position of a host's circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // fetches pass through
	CircuitOpen                         // fetches are rejected until the cooldown ends
	CircuitHalfOpen                     // one trial fetch at a time decides
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes when a content host is considered down.
type BreakerConfig struct {
	Failures int           // host failures within Window that open the breaker
	Window   time.Duration // how long a failure is remembered
	Cooldown time.Duration // how long an open breaker rejects fetches
	Recovery int           // successful trial fetches that close it again
	Logger   *zap.Logger   // nil disables logging
}

// DefaultBreakerConfig opens after five host failures in a minute and tries
// the host again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Failures: 5,
		Window:   time.Minute,
		Cooldown: 30 * time.Second,
		Recovery: 2,
	}
}

// CircuitBreaker stops calling a content host that keeps failing. Only
// failures of the host itself count: a missing page or a rejected request
// never opens it.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	since    time.Time   // when state was entered
	failures []time.Time // host failures still inside the window, oldest first
	passed   int         // successful trials while half-open
	trial    bool        // a half-open trial is running
}

// NewCircuitBreaker creates a closed breaker for the named host.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 1
	}
	if cfg.Recovery <= 0 {
		cfg.Recovery = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(zap.String("circuit", name)),
		now:    time.Now,
		since:  time.Now(),
	}
}

// Execute calls fn unless the breaker is open. A rejected call returns
// *CircuitOpenError without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn RetryableFunc) (string, error) {
	trial, err := cb.admit()
	if err != nil {
		return "", err
	}
	body, err := fn(ctx)
	cb.settle(trial, err)
	return body, err
}

// State returns the current position, moving an open breaker whose cooldown
// has ended to half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.cool()
	return cb.state
}

func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.cool()

	switch cb.state {
	case CircuitOpen:
		return false, &CircuitOpenError{Source: cb.name}
	case CircuitHalfOpen:
		if cb.trial {
			return false, &CircuitOpenError{Source: cb.name}
		}
		cb.trial = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) settle(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trial = false
	}

	if err == nil {
		switch {
		case cb.state == CircuitClosed:
			cb.failures = cb.failures[:0]
		case cb.state == CircuitHalfOpen && trial:
			cb.passed++
			if cb.passed >= cb.cfg.Recovery {
				cb.enter(CircuitClosed)
			}
		}
		return
	}
	if !isHostFailure(err) {
		return
	}

	switch cb.state {
	case CircuitHalfOpen:
		cb.enter(CircuitOpen)
	case CircuitClosed:
		now := cb.now()
		cb.failures = append(within(cb.failures, now.Add(-cb.cfg.Window)), now)
		if len(cb.failures) >= cb.cfg.Failures {
			cb.enter(CircuitOpen)
		}
	}
}

// cool must be called with mu held.
func (cb *CircuitBreaker) cool() {
	if cb.state == CircuitOpen && cb.now().Sub(cb.since) >= cb.cfg.Cooldown {
		cb.enter(CircuitHalfOpen)
	}
}

// enter must be called with mu held.
func (cb *CircuitBreaker) enter(next CircuitState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.since = cb.now()
	cb.passed = 0
	cb.failures = cb.failures[:0]

	cb.logger.Info("circuit state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
}

// within drops the timestamps at or before cutoff.
func within(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return append(times[:0], times[i:]...)
}

// isHostFailure reports whether err says the host is unhealthy. Exhausted
// retries lose their Retryable flag but still wrap the transient cause.
func isHostFailure(err error) bool {
	if shouldRetry(err) {
		return true
	}
	var sourceErr *SourceError
	return errors.As(err, &sourceErr) && isRetryableError(sourceErr.Err)
}
