package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("http", cfg)
	cb.now = clock.now
	cb.since = clock.now()
	return cb, clock
}

var (
	hostDown   = &SourceError{Source: "http", Err: &HTTPError{StatusCode: 502}, Retryable: true}
	exhausted  = &SourceError{Source: "http", Err: &HTTPError{StatusCode: 503}, Retryable: false}
	missing    = &NotFoundError{Source: "http", Path: "assets/md/missing.md"}
	rejected   = &ValidationError{Source: "http", Field: "path", Reason: "invalid"}
	testConfig = BreakerConfig{Failures: 2, Window: time.Minute, Cooldown: 30 * time.Second, Recovery: 2}
)

func respond(body string, err error) RetryableFunc {
	return func(context.Context) (string, error) { return body, err }
}

func TestCircuitBreakerPassesResults(t *testing.T) {
	cb, _ := newTestBreaker(testConfig)

	body, err := cb.Execute(context.Background(), respond("# Introduction", nil))
	require.NoError(t, err)
	assert.Equal(t, "# Introduction", body)

	_, err = cb.Execute(context.Background(), respond("", missing))
	assert.Same(t, missing, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerCountsHostFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CircuitState
	}{
		{"retryable failure", hostDown, CircuitOpen},
		{"exhausted retries", exhausted, CircuitOpen},
		{"deadline exceeded", context.DeadlineExceeded, CircuitOpen},
		{"missing page", missing, CircuitClosed},
		{"invalid request", rejected, CircuitClosed},
		{"caller cancelled", context.Canceled, CircuitClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, _ := newTestBreaker(testConfig)
			for range 5 {
				_, _ = cb.Execute(context.Background(), respond("", tt.err))
			}
			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cb, clock := newTestBreaker(testConfig)
	for range 2 {
		_, _ = cb.Execute(context.Background(), respond("", hostDown))
	}
	require.Equal(t, CircuitOpen, cb.State())

	clock.advance(29 * time.Second)
	called := false
	_, err := cb.Execute(context.Background(), func(context.Context) (string, error) {
		called = true
		return "", nil
	})
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "http", openErr.Source)
	assert.False(t, called)

	clock.advance(time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())
}

func TestCircuitBreakerRecovery(t *testing.T) {
	tests := []struct {
		name    string
		results []error
		want    CircuitState
	}{
		{"enough successes close it", []error{nil, nil}, CircuitClosed},
		{"one success is not enough", []error{nil}, CircuitHalfOpen},
		{"host failure reopens it", []error{nil, hostDown}, CircuitOpen},
		{"missing page is neutral", []error{missing, nil}, CircuitHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(testConfig)
			for range 2 {
				_, _ = cb.Execute(context.Background(), respond("", hostDown))
			}
			clock.advance(testConfig.Cooldown)

			for _, err := range tt.results {
				_, _ = cb.Execute(context.Background(), respond("# Page", err))
			}
			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreakerSingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(testConfig)
	for range 2 {
		_, _ = cb.Execute(context.Background(), respond("", hostDown))
	}
	clock.advance(testConfig.Cooldown)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := cb.Execute(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-release
			return "# Page", nil
		})
		done <- err
	}()
	<-started

	_, err := cb.Execute(context.Background(), respond("# Page", nil))
	var openErr *CircuitOpenError
	assert.ErrorAs(t, err, &openErr, "only one trial runs at a time")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	_, err = cb.Execute(context.Background(), respond("# Page", nil))
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerFailureWindow(t *testing.T) {
	cfg := testConfig
	cfg.Failures = 3
	cb, clock := newTestBreaker(cfg)

	_, _ = cb.Execute(context.Background(), respond("", hostDown))
	clock.advance(time.Minute)
	for range 2 {
		_, _ = cb.Execute(context.Background(), respond("", hostDown))
	}
	assert.Equal(t, CircuitClosed, cb.State(), "the first failure left the window")

	_, _ = cb.Execute(context.Background(), respond("", hostDown))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerSuccessClearsFailures(t *testing.T) {
	cb, _ := newTestBreaker(testConfig)

	_, _ = cb.Execute(context.Background(), respond("", hostDown))
	_, _ = cb.Execute(context.Background(), respond("# Page", nil))
	_, _ = cb.Execute(context.Background(), respond("", hostDown))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitStateString(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("http", BreakerConfig{})
	assert.Equal(t, 1, cb.cfg.Failures)
	assert.Equal(t, 1, cb.cfg.Recovery)
	assert.Equal(t, CircuitClosed, cb.State())

	cfg := DefaultBreakerConfig()
	assert.Equal(t, 5, cfg.Failures)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
}
