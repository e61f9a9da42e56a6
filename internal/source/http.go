package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kiluadev/website/internal/config"
	"github.com/kiluadev/website/internal/security"
)

// HTTPSource fetches content from a remote host by appending the content path
// to a base URL. Requests go through a circuit breaker and are retried with
// backoff.
type HTTPSource struct {
	baseURL        string
	headers        map[string]string
	client         *http.Client
	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
}

// NewHTTPSource creates an HTTP content source from configuration.
func NewHTTPSource(cfg config.ContentConfig, logger *zap.Logger) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Source: "http", Field: "base_url", Reason: "base_url is required"}
	}

	base := strings.TrimRight(os.ExpandEnv(cfg.BaseURL), "/")
	if err := security.ValidateHTTPURL(base, cfg.AllowPrivate); err != nil {
		return nil, &ValidationError{Source: "http", Field: "base_url", Reason: err.Error()}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	cbConfig := DefaultBreakerConfig()
	cbConfig.Logger = logger

	return &HTTPSource{
		baseURL: base,
		headers: cfg.GetHeaders(),
		retryConfig: RetryConfig{
			MaxRetries: cfg.GetRetryMaxRetries(),
			BaseDelay:  cfg.GetRetryBaseDelay(),
			MaxDelay:   cfg.GetRetryMaxDelay(),
			Multiplier: 2.0,
			Logger:     logger,
		},
		circuitBreaker: NewCircuitBreaker("http", cbConfig),
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}, nil
}

// Name returns the source identifier
func (s *HTTPSource) Name() string {
	return "http"
}

// URL returns the address contentPath is fetched from.
func (s *HTTPSource) URL(contentPath string) string {
	segments := strings.Split(contentPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// Fetch retrieves the document with retry and circuit breaker protection.
func (s *HTTPSource) Fetch(ctx context.Context, contentPath string) (string, error) {
	if err := security.ValidateContentPath(contentPath); err != nil {
		return "", &ValidationError{Source: s.Name(), Field: "path", Reason: err.Error()}
	}
	return s.circuitBreaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return WithRetry(ctx, s.Name(), s.retryConfig, func(ctx context.Context) (string, error) {
			return s.doFetch(ctx, contentPath)
		})
	})
}

func (s *HTTPSource) doFetch(ctx context.Context, contentPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(contentPath), nil)
	if err != nil {
		return "", &SourceError{
			Source:    s.Name(),
			Operation: "create request",
			Path:      contentPath,
			Err:       err,
			Retryable: false,
		}
	}

	req.Header.Set("Accept", "text/markdown, text/plain;q=0.9, */*;q=0.1")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", NewSourceError(s.Name(), "request", contentPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &NotFoundError{Source: s.Name(), Path: contentPath}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &HTTPError{
			Source:     s.Name(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return "", NewSourceError(s.Name(), "read response", contentPath, err)
	}
	return string(body), nil
}

// CircuitState reports the state of the host's circuit breaker.
func (s *HTTPSource) CircuitState() CircuitState {
	return s.circuitBreaker.State()
}

// Close is a no-op for HTTP sources
func (s *HTTPSource) Close() error {
	return nil
}
