package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiluadev/website/internal/cache"
	"github.com/kiluadev/website/internal/config"
)

const cachePrefix = "content:"

// CachedSource wraps a Source with caching behavior
type CachedSource struct {
	inner    Source
	cache    cache.Cache[string]
	logger   *zap.Logger
	ttl      time.Duration
	strategy string // "simple" or "stale-while-revalidate"

	// stale-while-revalidate: content paths with a background refresh in flight
	mu           sync.Mutex
	revalidating map[string]bool

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	onClose    func()
}

// NewCachedSource creates a new cached source wrapper
func NewCachedSource(inner Source, c cache.Cache[string], cfg config.ContentConfig, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CachedSource{
		inner:        inner,
		cache:        c,
		logger:       logger.With(zap.String("source", inner.Name())),
		ttl:          cfg.GetCacheTTL(),
		strategy:     cfg.GetCacheStrategy(),
		revalidating: make(map[string]bool),
		cancelCtx:    ctx,
		cancelFunc:   cancel,
	}
}

// Name returns the source name
func (s *CachedSource) Name() string {
	return s.inner.Name()
}

// Fetch returns cached content when available and fetches it otherwise.
// Errors are never cached.
func (s *CachedSource) Fetch(ctx context.Context, contentPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, found, stale := s.cache.Get(cachePrefix + contentPath)
	if found {
		if stale && s.strategy == "stale-while-revalidate" {
			go s.revalidateInBackground(contentPath)
		}
		return body, nil
	}

	return s.fetchAndCache(ctx, contentPath)
}

func (s *CachedSource) fetchAndCache(ctx context.Context, contentPath string) (string, error) {
	body, err := s.inner.Fetch(ctx, contentPath)
	if err != nil {
		return "", err
	}

	key := cachePrefix + contentPath
	if s.strategy == "stale-while-revalidate" {
		// Fresh for half the TTL, then stale for the other half
		s.cache.SetWithStale(key, body, s.ttl/2, s.ttl)
	} else {
		s.cache.Set(key, body, s.ttl)
	}

	return body, nil
}

func (s *CachedSource) revalidateInBackground(contentPath string) {
	s.mu.Lock()
	if s.revalidating[contentPath] {
		s.mu.Unlock()
		return
	}
	s.revalidating[contentPath] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.revalidating, contentPath)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.cancelCtx, 30*time.Second)
	defer cancel()

	if _, err := s.fetchAndCache(ctx, contentPath); err != nil {
		if s.cancelCtx.Err() == nil {
			s.logger.Warn("background revalidation failed",
				zap.String("path", contentPath),
				zap.Error(err))
		}
	}
}

// Invalidate removes one content path from the cache.
func (s *CachedSource) Invalidate(contentPath string) {
	s.cache.Invalidate(cachePrefix + contentPath)
}

// InvalidateAll removes every cached document.
func (s *CachedSource) InvalidateAll() {
	s.cache.InvalidatePrefix(cachePrefix)
}

// Inner returns the wrapped source.
func (s *CachedSource) Inner() Source {
	return s.inner
}

// Close cancels background revalidation and closes the wrapped source.
func (s *CachedSource) Close() error {
	s.cancelFunc()
	if s.onClose != nil {
		s.onClose()
	}
	return s.inner.Close()
}
