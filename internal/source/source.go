// Package source provides the content sources that page Markdown is fetched
// from: a local directory, a remote HTTP host, or a SQLite/PostgreSQL table.
// Every source addresses content by its content path, e.g.
// "assets/md/getting-started/setting-up.md".
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kiluadev/website/internal/cache"
	"github.com/kiluadev/website/internal/config"
)

// Source fetches raw Markdown by content path. Implementations satisfy
// website.ContentFetcher.
type Source interface {
	// Name returns the source identifier ("dir", "http", "sqlite", "pg")
	Name() string

	// Fetch returns the Markdown stored at contentPath. A missing document
	// is reported as *NotFoundError.
	Fetch(ctx context.Context, contentPath string) (string, error)

	// Close releases any resources held by the source
	Close() error
}

// Invalidator is implemented by sources that cache content.
type Invalidator interface {
	Invalidate(contentPath string)
	InvalidateAll()
}

// New creates the source described by cfg. Relative directories and database
// files are resolved against siteDir. When caching is enabled the source is
// wrapped in a CachedSource.
func New(cfg config.ContentConfig, siteDir string, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	src, err := createSource(cfg, siteDir, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.IsCacheEnabled() {
		return src, nil
	}

	memCache := cache.NewMemoryCache[string]()
	cached := NewCachedSource(src, memCache, cfg, logger)
	cached.onClose = memCache.Stop
	return cached, nil
}

func createSource(cfg config.ContentConfig, siteDir string, logger *zap.Logger) (Source, error) {
	switch cfg.Type {
	case "", config.ContentDir:
		dir := cfg.Dir
		if dir == "" {
			dir = siteDir
		}
		return NewFileSource(resolvePath(dir, siteDir))
	case config.ContentHTTP:
		return NewHTTPSource(cfg, logger)
	case config.ContentSQLite:
		return NewSQLiteSource(cfg.DB, cfg.GetTable(), siteDir)
	case config.ContentPG:
		return NewPostgresSource(cfg.GetDSN(), cfg.GetTable())
	default:
		return nil, fmt.Errorf("unsupported content source type: %q", cfg.Type)
	}
}
