package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kiluadev/website/internal/config"
)

func TestNewDirSource(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, "docs/"+introPath, "# Intro")

	src, err := New(config.ContentConfig{Type: config.ContentDir, Dir: "docs"}, dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer src.Close()

	_, ok := src.(*FileSource)
	assert.True(t, ok, "uncached dir config should yield a FileSource, got %T", src)

	body, err := src.Fetch(context.Background(), introPath)
	require.NoError(t, err)
	assert.Equal(t, "# Intro", body)
}

func TestNewDefaultsToSiteDir(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, introPath, "# Intro")

	src, err := New(config.ContentConfig{}, dir, nil)
	require.NoError(t, err)
	defer src.Close()

	fs, ok := src.(*FileSource)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())
}

func TestNewWrapsWithCache(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, introPath, "# Intro")

	cfg := config.ContentConfig{Type: config.ContentDir, Cache: &config.CacheConfig{TTL: "1m"}}
	src, err := New(cfg, dir, nil)
	require.NoError(t, err)
	defer src.Close()

	cached, ok := src.(*CachedSource)
	require.True(t, ok, "got %T", src)
	assert.Equal(t, "dir", cached.Name())

	var inv Invalidator = cached
	inv.InvalidateAll()
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(config.ContentConfig{Type: "ftp"}, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
