package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/config"
	"github.com/kiluadev/website/internal/source"
)

const (
	introPath    = "assets/md/introduction.md"
	setupPath    = "assets/md/getting-started/setting-up.md"
	newAppPath   = "assets/md/getting-started/creating-a-new-application.md"
	setupURL     = "/getting-started/setting-up"
	newAppURL    = "/getting-started/creating-a-new-application"
	sectionURL   = "/getting-started"
	missingURL   = "/missing"
	introURL     = "/introduction"
	notFoundHTML = "404 - Page not found"
)

func testPages() []website.Page {
	return []website.Page{
		{ID: website.HomeID, Title: "Kilua", Order: 10},
		{ID: "Introduction", Title: "Introduction", Route: "/introduction", Order: 20, DrawerOpen: true},
		{ID: "GettingStarted", Title: "Getting started", Route: "/getting-started", IsSection: true, Order: 30, DrawerOpen: true},
		{ID: "SettingUp", Title: "Setting up", Route: "/setting-up", Parent: "GettingStarted", Order: 40, DrawerOpen: true},
		{ID: "CreatingANewApplication", Title: "Creating a new application", Route: "/creating-a-new-application", Parent: "GettingStarted", Order: 50, DrawerOpen: true},
		{ID: "Missing", Title: "Missing", Route: "/missing", Order: 60, DrawerOpen: true},
		{ID: website.NotFoundID, Title: "Page not found", Order: 70},
	}
}

func writeContent(t *testing.T, dir, contentPath, body string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(contentPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

// newTestServer serves testPages from a temporary content directory. The
// "Missing" page has no content file.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	writeContent(t, dir, introPath, "# Introduction\n\nKilua is a composable web framework.\n")
	writeContent(t, dir, setupPath, "---\ntitle: Setting up\n---\n# Setting up\n\nInstall the toolchain.\n")
	writeContent(t, dir, newAppPath, "# Creating a new application\n\n```kotlin\nfun main() {}\n```\n")

	src, err := source.NewFileSource(dir)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	c, err := website.NewCatalog(testPages())
	require.NoError(t, err)

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	srv, err := New(cfg, c, src, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv, dir
}

func get(t *testing.T, h http.Handler, target string, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for _, mod := range mods {
		mod(r)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func embeddedState(t *testing.T, srv *Server, body string) website.State {
	t.Helper()
	payload := website.ExtractPayload([]byte(body))
	require.NotNil(t, payload, "page should embed its state")
	st, err := website.DecodeState(srv.Catalog(), payload)
	require.NoError(t, err)
	return st
}

func TestNewRequiresCatalogAndSource(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)

	c := website.MustCatalog(testPages())
	_, err = New(nil, c, nil)
	assert.Error(t, err)
}

func TestServeHome(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<title>Kilua</title>")
	assert.Contains(t, body, `class="hero"`)
	assert.Contains(t, body, `href="/introduction"`)
	assert.Contains(t, body, `data-theme="winter"`)

	st := embeddedState(t, srv, body)
	assert.True(t, st.Page.IsHome())
	_, hasContent := st.Content()
	assert.False(t, hasContent)
}

func TestServeContentPage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, setupURL)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<title>Setting up - Kilua</title>")
	assert.Contains(t, body, `<h1 id="setting-up">Setting up</h1>`)
	assert.NotContains(t, body, "title: Setting up", "frontmatter should be stripped")
	assert.Contains(t, body, `class="page-nav-prev"`)
	assert.Contains(t, body, `href="/introduction" class="page-nav-prev"`)
	assert.Contains(t, body, `href="/getting-started/creating-a-new-application" class="page-nav-next"`)
	assert.Contains(t, body, `<details open>`, "the section holding the page is expanded")
	assert.Contains(t, body, `aria-current="page"`)
	assert.Contains(t, body, `class="drawer drawer-open"`)

	st := embeddedState(t, srv, body)
	assert.Equal(t, website.PageID("SettingUp"), st.Page.ID)
	assert.Equal(t, website.PageID("Introduction"), st.PreviousPage.ID)
	assert.Equal(t, website.PageID("CreatingANewApplication"), st.NextPage.ID)
	html, ok := st.Content()
	require.True(t, ok)
	assert.Contains(t, html, "Install the toolchain.")
}

func TestServeTrailingSlash(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, introURL+"/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, website.PageID("Introduction"), embeddedState(t, srv, w.Body.String()).Page.ID)
}

func TestServeSectionRedirects(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, sectionURL)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, setupURL, w.Header().Get("Location"))
}

func TestServeUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, "/no/such/page")
	require.Equal(t, http.StatusNotFound, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<title>"+notFoundHTML+"</title>")
	assert.Contains(t, body, `class="not-found"`)
	assert.True(t, embeddedState(t, srv, body).Page.IsNotFound())
}

func TestServeMissingContent(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, missingURL)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<title>Missing - Kilua</title>")
	assert.Contains(t, body, "This page has no content yet.")

	st := embeddedState(t, srv, body)
	assert.Equal(t, website.PageID("Missing"), st.Page.ID)
	assert.True(t, st.ContentUnavailable())
}

func TestServeThemeCookie(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		cookie string
		want   string
	}{
		{"dark", `data-theme="dark"`},
		{"light", `data-theme="winter"`},
		{"neon", `data-theme="winter"`},
	}
	for _, tt := range tests {
		t.Run(tt.cookie, func(t *testing.T) {
			w := get(t, srv, introURL, func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: themeCookie, Value: tt.cookie})
			})
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestServeCustomTitle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Title = "Docs"
	cfg.TitleTemplate = "Docs | %s"
	srv, _ := newTestServer(t, cfg)

	assert.Contains(t, get(t, srv, "/").Body.String(), "<title>Docs</title>")
	assert.Contains(t, get(t, srv, introURL).Body.String(), "<title>Docs | Introduction</title>")
}

func TestStateAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		target     string
		wantStatus int
		wantPage   website.PageID
	}{
		{"/api/state", http.StatusOK, website.HomeID},
		{"/api/state/", http.StatusOK, website.HomeID},
		{"/api/state" + setupURL, http.StatusOK, "SettingUp"},
		{"/api/state" + sectionURL, http.StatusOK, "SettingUp"},
		{"/api/state/nope", http.StatusNotFound, website.NotFoundID},
		{"/api/state" + missingURL, http.StatusServiceUnavailable, "Missing"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := get(t, srv, tt.target)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			st, err := website.DecodeState(srv.Catalog(), w.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, st.Page.ID)
		})
	}
}

func TestRawContent(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, "/"+introPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "# Introduction\n\nKilua is a composable web framework.\n", w.Body.String())

	for _, target := range []string{
		"/assets/md/missing.md",
		"/assets/md/introduction.txt",
		"/assets/md/",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, get(t, srv, target).Code)
		})
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	js := get(t, srv, "/assets/website.js")
	require.Equal(t, http.StatusOK, js.Code)
	assert.Equal(t, "application/javascript", js.Header().Get("Content-Type"))

	css := get(t, srv, "/assets/website.css")
	require.Equal(t, http.StatusOK, css.Code)

	chroma := get(t, srv, "/assets/chroma.css")
	require.Equal(t, http.StatusOK, chroma.Code)
	assert.Contains(t, chroma.Body.String(), ".chroma")

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/assets/other.js").Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(4), body["pages"])
	assert.Equal(t, "dir", body["source"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestPageResponsesAreHardened(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := get(t, srv, introURL, func(r *http.Request) {
		r.Header.Set("Accept-Encoding", "gzip")
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Kilua is a composable web framework.")
}

func TestRateLimitedServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimit = &config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	srv, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv, "/healthz").Code)
}

func TestResolveSectionShowsFirstChild(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	section, ok := srv.Catalog().Page("GettingStarted")
	require.True(t, ok)

	st, err := srv.Resolve(context.Background(), website.NavigateToPage{Page: section})
	require.NoError(t, err)
	assert.Equal(t, website.PageID("SettingUp"), st.Page.ID)
}

func TestContentDir(t *testing.T) {
	srv, dir := newTestServer(t, nil)

	got, ok := contentDir(srv.source)
	require.True(t, ok)
	want, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	cfg := config.ContentConfig{Type: config.ContentDir, Dir: dir, Cache: &config.CacheConfig{TTL: "1m"}}
	cached, err := source.New(cfg, "", nil)
	require.NoError(t, err)
	defer cached.Close()
	got, ok = contentDir(cached)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

// namedSource is a content source without a directory whose documents are
// all missing.
type namedSource struct{ name string }

func (s namedSource) Name() string { return s.name }

func (s namedSource) Fetch(_ context.Context, contentPath string) (string, error) {
	return "", &source.NotFoundError{Source: s.name, Path: contentPath}
}

func (s namedSource) Close() error { return nil }
