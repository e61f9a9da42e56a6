package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/assets"
	"github.com/kiluadev/website/internal/logging"
	"github.com/kiluadev/website/internal/site"
	"github.com/kiluadev/website/internal/source"
)

const (
	themeCookie = "theme"
	themeDark   = "dark"
	themeLight  = "winter"

	contentUnavailable = "Content not available"
)

// pageView is the data the page templates render.
type pageView struct {
	Title       string
	SiteTitle   string
	Description string
	Theme       string
	DrawerOpen  bool
	Path        string

	Page        *website.Page
	Home        bool
	NotFound    bool
	HasContent  bool
	Content     template.HTML
	Unavailable string
	StartPath   string

	Nav         []*site.PageNode
	Breadcrumbs []*website.Page
	Prev        *website.Page
	Next        *website.Page

	Payload template.HTML
}

// themeFor maps the theme cookie to the data-theme attribute value.
func themeFor(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == "dark" {
		return themeDark
	}
	return themeLight
}

// statePath is the URL path a state is shown at.
func statePath(st website.State, requested string) string {
	switch {
	case st.Page == nil || st.Page.IsHome():
		return "/"
	case st.Page.IsNotFound():
		return requested
	default:
		return st.Page.Path()
	}
}

// view assembles the template data for a state. fetchErr is the content
// failure, if any, that left the page without content.
func (s *Server) view(st website.State, requested, theme string, fetchErr error) (*pageView, error) {
	payload, err := website.EncodeState(st)
	if err != nil {
		return nil, err
	}

	v := &pageView{
		Title:       s.config.PageTitle(st.Page),
		SiteTitle:   s.config.Title,
		Description: s.config.Description,
		Theme:       theme,
		DrawerOpen:  st.Page.DrawerOpen,
		Path:        statePath(st, requested),
		Page:        st.Page,
		Home:        st.Page.IsHome(),
		NotFound:    st.Page.IsNotFound(),
		Nav:         s.site.GetNavigation(st.Page),
		Payload:     template.HTML(website.EmbedPayload(payload)),
	}

	if routable := s.catalog.Routable(); len(routable) > 0 {
		v.StartPath = routable[0].Path()
	}

	if html, ok := st.Content(); ok {
		v.HasContent = true
		v.Content = template.HTML(html)
	} else if st.ContentUnavailable() {
		v.Unavailable = contentUnavailable
		if fetchErr != nil {
			v.Unavailable = source.UserFriendlyMessage(fetchErr)
		}
	}

	if !v.Home && !v.NotFound {
		crumbs := s.site.GetBreadcrumbs(st.Page)
		if len(crumbs) > 1 {
			v.Breadcrumbs = crumbs
		}
		v.Prev, v.Next = st.PreviousPage, st.NextPage
	}
	return v, nil
}

func (s *Server) renderTemplate(name string, v *pageView) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPage renders the complete HTML document for a state.
func (s *Server) RenderPage(st website.State, requested, theme string, fetchErr error) ([]byte, error) {
	v, err := s.view(st, requested, theme, fetchErr)
	if err != nil {
		return nil, err
	}
	return s.renderTemplate("layout", v)
}

// statusFor picks the response status for a resolved state.
func statusFor(st website.State) int {
	switch {
	case st.Page.IsNotFound():
		return http.StatusNotFound
	case st.ContentUnavailable():
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// resolveRequest maps a URL path to the state it shows. Sections are not
// resolved: the returned redirect is the path of their first page.
func (s *Server) resolveRequest(ctx context.Context, urlPath string) (st website.State, redirect string, err error) {
	p, ok := s.site.GetPage(urlPath)
	if ok && p.IsSection {
		if target := s.catalog.RedirectTarget(p); target != nil {
			return website.State{}, target.Path(), nil
		}
	}
	st, err = s.Resolve(ctx, website.InputForPath(s.catalog, urlPath))
	return st, "", err
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "server.page",
		trace.WithAttributes(attribute.String("url.path", r.URL.Path)))
	defer span.End()
	logger := logging.FromContext(ctx)

	st, redirect, err := s.resolveRequest(ctx, r.URL.Path)
	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	var fetchErr *website.ContentFetchError
	if err != nil && !errors.As(err, &fetchErr) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to resolve page", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	body, err := s.RenderPage(st, r.URL.Path, themeFor(r), fetchErr)
	if err != nil {
		span.RecordError(err)
		logger.Error("failed to render page", zap.Stringer("page", st.Page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := statusFor(st)
	span.SetAttributes(attribute.String("website.page", string(st.Page.ID)), attribute.Int("http.status", status))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// handleState returns the serialized state for the path after /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	urlPath := "/" + chi.URLParam(r, "*")

	st, redirect, err := s.resolveRequest(r.Context(), urlPath)
	if redirect != "" {
		st, err = s.Resolve(r.Context(), website.InputForPath(s.catalog, redirect))
	}
	var fetchErr *website.ContentFetchError
	if err != nil && !errors.As(err, &fetchErr) {
		logging.FromContext(r.Context()).Error("failed to resolve state", zap.String("path", urlPath), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to resolve state")
		return
	}

	data, err := website.EncodeState(st)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode state")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusFor(st))
	_, _ = w.Write(data)
}

// handleContent serves raw Markdown under /assets/md.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	contentPath := path.Join(website.ContentPrefix, chi.URLParam(r, "*"))
	if !isContentPath(contentPath) {
		http.NotFound(w, r)
		return
	}

	md, err := s.source.Fetch(r.Context(), contentPath)
	if err != nil {
		var valErr *source.ValidationError
		switch {
		case source.IsNotFound(err), errors.As(err, &valErr):
			http.NotFound(w, r)
		default:
			logging.FromContext(r.Context()).Warn("content fetch failed", zap.String("path", contentPath), zap.Error(err))
			http.Error(w, source.UserFriendlyMessage(err), http.StatusServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(md))
}

func (s *Server) handleChromaCSS(w http.ResponseWriter, r *http.Request) {
	css, err := s.renderer.StyleCSS()
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(css))
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch chi.URLParam(r, "file") {
	case "website.js":
		data, err = assets.GetClientJS()
		contentType = "application/javascript"
	case "website.css":
		data, err = assets.GetClientCSS()
		contentType = "text/css; charset=utf-8"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"pages":    len(s.catalog.Routable()),
		"source":   s.source.Name(),
		"sessions": s.SessionCount(),
	})
}

// isContentPath reports whether p names a Markdown file under the content prefix.
func isContentPath(p string) bool {
	return strings.HasPrefix(p, website.ContentPrefix+"/") && strings.HasSuffix(p, ".md")
}
