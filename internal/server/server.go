// Package server serves the documentation site: server-rendered pages with
// embedded state, the session endpoint that drives client-side navigation,
// raw content, and live reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/assets"
	"github.com/kiluadev/website/internal/config"
	"github.com/kiluadev/website/internal/markdown"
	"github.com/kiluadev/website/internal/site"
	"github.com/kiluadev/website/internal/source"
)

var tracer = otel.Tracer("github.com/kiluadev/website/internal/server")

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = zap.NewNop()
		}
		s.logger = logger
	}
}

// Server is the documentation site server.
type Server struct {
	config   *config.Config
	catalog  *website.Catalog
	site     *site.Manager
	source   source.Source
	renderer *markdown.Renderer
	logger   *zap.Logger
	tmpl     *template.Template
	handler  http.Handler

	sessions map[string]*session
	connMu   sync.RWMutex // guards sessions

	watcher *Watcher

	ctx           context.Context
	cancel        context.CancelFunc
	rateLimitDone <-chan struct{}
}

// New creates a server for the catalog c, reading page content from src.
func New(cfg *config.Config, c *website.Catalog, src source.Source, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if c == nil {
		return nil, errors.New("server: catalog is required")
	}
	if src == nil {
		return nil, errors.New("server: content source is required")
	}

	tmpl, err := assets.Templates(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	renderer := markdown.New(markdown.Options{
		HighlightStyle: cfg.Markdown.HighlightStyle,
		LineNumbers:    cfg.Markdown.LineNumbers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		catalog:  c,
		site:     site.New(c),
		source:   src,
		renderer: renderer,
		logger:   zap.NewNop(),
		tmpl:     tmpl,
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	if s.config.RateLimit != nil {
		rl := s.config.RateLimit
		mw, done := RateLimitMiddleware(s.ctx, rl.GetRPS(), rl.GetBurst(), rl.GetMaxIPs(), s.logger)
		s.rateLimitDone = done
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(compressionMiddleware)
		r.Get("/api/state", s.handleState)
		r.Get("/api/state/*", s.handleState)
		r.Get("/assets/md/*", s.handleContent)
		r.Get("/assets/chroma.css", s.handleChromaCSS)
		r.Get("/assets/{file}", s.handleAsset)
		r.Get("/*", s.handlePage)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Catalog returns the catalog being served.
func (s *Server) Catalog() *website.Catalog {
	return s.catalog
}

// Renderer returns the Markdown renderer pages are rendered with.
func (s *Server) Renderer() *markdown.Renderer {
	return s.renderer
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	s.closeSessions()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops the watcher, every session and background work. The content
// source is owned by the caller and left open.
func (s *Server) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Stop()
	}
	s.closeSessions()
	s.cancel()
	if s.rateLimitDone != nil {
		<-s.rateLimitDone
	}
	return err
}

// newMachine creates a state machine over the server's catalog and content.
func (s *Server) newMachine(logger *zap.Logger, opts ...website.MachineOption) *website.Machine {
	opts = append([]website.MachineOption{
		website.WithLogger(logger),
		website.WithFetchTimeout(s.config.Content.GetTimeout()),
	}, opts...)
	return website.NewMachine(s.catalog, s.source, s.renderer, opts...)
}

// Resolve computes the final state for a single input on a short-lived
// machine. A content failure is returned alongside the state that shows it.
func (s *Server) Resolve(ctx context.Context, in website.Input) (website.State, error) {
	m := s.newMachine(s.logger)
	defer m.Close()
	return m.SendAndAwait(ctx, in)
}

// contentDir returns the directory a source reads from, looking through
// caching wrappers.
func contentDir(src source.Source) (string, bool) {
	for {
		switch v := src.(type) {
		case interface{ Dir() string }:
			return v.Dir(), true
		case interface{ Inner() source.Source }:
			src = v.Inner()
		default:
			return "", false
		}
	}
}

// EnableWatch starts watching the content directory for live reload. It
// requires a directory content source.
func (s *Server) EnableWatch() error {
	dir, ok := contentDir(s.source)
	if !ok {
		return fmt.Errorf("watch mode needs a directory content source, have %q", s.source.Name())
	}

	watcher, err := NewWatcher(dir, s.ContentChanged, s.logger.Named("watch"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()

	s.logger.Info("file watcher started", zap.String("dir", dir))
	return nil
}

// ContentChanged drops cached content for contentPath and reloads sessions
// showing the page it belongs to.
func (s *Server) ContentChanged(contentPath string) {
	if inv, ok := s.source.(source.Invalidator); ok {
		inv.Invalidate(contentPath)
	}

	page, ok := s.site.PageForContent(contentPath)
	if !ok {
		s.logger.Debug("changed file is not a page", zap.String("path", contentPath))
		return
	}
	s.logger.Info("content changed", zap.String("path", contentPath), zap.Stringer("page", page))
	s.BroadcastReload(contentPath, page)
}

// BroadcastReload notifies every session that page's content changed.
func (s *Server) BroadcastReload(contentPath string, page *website.Page) {
	sessions := s.snapshotSessions()
	if len(sessions) == 0 {
		return
	}
	s.logger.Debug("broadcasting reload", zap.String("path", contentPath), zap.Int("sessions", len(sessions)))
	for _, ss := range sessions {
		ss.reload(contentPath, page)
	}
}
