package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/assets"
)

const defaultBuildConcurrency = 4

// BuildResult summarizes a static build.
type BuildResult struct {
	Pages       int              // HTML files written
	Redirects   int              // section redirect stubs written
	Unavailable []website.PageID // pages written without content, sorted
}

type redirectView struct {
	Title       string
	Target      string
	TargetTitle string
}

type buildJob struct {
	input     website.Input
	file      string // relative to the output directory
	requested string
	page      *website.Page // nil for Home and NotFound
}

// Build prerenders the home page, every routable page and the not-found page
// into outDir, along with the client assets and the raw Markdown of each
// page. Each section gets a stub that redirects to its first page. Pages
// whose content cannot be loaded are still written and listed in the result.
func (s *Server) Build(ctx context.Context, outDir string, concurrency int) (*BuildResult, error) {
	if concurrency <= 0 {
		concurrency = defaultBuildConcurrency
	}
	if err := s.writeAssets(outDir); err != nil {
		return nil, err
	}
	redirects, err := s.writeRedirects(outDir)
	if err != nil {
		return nil, err
	}

	jobs := []buildJob{
		{input: website.NavigateHome{}, file: "index.html", requested: "/"},
		{input: website.NotFound{}, file: "404.html", requested: "/404"},
	}
	for _, p := range s.catalog.Routable() {
		jobs = append(jobs, buildJob{
			input:     website.NavigateToPage{Page: p},
			file:      filepath.Join(filepath.FromSlash(strings.TrimPrefix(p.Path(), "/")), "index.html"),
			requested: p.Path(),
			page:      p,
		})
	}

	var (
		mu     sync.Mutex
		result = BuildResult{Redirects: redirects}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			unavailable, err := s.buildPage(gctx, outDir, job)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			result.Pages++
			if unavailable {
				result.Unavailable = append(result.Unavailable, job.page.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(result.Unavailable)
	return &result, nil
}

func (s *Server) buildPage(ctx context.Context, outDir string, job buildJob) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st, err := s.Resolve(ctx, job.input)
	var fetchErr *website.ContentFetchError
	if err != nil && !errors.As(err, &fetchErr) {
		return false, fmt.Errorf("resolve %s: %w", job.requested, err)
	}

	body, err := s.RenderPage(st, job.requested, themeLight, fetchErr)
	if err != nil {
		return false, fmt.Errorf("render %s: %w", job.requested, err)
	}
	if err := writeFile(filepath.Join(outDir, job.file), body); err != nil {
		return false, err
	}

	if job.page == nil {
		return false, nil
	}
	if fetchErr != nil {
		s.logger.Warn("page written without content", zap.Stringer("page", job.page), zap.Error(fetchErr))
		return true, nil
	}

	contentPath := website.ContentPath(job.page)
	md, err := s.source.Fetch(ctx, contentPath)
	if err != nil {
		s.logger.Warn("failed to copy raw content", zap.String("path", contentPath), zap.Error(err))
		return false, nil
	}
	return false, writeFile(filepath.Join(outDir, filepath.FromSlash(contentPath)), []byte(md))
}

// writeRedirects writes <section>/index.html for every section, since static
// hosts cannot answer the section path with a redirect.
func (s *Server) writeRedirects(outDir string) (int, error) {
	n := 0
	for _, p := range s.catalog.AllPages() {
		if !p.IsSection || p.Path() == "" {
			continue
		}
		target := s.catalog.RedirectTarget(p)
		if target == nil {
			continue
		}
		var buf bytes.Buffer
		err := s.tmpl.ExecuteTemplate(&buf, "redirect", redirectView{
			Title:       s.config.PageTitle(p),
			Target:      target.Path(),
			TargetTitle: target.Title,
		})
		if err != nil {
			return n, fmt.Errorf("render redirect %s: %w", p.Path(), err)
		}
		file := filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(p.Path(), "/")), "index.html")
		if err := writeFile(file, buf.Bytes()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Server) writeAssets(outDir string) error {
	js, err := assets.GetClientJS()
	if err != nil {
		return err
	}
	css, err := assets.GetClientCSS()
	if err != nil {
		return err
	}
	chroma, err := s.renderer.StyleCSS()
	if err != nil {
		return err
	}

	files := map[string][]byte{
		"website.js":  js,
		"website.css": css,
		"chroma.css":  []byte(chroma),
	}
	for name, data := range files {
		if err := writeFile(filepath.Join(outDir, "assets", name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
