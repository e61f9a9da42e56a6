// Package site adapts the page catalog into the navigation views the server
// renders: the drawer menu, breadcrumbs, pagination and the reverse lookup
// from content files to pages used by hot reload.
package site

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kiluadev/website"
)

// PageNode is a page in the navigation tree.
type PageNode struct {
	Page     *website.Page
	Title    string
	Path     string      // URL path; for sections the redirect target's path is not used
	Active   bool        // the current page, or a section containing it
	Children []*PageNode // pages of a section
}

// IsSection reports whether the node groups other pages.
func (n *PageNode) IsSection() bool {
	return n.Page.IsSection
}

// Manager answers navigation questions about a catalog.
type Manager struct {
	catalog   *website.Catalog
	byContent map[string]*website.Page
}

// New creates a manager for c.
func New(c *website.Catalog) *Manager {
	m := &Manager{
		catalog:   c,
		byContent: make(map[string]*website.Page),
	}
	for _, p := range c.Routable() {
		m.byContent[website.ContentPath(p)] = p
	}
	return m
}

// Catalog returns the underlying catalog.
func (m *Manager) Catalog() *website.Catalog {
	return m.catalog
}

// GetPage returns the page served at urlPath.
func (m *Manager) GetPage(urlPath string) (*website.Page, bool) {
	p, err := m.catalog.ResolvePath(urlPath)
	if err != nil {
		return nil, false
	}
	return p, true
}

// GetNavigation returns the menu tree with the nodes on current's trail
// marked active. Home and NotFound are not part of the menu.
func (m *Manager) GetNavigation(current *website.Page) []*PageNode {
	var nav []*PageNode
	for _, top := range m.catalog.TopLevel() {
		if top.Route == "" {
			continue
		}
		node := m.node(top, current)
		for _, child := range m.catalog.Children(top) {
			c := m.node(child, current)
			node.Children = append(node.Children, c)
			if c.Active {
				node.Active = true
			}
		}
		nav = append(nav, node)
	}
	return nav
}

func (m *Manager) node(p, current *website.Page) *PageNode {
	return &PageNode{
		Page:   p,
		Title:  p.Title,
		Path:   p.Path(),
		Active: current != nil && p.ID == current.ID,
	}
}

// GetBreadcrumbs returns the trail from Home to p.
func (m *Manager) GetBreadcrumbs(p *website.Page) []*website.Page {
	return website.Breadcrumbs(m.catalog, p)
}

// GetPrevNext returns the pagination neighbours of p.
func (m *Manager) GetPrevNext(p *website.Page) (prev, next *website.Page) {
	return website.PreviousAndNext(m.catalog, p)
}

// PageForContent maps a content path such as
// "assets/md/getting-started/setting-up.md" back to its page.
func (m *Manager) PageForContent(contentPath string) (*website.Page, bool) {
	p, ok := m.byContent[strings.TrimPrefix(contentPath, "/")]
	return p, ok
}

// MissingContentError lists routable pages whose content could not be
// fetched.
type MissingContentError struct {
	Pages []*website.Page
	Errs  []error
}

func (e *MissingContentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d page(s) without content:", len(e.Pages))
	for i, p := range e.Pages {
		fmt.Fprintf(&b, "\n  %s (%s): %v", p.ID, website.ContentPath(p), e.Errs[i])
	}
	return b.String()
}

func (e *MissingContentError) Unwrap() []error {
	return e.Errs
}

// CheckContent fetches the content of every routable page with at most
// concurrency requests in flight and reports the pages that failed.
func (m *Manager) CheckContent(ctx context.Context, f website.ContentFetcher, concurrency int) error {
	pages := m.catalog.Routable()
	errs := make([]error, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, p := range pages {
		g.Go(func() error {
			if _, err := f.Fetch(ctx, website.ContentPath(p)); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return ctx.Err()
				}
				errs[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	missing := &MissingContentError{}
	for i, err := range errs {
		if err != nil {
			missing.Pages = append(missing.Pages, pages[i])
			missing.Errs = append(missing.Errs, err)
		}
	}
	if len(missing.Pages) > 0 {
		return missing
	}
	return nil
}
