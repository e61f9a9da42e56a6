package website

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Catalog is the static, ordered set of pages that make up the site.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	pages    []*Page // display order
	byID     map[PageID]*Page
	byPath   map[string]*Page
	children map[PageID][]*Page
	routable []*Page
	position map[PageID]int // index into routable
}

// NewCatalog builds a catalog from page definitions. Pages are ordered by
// their Order field (ties keep definition order), paths are derived from
// parents, and the result is validated. Any defect is reported as one or more
// *ConfigurationError joined together. A NotFound page is appended when the
// definitions have none; Home must always be defined.
func NewCatalog(defs []Page) (*Catalog, error) {
	c := build(withNotFound(defs))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(defs []Page) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

func withNotFound(defs []Page) []Page {
	last := 0
	for i, p := range defs {
		if p.ID == NotFoundID {
			return defs
		}
		if i == 0 || p.Order > last {
			last = p.Order
		}
	}
	out := make([]Page, len(defs), len(defs)+1)
	copy(out, defs)
	return append(out, Page{ID: NotFoundID, Title: "Page not found", Order: last + 1})
}

func build(defs []Page) *Catalog {
	pages := make([]*Page, len(defs))
	for i := range defs {
		p := defs[i]
		p.path = ""
		pages[i] = &p
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Order < pages[j].Order
	})

	c := &Catalog{
		pages:    pages,
		byID:     make(map[PageID]*Page, len(pages)),
		byPath:   make(map[string]*Page, len(pages)),
		children: make(map[PageID][]*Page),
		position: make(map[PageID]int),
	}

	for _, p := range pages {
		if _, dup := c.byID[p.ID]; !dup {
			c.byID[p.ID] = p
		}
	}

	// Parents are resolved lazily so children may precede their parent in defs.
	for _, p := range pages {
		p.path = c.derivePath(p, 0)
		if p.Parent != "" {
			c.children[p.Parent] = append(c.children[p.Parent], p)
		}
	}

	for _, p := range pages {
		if p.path != "" {
			if _, dup := c.byPath[p.path]; !dup {
				c.byPath[p.path] = p
			}
		}
		if p.path != "" && !p.IsSection {
			c.position[p.ID] = len(c.routable)
			c.routable = append(c.routable, p)
		}
	}

	return c
}

// derivePath computes parent.path + route. Cycles and unknown parents yield ""
// and are reported by Validate.
func (c *Catalog) derivePath(p *Page, depth int) string {
	if p.Route == "" || depth > len(c.pages) {
		return ""
	}
	if p.Parent == "" {
		return p.Route
	}
	parent, ok := c.byID[p.Parent]
	if !ok {
		return ""
	}
	base := c.derivePath(parent, depth+1)
	if base == "" {
		return ""
	}
	return base + p.Route
}

// AllPages returns every page in display order.
func (c *Catalog) AllPages() []*Page {
	return append([]*Page(nil), c.pages...)
}

// Page looks up a page by ID.
func (c *Catalog) Page(id PageID) (*Page, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Home returns the home page.
func (c *Catalog) Home() *Page {
	return c.byID[HomeID]
}

// NotFound returns the not-found page.
func (c *Catalog) NotFound() *Page {
	return c.byID[NotFoundID]
}

// Contains reports whether p is one of this catalog's pages.
func (c *Catalog) Contains(p *Page) bool {
	if p == nil {
		return false
	}
	q, ok := c.byID[p.ID]
	return ok && q == p
}

// ParentOf returns the parent of p, or nil for top-level pages.
func (c *Catalog) ParentOf(p *Page) *Page {
	if p == nil || p.Parent == "" {
		return nil
	}
	return c.byID[p.Parent]
}

// Children returns the direct children of p in display order.
func (c *Catalog) Children(p *Page) []*Page {
	if p == nil {
		return nil
	}
	return append([]*Page(nil), c.children[p.ID]...)
}

// TopLevel returns pages without a parent in display order.
func (c *Catalog) TopLevel() []*Page {
	var out []*Page
	for _, p := range c.pages {
		if p.Parent == "" {
			out = append(out, p)
		}
	}
	return out
}

// RedirectTarget returns the first child of a section in display order.
// It returns nil for non-section pages and for sections without children.
func (c *Catalog) RedirectTarget(p *Page) *Page {
	if p == nil || !p.IsSection {
		return nil
	}
	kids := c.children[p.ID]
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// Routable returns the pages that have a URL and are not sections, in
// display order. This is the pagination sequence.
func (c *Catalog) Routable() []*Page {
	return append([]*Page(nil), c.routable...)
}

// ResolvePath maps a URL path to a page. "/" (or "") resolves to Home, a
// single trailing slash is ignored, and sections resolve to themselves so the
// caller can redirect. Unknown paths yield ErrRouteNotFound.
func (c *Catalog) ResolvePath(path string) (*Page, error) {
	if path == "" || path == "/" {
		return c.Home(), nil
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if p, ok := c.byPath[path]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}

// MenuOrder returns the pages as the navigation menu lists them: each
// top-level page followed by its children.
func (c *Catalog) MenuOrder() []*Page {
	var out []*Page
	var walk func(p *Page, depth int)
	walk = func(p *Page, depth int) {
		out = append(out, p)
		if depth > len(c.pages) {
			return
		}
		for _, child := range c.children[p.ID] {
			walk(child, depth+1)
		}
	}
	for _, p := range c.TopLevel() {
		walk(p, 0)
	}
	return out
}

// Validate performs the static checks that make navigation well defined:
// unique IDs, orders and paths; known section parents; every section has a
// redirect target; and the menu order equals the display order.
func (c *Catalog) Validate() error {
	var errs []error
	add := func(e *ConfigurationError) { errs = append(errs, e) }

	seenID := make(map[PageID]bool)
	seenOrder := make(map[int]PageID)
	seenPath := make(map[string]PageID)

	for _, p := range c.pages {
		if p.ID == "" {
			add(NewConfigurationError("", "page %q has an empty id", p.Title).
				WithHint("Give every page a unique id"))
			continue
		}
		if seenID[p.ID] {
			add(NewConfigurationError(p.ID, "duplicate page id").
				WithHint("Page ids must be unique"))
		}
		seenID[p.ID] = true

		if other, dup := seenOrder[p.Order]; dup {
			add(NewConfigurationError(p.ID, "order %d is already used", p.Order).
				WithRelated(fmt.Sprintf("Page %q has the same order", other)))
		} else {
			seenOrder[p.Order] = p.ID
		}

		if p.Route != "" && (!strings.HasPrefix(p.Route, "/") || strings.HasSuffix(p.Route, "/") || strings.ContainsAny(p.Route, " ?#")) {
			add(NewConfigurationError(p.ID, "invalid route %q", p.Route).
				WithHint("Routes start with '/', have no trailing slash and no spaces, '?' or '#'"))
		}

		if p.Parent != "" {
			parent, ok := c.byID[p.Parent]
			switch {
			case !ok:
				add(NewConfigurationError(p.ID, "unknown parent %q", p.Parent))
			case !parent.IsSection:
				add(NewConfigurationError(p.ID, "parent %q is not a section", p.Parent).
					WithHint("Mark the parent page as a section"))
			case parent.Parent != "":
				add(NewConfigurationError(p.ID, "parent %q is a nested section", p.Parent).
					WithHint("Sections must be top-level pages"))
			}
			if p.Route == "" {
				add(NewConfigurationError(p.ID, "child page has no route").
					WithHint("Pages inside a section need a route"))
			}
		}

		if p.IsSection {
			if p.Route == "" {
				add(NewConfigurationError(p.ID, "section has no route"))
			}
			if c.RedirectTarget(p) == nil {
				add(NewConfigurationError(p.ID, "section has no pages to redirect to").
					WithHint("Add at least one page whose parent is this section"))
			}
		}

		if p.path != "" {
			if other, dup := seenPath[p.path]; dup {
				add(NewConfigurationError(p.ID, "path %s is not unique", p.path).
					WithRelated(fmt.Sprintf("Page %q already uses %s", other, p.path)))
			} else {
				seenPath[p.path] = p.ID
			}
		}
	}

	for _, id := range []PageID{HomeID, NotFoundID} {
		p, ok := c.byID[id]
		if !ok {
			add(NewConfigurationError(id, "required page is missing"))
			continue
		}
		if p.IsSection || p.Route != "" || p.Parent != "" {
			add(NewConfigurationError(id, "must be a top-level page without a route"))
		}
	}

	if len(errs) == 0 {
		menu := c.MenuOrder()
		if len(menu) != len(c.pages) {
			add(NewConfigurationError("", "navigation menu lists %d pages but the catalog has %d", len(menu), len(c.pages)))
		} else {
			for i := range menu {
				if menu[i] != c.pages[i] {
					add(NewConfigurationError(c.pages[i].ID, "display order does not match the navigation menu").
						WithHint("Place every section's pages directly after the section").
						WithRelated(fmt.Sprintf("The menu shows %q at position %d", menu[i].ID, i+1)))
					break
				}
			}
		}
	}

	return errors.Join(errs...)
}
