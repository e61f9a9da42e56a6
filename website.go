// Package website provides the core of the Kilua documentation site: a static,
// ordered page catalog, previous/next navigation, a FIFO state machine that
// loads and renders page content, and the serialization bridge used to hand
// server-rendered state to the browser.
package website

import (
	"strings"
	"unicode"
)

// PageID identifies a page in the catalog.
type PageID string

// Sentinel pages every catalog must contain.
const (
	HomeID     PageID = "Home"
	NotFoundID PageID = "NotFound"
)

// Page is an immutable entry of the catalog.
type Page struct {
	ID         PageID
	Title      string
	Route      string // "" for pages without a URL of their own (Home, NotFound)
	IsSection  bool   // sections only group children and redirect to the first one
	Parent     PageID // "" for top-level pages
	Order      int    // display order; menu and pagination are both derived from it
	DrawerOpen bool   // layout hint: show the navigation drawer

	path string
}

// Path returns the derived URL path (parent path + route), or "" when the page
// has no route.
func (p *Page) Path() string {
	return p.path
}

// Routable reports whether the page can be reached by URL.
func (p *Page) Routable() bool {
	return p.path != ""
}

// IsHome reports whether p is the home page sentinel.
func (p *Page) IsHome() bool {
	return p != nil && p.ID == HomeID
}

// IsNotFound reports whether p is the not-found sentinel.
func (p *Page) IsNotFound() bool {
	return p != nil && p.ID == NotFoundID
}

func (p *Page) String() string {
	if p == nil {
		return "<nil>"
	}
	return string(p.ID)
}

// Slugify converts a title to the kebab-case form used in routes,
// e.g. "Server-Side Rendering" -> "server-side-rendering".
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
