package website

import "fmt"

// State is an immutable snapshot of what the site shows.
type State struct {
	Page            *Page
	RenderedContent *string // nil when the page has no content or it is unavailable
	PreviousPage    *Page
	NextPage        *Page
}

// HomeState returns the state shown for the home page.
func HomeState(c *Catalog) State {
	return State{Page: c.Home()}
}

// NotFoundState returns the state shown for unknown routes.
func NotFoundState(c *Catalog) State {
	return State{Page: c.NotFound()}
}

// Content returns the rendered HTML and whether any is present.
func (s State) Content() (string, bool) {
	if s.RenderedContent == nil {
		return "", false
	}
	return *s.RenderedContent, true
}

// ContentUnavailable reports whether s is a content page whose body could
// not be loaded.
func (s State) ContentUnavailable() bool {
	return s.Page != nil && s.Page.Routable() && s.RenderedContent == nil
}

// Equal reports whether two states show the same thing.
func (s State) Equal(o State) bool {
	if s.Page != o.Page || s.PreviousPage != o.PreviousPage || s.NextPage != o.NextPage {
		return false
	}
	a, aok := s.Content()
	b, bok := o.Content()
	return aok == bok && a == b
}

func (s State) String() string {
	content := "none"
	if html, ok := s.Content(); ok {
		content = fmt.Sprintf("%d bytes", len(html))
	}
	return fmt.Sprintf("State{page=%s content=%s prev=%s next=%s}", s.Page, content, s.PreviousPage, s.NextPage)
}

// Input is a navigation request processed by a Machine.
type Input interface {
	isInput()
	fmt.Stringer
}

// NavigateHome shows the home page.
type NavigateHome struct{}

// NavigateToPage shows a catalog page. Sections are redirected to their
// first child.
type NavigateToPage struct {
	Page *Page
}

// NotFound shows the not-found page.
type NotFound struct{}

func (NavigateHome) isInput()   {}
func (NavigateToPage) isInput() {}
func (NotFound) isInput()       {}

func (NavigateHome) String() string { return "NavigateHome" }

func (in NavigateToPage) String() string { return fmt.Sprintf("NavigateToPage(%s)", in.Page) }

func (NotFound) String() string { return "NotFound" }

// InputForPath maps a URL path to the input that shows it.
func InputForPath(c *Catalog, path string) Input {
	p, err := c.ResolvePath(path)
	if err != nil {
		return NotFound{}
	}
	if p.IsHome() {
		return NavigateHome{}
	}
	return NavigateToPage{Page: p}
}
