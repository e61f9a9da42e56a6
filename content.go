package website

import "context"

// ContentFetcher retrieves the raw Markdown stored at a content path.
// Implementations must honour ctx cancellation.
type ContentFetcher interface {
	Fetch(ctx context.Context, contentPath string) (string, error)
}

// MarkdownRenderer converts Markdown to sanitized HTML.
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// FetcherFunc adapts a function to the ContentFetcher interface.
type FetcherFunc func(ctx context.Context, contentPath string) (string, error)

// Fetch calls f(ctx, contentPath).
func (f FetcherFunc) Fetch(ctx context.Context, contentPath string) (string, error) {
	return f(ctx, contentPath)
}

// RendererFunc adapts a function to the MarkdownRenderer interface.
type RendererFunc func(markdown string) (string, error)

// Render calls f(markdown).
func (f RendererFunc) Render(markdown string) (string, error) {
	return f(markdown)
}

// ContentPrefix is prepended to a page path to form its content path.
const ContentPrefix = "assets/md"

// ContentPath returns where the Markdown for p lives, e.g.
// "assets/md/getting-started/setting-up.md". Pages without a path yield "".
func ContentPath(p *Page) string {
	if p == nil || p.Path() == "" {
		return ""
	}
	return ContentPrefix + p.Path() + ".md"
}
