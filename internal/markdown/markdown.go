// Package markdown renders page Markdown to sanitized HTML: GitHub flavored
// Markdown with heading IDs, chroma syntax highlighting, GitHub style alerts
// and external links that open in a new tab.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "github"

// Options configures a Renderer.
type Options struct {
	HighlightStyle string // chroma style name
	LineNumbers    bool   // number lines in highlighted code blocks
}

// Frontmatter is the optional YAML header of a content file.
type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Document is a rendered content file.
type Document struct {
	Frontmatter Frontmatter
	HTML        string
}

// Renderer converts Markdown to sanitized HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  string
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	style := opts.HighlightStyle
	if style == "" || styles.Get(style) == styles.Fallback {
		style = DefaultStyle
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.WithLineNumbers(opts.LineNumbers),
					chromahtml.TabWidth(4),
				),
			),
			Alerts,
			ExternalLinks,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	return &Renderer{md: md, policy: newPolicy(), style: style}
}

// Style returns the chroma style the renderer highlights with.
func (r *Renderer) Style() string {
	return r.style
}

// Render converts markdown to sanitized HTML. Frontmatter is dropped.
func (r *Renderer) Render(markdown string) (string, error) {
	doc, err := r.RenderDocument(markdown)
	if err != nil {
		return "", err
	}
	return doc.HTML, nil
}

// RenderDocument converts markdown to sanitized HTML and returns its
// frontmatter alongside.
func (r *Renderer) RenderDocument(markdown string) (Document, error) {
	fm, body, err := extractFrontmatter([]byte(markdown))
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	doc := r.md.Parser().Parse(text.NewReader(body))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, doc); err != nil {
		return Document{}, fmt.Errorf("failed to render HTML: %w", err)
	}

	return Document{
		Frontmatter: fm,
		HTML:        r.policy.Sanitize(buf.String()),
	}, nil
}

// StyleCSS returns the stylesheet for the renderer's highlight classes.
func (r *Renderer) StyleCSS() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(r.style)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("div", "p", "span", "pre", "code", "table", "input")
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")
	policy.AllowAttrs("align").OnElements("th", "td")
	policy.RequireNoFollowOnLinks(false)
	policy.RequireNoReferrerOnFullyQualifiedLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

func extractFrontmatter(content []byte) (Frontmatter, []byte, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(content, []byte("---\n")) {
		return Frontmatter{}, content, nil
	}

	endIdx := bytes.Index(content[3:], []byte("\n---"))
	if endIdx == -1 {
		return Frontmatter{}, nil, fmt.Errorf("unclosed frontmatter")
	}

	var yamlContent []byte
	if endIdx > 0 {
		yamlContent = content[4 : 3+endIdx]
	}
	remaining := content[3+endIdx+4:]
	// Closing delimiter must end its line
	if len(remaining) > 0 {
		if remaining[0] != '\n' {
			return Frontmatter{}, nil, fmt.Errorf("unclosed frontmatter")
		}
		remaining = remaining[1:]
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return Frontmatter{}, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	fm.Title = strings.TrimSpace(fm.Title)

	return fm, remaining, nil
}
