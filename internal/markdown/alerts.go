package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindAlert is the node kind of *Alert.
var KindAlert = ast.NewNodeKind("Alert")

// Alert is a GitHub style alert: a blockquote whose first line is one of
// [!NOTE], [!TIP], [!IMPORTANT], [!WARNING] or [!CAUTION].
type Alert struct {
	ast.BaseBlock
	AlertType string // lower case, e.g. "note"
}

// Kind implements ast.Node.
func (n *Alert) Kind() ast.NodeKind {
	return KindAlert
}

// Dump implements ast.Node.
func (n *Alert) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"AlertType": n.AlertType}, nil)
}

var alertMarker = regexp.MustCompile(`^\[!(NOTE|TIP|IMPORTANT|WARNING|CAUTION)\]\s*$`)

type alertTransformer struct{}

// Transform rewrites marked blockquotes into Alert nodes.
func (t *alertTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()

	var quotes []*ast.Blockquote
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if bq, ok := n.(*ast.Blockquote); ok && entering {
			quotes = append(quotes, bq)
		}
		return ast.WalkContinue, nil
	})

	for _, bq := range quotes {
		para, ok := bq.FirstChild().(*ast.Paragraph)
		if !ok || para.Lines().Len() == 0 {
			continue
		}
		first := para.Lines().At(0)
		m := alertMarker.FindSubmatch(first.Value(source))
		if m == nil {
			continue
		}

		// Drop the inline nodes that make up the marker line.
		for c := para.FirstChild(); c != nil; {
			txt, ok := c.(*ast.Text)
			if !ok || txt.Segment.Start >= first.Stop {
				break
			}
			next := c.NextSibling()
			para.RemoveChild(para, c)
			c = next
		}
		if para.ChildCount() == 0 {
			bq.RemoveChild(bq, para)
		}

		alert := &Alert{AlertType: strings.ToLower(string(m[1]))}
		for c := bq.FirstChild(); c != nil; {
			next := c.NextSibling()
			alert.AppendChild(alert, c)
			c = next
		}
		parent := bq.Parent()
		parent.ReplaceChild(parent, bq, alert)
	}
}

type alertRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *alertRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAlert, r.renderAlert)
}

func (r *alertRenderer) renderAlert(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*Alert)
	if entering {
		title := strings.ToUpper(n.AlertType[:1]) + n.AlertType[1:]
		fmt.Fprintf(w, "<div class=\"markdown-alert markdown-alert-%s\">\n<p class=\"markdown-alert-title\">%s</p>\n", n.AlertType, title)
	} else {
		_, _ = w.WriteString("</div>\n")
	}
	return ast.WalkContinue, nil
}

type alerts struct{}

// Alerts is a goldmark extension that renders GitHub style alerts.
var Alerts goldmark.Extender = &alerts{}

func (e *alerts) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&alertTransformer{}, 500),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&alertRenderer{}, 500),
	))
}
