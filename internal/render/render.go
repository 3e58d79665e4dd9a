// Package render adapts a Markdown engine to the page pipeline.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// ErrRender indicates the engine failed to produce HTML.
var ErrRender = errors.New("render: markdown conversion failed")

// Output is the HTML produced for one document plus any warnings the engine
// raised while producing it.
type Output struct {
	HTML        string
	Diagnostics []string
}

// Renderer converts normalized Markdown into an HTML fragment.
// Diagnostics never cause an error; they are returned with the output.
type Renderer interface {
	Render(ctx context.Context, markdown string) (Output, error)
}

// Fingerprinter is implemented by renderers whose output depends on their
// configuration. Builds use it to detect when cached pages went stale.
type Fingerprinter interface {
	Fingerprint() string
}

// Options is the fixed renderer configuration.
type Options struct {
	// Highlight renders fenced code server-side with chroma CSS classes.
	Highlight      bool
	HighlightStyle string
}

// Goldmark renders Markdown with goldmark. Fenced code blocks come from
// CommonMark, autolinking from Linkify and math from MathJax delimiters.
// Heading attributes are deliberately left unparsed: the {#id} suffix must
// survive into the HTML where the anchor package repairs it.
type Goldmark struct {
	md   goldmark.Markdown
	opts Options
}

var _ Renderer = (*Goldmark)(nil)

// NewGoldmark creates a Goldmark renderer for opts. The instance is safe to
// share between goroutines.
func NewGoldmark(opts Options) *Goldmark {
	exts := []goldmark.Extender{
		extension.Linkify,
		mathjax.MathJax,
	}
	if opts.Highlight {
		style := opts.HighlightStyle
		if style == "" {
			style = "github"
		}
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		))
	}

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(
				util.Prioritized(&diagnosticTransformer{}, 1000),
			),
		),
		goldmark.WithRendererOptions(
			// Articles embed raw HTML (tables, centered images).
			html.WithUnsafe(),
		),
	)
	return &Goldmark{md: md, opts: opts}
}

// Fingerprint identifies the configuration that shapes the output HTML.
func (g *Goldmark) Fingerprint() string {
	if !g.opts.Highlight {
		return "goldmark"
	}
	style := g.opts.HighlightStyle
	if style == "" {
		style = "github"
	}
	return "goldmark+highlight:" + style
}

// Render converts markdown to HTML and collects diagnostics.
func (g *Goldmark) Render(ctx context.Context, markdown string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	pc := parser.NewContext()
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(markdown), &buf, parser.WithContext(pc)); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return Output{
		HTML:        buf.String(),
		Diagnostics: diagnosticsFrom(pc),
	}, nil
}
