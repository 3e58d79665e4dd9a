// Package convert runs one Markdown document through the page pipeline:
// directive extraction, line normalization, rendering, anchor repair and
// template composition.
package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/cpbuild/internal/anchor"
	"github.com/starford/cpbuild/internal/checksum"
	"github.com/starford/cpbuild/internal/directive"
	"github.com/starford/cpbuild/internal/layout"
	"github.com/starford/cpbuild/internal/normalize"
	"github.com/starford/cpbuild/internal/render"
)

// Document is a raw source document.
type Document struct {
	// Path is relative to the source root. It only feeds the history link.
	Path   string
	Source string
}

// Page is the result of converting one Document.
type Page struct {
	Path     string
	Title    string
	Template string
	// Body is the repaired HTML fragment before templating.
	Body        string
	HTML        string
	Diagnostics []string
}

// Converter holds the read-only pieces shared by every conversion.
// A Converter is safe for concurrent use.
type Converter struct {
	norm     *normalize.Normalizer
	renderer render.Renderer
	composer *layout.Composer
}

// New creates a Converter.
func New(norm *normalize.Normalizer, r render.Renderer, c *layout.Composer) *Converter {
	return &Converter{norm: norm, renderer: r, composer: c}
}

// Fingerprint changes whenever a setting that shapes page output changes.
// Template contents are not covered.
func (c *Converter) Fingerprint() string {
	rfp := fmt.Sprintf("%T", c.renderer)
	if f, ok := c.renderer.(render.Fingerprinter); ok {
		rfp = f.Fingerprint()
	}
	return checksum.Combine(c.norm.ImageRoot(), rfp, c.composer.Fingerprint())
}

// Convert produces the final page for doc. A missing template fails only
// this document; renderer diagnostics are returned on the page.
func (c *Converter) Convert(ctx context.Context, doc Document) (*Page, error) {
	d := directive.ExtractString(doc.Source)
	lines := c.norm.Lines(d.Body)

	out, err := c.renderer.Render(ctx, strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("convert: %s: %w", doc.Path, err)
	}
	body := anchor.Repair(out.HTML)

	html, err := c.composer.Compose(d.Template, layout.Values{
		Title: d.Title,
		Path:  doc.Path,
		Body:  body,
	})
	if err != nil {
		return nil, fmt.Errorf("convert: %s: %w", doc.Path, err)
	}
	return &Page{
		Path:        doc.Path,
		Title:       d.Title,
		Template:    d.Template,
		Body:        body,
		HTML:        html,
		Diagnostics: out.Diagnostics,
	}, nil
}
