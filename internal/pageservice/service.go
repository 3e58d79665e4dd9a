// Package pageservice is the read and preview surface shared by the HTTP API
// and the MCP server.
package pageservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/convert"
	"github.com/starford/cpbuild/internal/htmltext"
	"github.com/starford/cpbuild/internal/index"
	"github.com/starford/cpbuild/internal/layout"
	"github.com/starford/cpbuild/internal/models"
	"github.com/starford/cpbuild/internal/normalize"
	"github.com/starford/cpbuild/internal/render"
	"github.com/starford/cpbuild/internal/site"
	"github.com/starford/cpbuild/internal/storage"
)

// DefaultPreviewBaseURL fills &baseurl& in previews.
const DefaultPreviewBaseURL = "https://cp-algorithms.com"

// previewPath stands in for the document path of a preview.
const previewPath = "."

// PageDetail is a built page with its heading outline.
type PageDetail struct {
	models.PageSummary
	Headings []models.Heading `json:"headings"`
}

// Preview is the result of converting ad-hoc Markdown.
type Preview struct {
	Title       string   `json:"title"`
	HTML        string   `json:"html"`
	Diagnostics []string `json:"diagnostics"`
}

// Service coordinates the builder, the build index and the preview converter.
type Service struct {
	builder  *site.Builder
	db       index.PageIndex
	output   storage.Provider
	preview  *convert.Converter
	sanitize *bluemonday.Policy
}

// NewService creates a page service. sanitize may be nil to return preview
// HTML unmodified.
func NewService(b *site.Builder, db index.PageIndex, output storage.Provider, preview *convert.Converter, sanitize *bluemonday.Policy) *Service {
	return &Service{builder: b, db: db, output: output, preview: preview, sanitize: sanitize}
}

// NewPreviewConverter creates the converter used for previews: a single
// template that is just the page body, so the result is an HTML fragment.
func NewPreviewConverter(r render.Renderer, imageRoot, baseURL string) (*convert.Converter, error) {
	if baseURL == "" {
		baseURL = DefaultPreviewBaseURL
	}
	comp, err := layout.NewComposer(layout.MapStore{layout.DefaultName: "&text&"}, baseURL, "")
	if err != nil {
		return nil, err
	}
	return convert.New(normalize.New(imageRoot), r, comp), nil
}

// SanitizePolicy returns the preview sanitizer: user-generated content rules
// that keep the class attributes code highlighting and math rely on.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return p
}

// Preview converts markdown without touching the site.
func (s *Service) Preview(ctx context.Context, markdown string) (*Preview, error) {
	page, err := s.preview.Convert(ctx, convert.Document{Path: previewPath, Source: markdown})
	if err != nil {
		return nil, err
	}
	html := page.HTML
	if s.sanitize != nil {
		html = s.sanitize.Sanitize(html)
	}
	return &Preview{
		Title:       page.Title,
		HTML:        html,
		Diagnostics: nonNilSlice(page.Diagnostics),
	}, nil
}

// GetPage returns the indexed page and the heading outline of its output.
func (s *Service) GetPage(_ context.Context, path string) (*PageDetail, error) {
	p, err := s.db.GetPage(path)
	if err != nil {
		return nil, err
	}
	p.Diagnostics = nonNilSlice(p.Diagnostics)
	detail := &PageDetail{PageSummary: *p, Headings: []models.Heading{}}

	data, err := s.output.Read(p.Output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return detail, nil
		}
		return nil, err
	}
	text, err := htmltext.Extract(string(data))
	if err != nil {
		return nil, err
	}
	if text.Headings != nil {
		detail.Headings = text.Headings
	}
	return detail, nil
}

// ListPages returns paginated pages with optional template filter.
func (s *Service) ListPages(_ context.Context, limit, offset int, template, sort string) ([]models.PageSummary, int, error) {
	pages, total, err := s.db.ListPages(limit, offset, template, sort)
	if err != nil {
		return nil, 0, err
	}
	for i := range pages {
		pages[i].Diagnostics = nonNilSlice(pages[i].Diagnostics)
	}
	return pages, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []index.SearchResult{}, nil
	}
	return s.db.Search(query, limit)
}

// Rebuild rebuilds one page and returns its indexed summary.
func (s *Service) Rebuild(ctx context.Context, path string) (*PageDetail, error) {
	if _, err := s.builder.BuildOne(ctx, path); err != nil {
		return nil, err
	}
	return s.GetPage(ctx, path)
}

// RebuildAll runs a build of the whole site.
func (s *Service) RebuildAll(ctx context.Context) (site.Report, error) {
	return s.builder.BuildAll(ctx)
}

// Source returns the Markdown source of a page.
func (s *Service) Source(_ context.Context, path string) (string, error) {
	data, err := s.builder.Source(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("pageservice: source %s: %w", path, apperr.ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
