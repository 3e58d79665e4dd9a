package api

import (
	"github.com/starford/cpbuild/internal/index"
	"github.com/starford/cpbuild/internal/models"
	"github.com/starford/cpbuild/internal/pageservice"
	"github.com/starford/cpbuild/internal/site"
)

// ConvertRequest is the request body for a preview conversion.
type ConvertRequest struct {
	Markdown *string `json:"markdown" example:"<!--?title Demo-->\n## Demo ## {#demo}" validate:"required"`
}

// PageDetail is the full page response type (aliased from the domain layer).
type PageDetail = pageservice.PageDetail

// PageSummary is a lightweight item in a list response (aliased from the domain layer).
type PageSummary = models.PageSummary

// Preview is the JSON form of a preview conversion (aliased from the domain layer).
type Preview = pageservice.Preview

// PageListResponse wraps paginated page listings.
type PageListResponse struct {
	Pages []PageSummary `json:"pages" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// SourceResponse carries the raw Markdown of a page.
type SourceResponse struct {
	Path     string `json:"path" example:"graph/dfs.md" validate:"required"`
	Markdown string `json:"markdown" validate:"required"`
}

// RebuildResponse summarizes a full rebuild.
type RebuildResponse = site.Report
