package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cpbuild/internal/pageservice"
)

// maxMarkdownBytes bounds preview request bodies.
const maxMarkdownBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *pageservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pageservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pagePath extracts the source path from the URL (everything after the route prefix).
// Supports encoded slashes from OpenAPI clients (e.g. graph%2Fdfs.md).
func pagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ConvertPreflight handles OPTIONS /api/convert.
//
//	@Summary		CORS preflight for the preview endpoint
//	@Tags			preview
//	@Success		204	"Preflight accepted"
//	@Router			/convert [options]
func (h *Handler) ConvertPreflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
	w.WriteHeader(http.StatusNoContent)
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert Markdown to an HTML fragment
//	@Tags			preview
//	@Accept			json
//	@Produce		html
//	@Param			format	query		string			false	"Response format"	Enums(html, json)
//	@Param			body	body		ConvertRequest	true	"Markdown to convert"
//	@Success		200		{string}	string
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMarkdownBytes)
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Markdown == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("markdown is required"))
		return
	}

	preview, err := h.svc.Preview(r.Context(), *req.Markdown)
	if err != nil {
		writeError(w, "convert", "", err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, preview)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Render-Diagnostics", strconv.Itoa(len(preview.Diagnostics)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(preview.HTML))
}

// ListPages handles GET /api/pages.
//
//	@Summary		List built pages with optional pagination and filtering
//	@Tags			pages
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			template	query		string	false	"Filter by template name"
//	@Param			sort		query		string	false	"Sort field"	Enums(path, title, built_at, -built_at)
//	@Success		200			{object}	PageListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")
	switch sort {
	case "", "path", "title", "built_at", "-built_at":
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown sort field"))
		return
	}

	pages, total, err := h.svc.ListPages(r.Context(), limit, offset, q.Get("template"), sort)
	if err != nil {
		writeError(w, "list pages", "", err)
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages, Total: total})
}

// GetPage handles GET /api/pages/*.
//
//	@Summary		Get a built page by source path
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	true	"Source path"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{path} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	page, err := h.svc.GetPage(r.Context(), path)
	if err != nil {
		writeError(w, "get page", path, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetSource handles GET /api/sources/*.
//
//	@Summary		Get the Markdown source of a page
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	true	"Source path"
//	@Success		200		{object}	SourceResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sources/{path} [get]
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	md, err := h.svc.Source(r.Context(), path)
	if err != nil {
		writeError(w, "get source", path, err)
		return
	}
	writeJSON(w, http.StatusOK, SourceResponse{Path: path, Markdown: md})
}

// Rebuild handles POST /api/rebuild/*.
//
//	@Summary		Rebuild one page
//	@Tags			build
//	@Produce		json
//	@Param			path	path		string	true	"Source path"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rebuild/{path} [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	page, err := h.svc.Rebuild(r.Context(), path)
	if err != nil {
		writeError(w, "rebuild", path, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// RebuildAll handles POST /api/rebuild.
//
//	@Summary		Build every changed page
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) RebuildAll(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.RebuildAll(r.Context())
	if err != nil {
		writeError(w, "rebuild all", "", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across built pages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", q, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
