// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the site build and preview tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/pageservice"
)

// ContractURI identifies the directive format resource.
const ContractURI = "cpbuild://directive-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with page tools.
type Server struct {
	mcp *server.MCPServer
	svc *pageservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *pageservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"cpbuild",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_markdown",
		mcp.WithDescription("Convert a Markdown article to an HTML fragment the way the site build does. "+
			"Math, fenced code and heading anchors are handled. Read the directive contract first via "+
			"get_directive_contract or the "+ContractURI+" resource."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown source")),
	), s.convertMarkdown)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List built pages, optionally filtered by template."),
		mcp.WithString("template", mcp.Description("Template file name to filter by (empty for all)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pages (default 50)")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through built page titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_source",
		mcp.WithDescription("Read the Markdown source of a page."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path relative to the input directory (e.g. graph/dfs.md)")),
	), s.readSource)

	s.mcp.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Get build metadata, diagnostics and the heading outline of a built page."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path relative to the input directory")),
	), s.getPage)

	s.mcp.AddTool(mcp.NewTool("get_directive_contract",
		mcp.WithDescription("Returns the article directive and template token contract."),
	), s.getDirectiveContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Directive Format Contract",
			mcp.WithResourceDescription("Directive comments and template tokens understood by the site build."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) convertMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	md, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview, err := s.svc.Preview(ctx, md)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(preview.Diagnostics) == 0 {
		return mcp.NewToolResultText(preview.HTML), nil
	}
	return jsonResult(preview)
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template := req.GetString("template", "")
	limit := req.GetInt("limit", 0)

	pages, _, err := s.svc.ListPages(ctx, limit, 0, template, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(pages) == 0 {
		return mcp.NewToolResultText("no pages built"), nil
	}
	lines := make([]string, 0, len(pages))
	for _, p := range pages {
		lines = append(lines, p.Path+"\t"+p.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, defaultSearchLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := s.svc.Source(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(md), nil
}

func (s *Server) getPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.GetPage(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(page)
}

func (s *Server) getDirectiveContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DirectiveFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     DirectiveFormatContract,
		},
	}, nil
}
