package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"outline/internal/extract"
	"outline/internal/indexer"
	"outline/internal/models"
	"outline/internal/parser"
	"outline/internal/report"
)

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// SearchResponse is the JSON body returned by search_outlines.
type SearchResponse struct {
	Results []models.SearchHit `json:"results"`
	Total   int                `json:"total"`
}

func AddOutlineFileTool(s *server.MCPServer, root string) {
	tool := mcp.NewTool(
		"outline_file",
		mcp.WithDescription("Extract the structural outline of a source file: top-level classes with their bases, methods, functions and variables. Returns the outline report as text."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path inside the project, absolute or relative to the project root")),
		mcp.WithString("language",
			mcp.Description("Force a grammar: python, javascript, typescript or go. Defaults to detection by extension.")),
	)
	s.AddTool(tool, createOutlineFileHandler(root))
}

func createOutlineFileHandler(root string) toolHandler {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		path, ok := args["path"].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError("path parameter is required"), nil
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if !withinRoot(root, path) {
			return mcp.NewToolResultError(fmt.Sprintf("path is outside the project root: %s", path)), nil
		}

		var lang parser.Language
		if name, ok := args["language"].(string); ok && name != "" {
			l, err := parser.ParseLanguage(name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			lang = l
		}

		res, err := extract.New(lang).ExtractFile(path)
		switch {
		case errors.Is(err, extract.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", path)), nil
		case err != nil:
			return mcp.NewToolResultError(err.Error()), nil
		}

		var buf bytes.Buffer
		if err := report.Render(&buf, path, res.Entries); err != nil {
			return nil, fmt.Errorf("failed to render outline: %w", err)
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
}

// withinRoot reports whether path lies under root. Both are resolved through
// symlinks when path exists, so a link cannot lead out of the project.
func withinRoot(root, path string) bool {
	r, p := filepath.Clean(root), filepath.Clean(path)
	if rr, err := filepath.EvalSymlinks(r); err == nil {
		if pp, err := filepath.EvalSymlinks(p); err == nil {
			r, p = rr, pp
		}
	}
	rel, err := filepath.Rel(r, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func AddSearchOutlinesTool(s *server.MCPServer, searcher OutlineSearcher) {
	tool := mcp.NewTool(
		"search_outlines",
		mcp.WithDescription("Semantic search over the indexed outlines of the project. Returns matching files with their outline entries, ranked by similarity."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language description of the code you are looking for")),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of files to return (default: 10)")),
	)
	s.AddTool(tool, createSearchOutlinesHandler(searcher))
}

func createSearchOutlinesHandler(searcher OutlineSearcher) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		query, ok := args["query"].(string)
		if !ok || query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		topK := indexer.DefaultTopK
		if n, ok := args["top_k"].(float64); ok && n > 0 {
			topK = int(n)
		}

		hits, err := searcher.Search(ctx, query, topK)
		if err != nil {
			if errors.Is(err, indexer.ErrEmptyQuery) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, fmt.Errorf("search failed: %w", err)
		}
		if hits == nil {
			hits = []models.SearchHit{}
		}

		jsonData, err := json.Marshal(SearchResponse{Results: hits, Total: len(hits)})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
