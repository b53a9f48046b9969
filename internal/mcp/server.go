// Package mcp exposes outline extraction and outline search as MCP tools over
// stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"outline/internal/models"
)

const serverName = "outline-mcp"

// OutlineSearcher answers semantic queries over indexed outlines.
type OutlineSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error)
}

type Server struct {
	mcp *server.MCPServer
}

// NewServer registers outline_file, and search_outlines when searcher is not
// nil. Relative paths given to outline_file resolve against root.
func NewServer(version, root string, searcher OutlineSearcher) (*Server, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(true))
	AddOutlineFileTool(s, absRoot)
	if searcher != nil {
		AddSearchOutlinesTool(s, searcher)
	} else {
		log.Info().Msg("search_outlines disabled: no outline index configured")
	}
	return &Server{mcp: s}, nil
}

// Serve speaks MCP on stdin/stdout until ctx is cancelled or stdin closes.
// Nothing else may write to stdout while it runs.
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	log.Info().Msg("starting MCP server on stdio")
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
