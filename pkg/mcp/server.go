// Package mcp exposes moves and reference queries as MCP tools over stdio.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/movets/pkg/indexer"
	"github.com/gnana997/movets/pkg/mcplog"
	"github.com/gnana997/movets/pkg/mover"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server for movets.
type Server struct {
	mcpServer *server.MCPServer
	coord     *mover.Coordinator
	idx       *indexer.ReferenceIndexer
	callLog   *mcplog.Logger // may be nil
	logger    *slog.Logger
}

// NewServer creates an MCP server that moves through coord. callLog, when
// non-nil, receives one JSONL entry per tool call.
func NewServer(coord *mover.Coordinator, callLog *mcplog.Logger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord:   coord,
		idx:     coord.Indexer(),
		callLog: callLog,
		logger:  logger,
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("movets", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: movePathTool(), Handler: s.handleMovePath},
		server.ServerTool{Tool: moveBatchTool(), Handler: s.handleMoveBatch},
		server.ServerTool{Tool: moveSiblingsTool(), Handler: s.handleMoveSiblings},
		server.ServerTool{Tool: componentizeTool(), Handler: s.handleComponentize},
		server.ServerTool{Tool: reindexTool(), Handler: s.handleReindex},
		server.ServerTool{Tool: getReferencesTool(), Handler: s.handleGetReferences},
		server.ServerTool{Tool: listSpecifiersTool(), Handler: s.handleListSpecifiers},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP on stdio", "root", s.idx.Root())
	return server.ServeStdio(s.mcpServer)
}
