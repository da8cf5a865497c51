// Package mcp exposes the game session runtime to agents over the Model
// Context Protocol. Tools cover the full play loop: create a game, claim a
// seat, identify, move, resign, and read back state, achievements, and
// archived replays.
package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kibitz-games/kibitz/internal/achievement"
	"github.com/kibitz-games/kibitz/internal/game"
	"github.com/kibitz-games/kibitz/internal/room"
	"github.com/kibitz-games/kibitz/internal/storage"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Kibitz Game Runtime"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Server hosts the MCP server over the room registry.
type Server struct {
	mcpServer    *mcp.Server
	rooms        *room.Registry
	games        *game.Registry
	achievements *achievement.Registry
	replays      storage.ReplayStore
}

// Config carries the runtime surfaces the MCP tools operate on.
type Config struct {
	Rooms        *room.Registry
	Games        *game.Registry
	Achievements *achievement.Registry
	Replays      storage.ReplayStore
}

// New creates a configured MCP server with every game tool registered.
func New(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	server := &Server{
		mcpServer:    mcpServer,
		rooms:        cfg.Rooms,
		games:        cfg.Games,
		achievements: cfg.Achievements,
		replays:      cfg.Replays,
	}

	mcp.AddTool(mcpServer, createGameTool(), server.createGameHandler())
	mcp.AddTool(mcpServer, joinGameTool(), server.joinGameHandler())
	mcp.AddTool(mcpServer, identifyTool(), server.identifyHandler())
	mcp.AddTool(mcpServer, playMoveTool(), server.playMoveHandler())
	mcp.AddTool(mcpServer, getGameStateTool(), server.getGameStateHandler())
	mcp.AddTool(mcpServer, resignTool(), server.resignHandler())
	mcp.AddTool(mcpServer, listAchievementsTool(), server.listAchievementsHandler())
	mcp.AddTool(mcpServer, getReplayTool(), server.getReplayHandler())

	return server
}

// RunStdio serves MCP on standard input/output until the context ends.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP handler for mounting on an HTTP
// router, so agents can reach the same tools without a stdio pipe.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}
