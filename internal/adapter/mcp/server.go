// Package mcpadapter exposes the engine to tool-calling agents over the
// Model Context Protocol.
package mcpadapter

import (
	"context"
	"fmt"

	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/status"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const serverName = "turnkeep"

// Submitter is the slice of the engine the tools need.
type Submitter interface {
	Submit(ctx context.Context, actor store.Entity, req turn.Request) (event.Event, error)
}

type Deps struct {
	Engine    Submitter
	ObserveUC observe.UseCase
	StatusUC  status.UseCase
	Version   string
}

// NewServer builds an MCP server with every tool registered.
func NewServer(deps Deps) (*mcp.Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("mcp: engine is required")
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	mcp.AddTool(server, RunActionTool(), RunActionHandler(deps.Engine))
	mcp.AddTool(server, ObserveTool(), ObserveHandler(deps.ObserveUC))
	mcp.AddTool(server, TurnStatusTool(), TurnStatusHandler(deps.StatusUC))
	mcp.AddTool(server, ListActionsTool(), ListActionsHandler(deps.StatusUC))
	return server, nil
}

// ServeStdio runs server on stdin/stdout until ctx is done or the client
// goes away.
func ServeStdio(ctx context.Context, server *mcp.Server, logger zerolog.Logger) error {
	return serveWithTransport(ctx, server, &mcp.StdioTransport{}, logger)
}

func serveWithTransport(ctx context.Context, server *mcp.Server, transport mcp.Transport, logger zerolog.Logger) error {
	if server == nil {
		return fmt.Errorf("mcp: server is nil")
	}
	logger.Info().Msg("mcp server starting")
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: run: %w", err)
	}
	logger.Info().Msg("mcp server stopped")
	return nil
}
