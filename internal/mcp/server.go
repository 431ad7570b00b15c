package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// Dependencies bundles the services required for MCP server construction.
type Dependencies struct {
	Repository Repository
	SiteURL    string
	Version    string
	Logger     *slog.Logger
}

// NewServer builds an MCP server with the Jira tools registered.
func NewServer(deps Dependencies) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	srv := server.NewMCPServer(
		"lazyjira",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Tools for browsing and updating Jira tickets."),
		server.WithRecovery(),
	)

	if deps.Repository != nil {
		NewJiraTools(srv, deps.Repository, deps.SiteURL)
	} else {
		deps.Logger.Warn("mcp server started without a ticket repository")
	}

	return srv
}
