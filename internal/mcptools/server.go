package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the site generation tools
// registered. query_site is only registered when the service has an index.
func NewMCPServer(svc *SiteService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sitegen",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_site",
		Description: "Generate a complete website from a business description. Runs every pipeline stage and returns the session ID, how each stage ended, and the exported files.",
	}, svc.GenerateSite)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the state, progress events and stage outcomes of one generation run.",
	}, svc.GetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List recent generation runs, newest first. Optionally filter by state.",
	}, svc.ListSessions)

	if svc.index != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "query_site",
			Description: "Return the sections and images of a generated site. Optionally only images shown in one section type.",
		}, svc.QuerySite)
	}

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
