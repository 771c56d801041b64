// Package mcp builds the MCP server exposing the ICONCLASS tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/iconclass-mcp/internal/catalog"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Catalog serves the store backed tools. Without it only format_notation
	// is registered.
	Catalog *catalog.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	catalog.RegisterFormatTool(s)
	if cfg.Catalog != nil {
		catalog.RegisterResolveTool(s, cfg.Catalog)
		catalog.RegisterWalkTool(s, cfg.Catalog)
	}

	return s
}
