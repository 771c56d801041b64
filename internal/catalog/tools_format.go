package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/iconclass-mcp/internal/notation"
)

// FormatArgument defines format parameters.
type FormatArgument struct {
	Notations []string `json:"notations" jsonschema_description:"ICONCLASS notations to render with display spacing"`
}

// FormatHandler handles the format_notation MCP tool. It needs no store.
type FormatHandler struct{}

// NewFormatHandler creates a new format handler.
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

// Handle renders each notation in its spaced display form, one per line.
func (h *FormatHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FormatArgument) (*mcp.CallToolResult, any, error) {
	notations := trimNotations(args.Notations)
	if len(notations) == 0 {
		return errorResult("At least one notation is required"), nil, nil
	}

	var sb strings.Builder
	for _, n := range notations {
		fmt.Fprintf(&sb, "%s => %s\n", n, notation.FormatSpaced(n))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *FormatHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "format_notation",
		Description: "Render ICONCLASS notations with the conventional display spacing (e.g., 25F1(+123) as 25 F 1 (+12 3))",
	}
}

// RegisterFormatTool registers the format tool with an MCP server.
func RegisterFormatTool(server *mcp.Server) {
	handler := NewFormatHandler()
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
