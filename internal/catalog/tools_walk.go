package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// WalkArgument defines walk parameters.
type WalkArgument struct {
	Notation string `json:"notation" jsonschema_description:"ICONCLASS notation to walk from (e.g., 31A)"`
	Lang     string `json:"lang,omitempty" jsonschema_description:"Preferred label language; defaults to en"`
	Limit    int    `json:"limit,omitempty" jsonschema_description:"Maximum number of records to return, capped by the server walk limit"`
}

// WalkHandler handles the walk_hierarchy MCP tool.
type WalkHandler struct {
	service *Service
}

// NewWalkHandler creates a new walk handler.
func NewWalkHandler(service *Service) *WalkHandler {
	return &WalkHandler{service: service}
}

// Handle lists the notation and its descendants in pre-order, indented by depth.
func (h *WalkHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args WalkArgument) (*mcp.CallToolResult, any, error) {
	root := strings.TrimSpace(args.Notation)
	if root == "" {
		return errorResult("Notation cannot be empty"), nil, nil
	}
	if args.Limit < 0 {
		return errorResult("Limit cannot be negative"), nil, nil
	}

	walker, err := h.service.Walker()
	if err != nil {
		return errorResult("Walking is not available. The ICONCLASS store is still loading. Please try again later."), nil, nil
	}

	limit := h.service.Settings().Resolver.WalkLimit
	if args.Limit > 0 {
		limit = min(args.Limit, limit)
	}

	records, truncated, err := walker.Collect(ctx, root, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("Walk failed: %s", err)), nil, nil
	}
	if len(records) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Notation not found: %s", root)},
			},
		}, nil, nil
	}

	var sb strings.Builder
	WriteHierarchy(&sb, records, languageOrDefault(args.Lang), truncated)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}, nil, nil
}

// WriteHierarchy writes one line per record, indented two spaces per level
// below the first record, followed by a marker when the walk was truncated.
func WriteHierarchy(w io.Writer, records []*domain.Record, lang string, truncated bool) {
	if len(records) == 0 {
		return
	}
	base := len(records[0].Path)
	for _, rec := range records {
		depth := max(len(rec.Path)-base, 0)
		_, _ = fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), rec.Notation)
		if label := rec.Label(lang); label != "" {
			_, _ = fmt.Fprintf(w, "  %s", label)
		}
		_, _ = io.WriteString(w, "\n")
	}
	if truncated {
		_, _ = fmt.Fprintf(w, "... stopped after %d records\n", len(records))
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *WalkHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "walk_hierarchy",
		Description: "List an ICONCLASS notation and all notations below it, depth-first, with their labels",
	}
}

// RegisterWalkTool registers the walk tool with an MCP server.
func RegisterWalkTool(server *mcp.Server, service *Service) {
	handler := NewWalkHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
