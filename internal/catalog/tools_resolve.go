package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/sha1n/iconclass-mcp/internal/notation"
)

// DefaultLanguage is the label language used when a tool call names none.
const DefaultLanguage = "en"

// ResolveArgument defines resolve parameters.
type ResolveArgument struct {
	Notations []string `json:"notations" jsonschema_description:"ICONCLASS notations to resolve (e.g., 11H(JOHN), 25F(+123))"`
	Lang      string   `json:"lang,omitempty" jsonschema_description:"Preferred label language (e.g., en, de, fr, it); defaults to en"`
}

// ResolveHandler handles the resolve_notations MCP tool.
type ResolveHandler struct {
	service *Service
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(service *Service) *ResolveHandler {
	return &ResolveHandler{service: service}
}

// Handle resolves every requested notation and renders the records as text.
func (h *ResolveHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ResolveArgument) (*mcp.CallToolResult, any, error) {
	notations := trimNotations(args.Notations)
	if len(notations) == 0 {
		return errorResult("At least one notation is required"), nil, nil
	}
	if limit := h.service.Settings().Resolver.MaxBatch; len(notations) > limit {
		return errorResult(fmt.Sprintf("Too many notations: %d (at most %d per call)", len(notations), limit)), nil, nil
	}

	engine, err := h.service.Engine()
	if err != nil {
		return errorResult("Resolution is not available. The ICONCLASS store is still loading. Please try again later."), nil, nil
	}

	records, err := engine.ResolveAll(ctx, notations)
	if err != nil {
		return errorResult(fmt.Sprintf("Resolution failed: %s", err)), nil, nil
	}

	lang := languageOrDefault(args.Lang)
	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		if rec == nil {
			fmt.Fprintf(&sb, "## %s\nNot found\n", notations[i])
			continue
		}
		writeRecord(&sb, rec, lang)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ResolveHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "resolve_notations",
		Description: "Resolve ICONCLASS notations, including key suffixes and named qualifiers, into labels, keywords, ancestors and children",
	}
}

// RegisterResolveTool registers the resolve tool with an MCP server.
func RegisterResolveTool(server *mcp.Server, service *Service) {
	handler := NewResolveHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// writeRecord renders one resolved record as a markdown section.
func writeRecord(sb *strings.Builder, rec *domain.Record, lang string) {
	fmt.Fprintf(sb, "## %s\n", rec.Notation)
	fmt.Fprintf(sb, "**Spaced**: %s\n", notation.FormatSpaced(rec.Notation))
	if label := rec.Label(lang); label != "" {
		fmt.Fprintf(sb, "**Label**: %s\n", label)
	}
	if kw := keywordsFor(rec, lang); len(kw) > 0 {
		fmt.Fprintf(sb, "**Keywords**: %s\n", strings.Join(kw, ", "))
	}
	fmt.Fprintf(sb, "**Path**: %s\n", strings.Join(rec.Path, " > "))
	if len(rec.Children) > 0 {
		fmt.Fprintf(sb, "**Children**: %s\n", strings.Join(rec.Children, ", "))
	}
	if len(rec.Refs) > 0 {
		fmt.Fprintf(sb, "**See also**: %s\n", strings.Join(rec.Refs, ", "))
	}
	if len(rec.Text) > 1 {
		fmt.Fprintf(sb, "**Languages**: %s\n", strings.Join(slices.Sorted(maps.Keys(rec.Text)), ", "))
	}
}

// keywordsFor picks keywords the way Label picks text.
func keywordsFor(rec *domain.Record, lang string) []string {
	if kw, ok := rec.Keywords[lang]; ok {
		return kw
	}
	return rec.Keywords[DefaultLanguage]
}

func languageOrDefault(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// trimNotations drops surrounding whitespace and empty entries.
func trimNotations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
