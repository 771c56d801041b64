package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sha1n/iconclass-mcp/internal/catalog"
	"github.com/sha1n/iconclass-mcp/internal/config"
	mcputil "github.com/sha1n/iconclass-mcp/internal/mcp"
	"github.com/sha1n/iconclass-mcp/internal/resolver"
	"github.com/spf13/pflag"
)

// ServerName is the implementation name announced to MCP clients
const ServerName = "iconclass-mcp"

// Components are the parts a running server is assembled from.
// Catalog is nil when the store failed to initialize and Registry is nil
// when metrics are disabled.
type Components struct {
	MCP      *mcp.Server
	Catalog  *catalog.Service
	Registry *prometheus.Registry
}

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*Components, *config.Settings) error
	CreateServer      func(*config.Settings) (*Components, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// SetupLogging installs the default text logger. Logs always go to stderr,
// stdout belongs to the stdio transport and to CLI output.
func SetupLogging() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))
}

// LoadValidSettings loads settings from flags, env and defaults and validates them
func LoadValidSettings(params RunParams, flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := LoadValidSettings(params, flags)
	if err != nil {
		return err
	}

	SetupLogging()

	slog.Info("Starting ICONCLASS MCP server", "version", version)
	config.Log(settings)

	components, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return components.MCP.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(components, settings)
}

// NewRegistry creates a Prometheus registry holding the runtime collectors
// and the resolver metrics.
func NewRegistry() (*prometheus.Registry, *resolver.Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := resolver.NewMetrics(registry)
	if err != nil {
		return nil, nil, err
	}
	return registry, metrics, nil
}

// CreateMCPServer creates the catalog service and the MCP server with registered tools
func CreateMCPServer(settings *config.Settings) (*Components, func(), error) {
	components := &Components{}
	var opts []catalog.Option

	if settings.Metrics.Enabled {
		registry, metrics, err := NewRegistry()
		if err != nil {
			return nil, nil, err
		}
		components.Registry = registry
		opts = append(opts, catalog.WithMetrics(metrics))
	}

	svc, err := catalog.NewService(settings, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create catalog service: %w", err)
	}

	var cleanup func()

	// Initialize in background context (not tied to request context)
	if err := svc.Initialize(context.Background()); err != nil {
		slog.Error("Catalog initialization failed", "error", err)
		// Close service on initialization failure and continue with formatting only
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close catalog service", "error", closeErr)
		}
	} else {
		components.Catalog = svc
		cleanup = func() {
			if err := svc.Close(); err != nil {
				slog.Error("Failed to close catalog service", "error", err)
			}
		}
	}

	components.MCP = mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: "1.0.0",
		Catalog: components.Catalog,
	})

	return components, cleanup, nil
}
