package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/iconclass-mcp/internal/catalog"
	"github.com/sha1n/iconclass-mcp/internal/config"
	"github.com/spf13/pflag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopValidate is a no-op validation function for tests
func noopValidate(*config.Settings) error {
	return nil
}

func TestRunWithDeps_ErrorCases(t *testing.T) {
	tests := []struct {
		name           string
		params         RunParams
		wantErrContain string
	}{
		{
			name: "LoadSettings error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return nil, errors.New("settings error")
				},
				ValidSettings: noopValidate,
			},
			wantErrContain: "failed to load settings",
		},
		{
			name: "ValidSettings error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: func(*config.Settings) error {
					return errors.New("validation error")
				},
			},
			wantErrContain: "invalid configuration",
		},
		{
			name: "CreateServer error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings) (*Components, func(), error) {
					return nil, nil, errors.New("create server error")
				},
			},
			wantErrContain: "create server error",
		},
		{
			name: "StartSSEServer error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings) (*Components, func(), error) {
					return nil, nil, nil
				},
				StartSSEServer: func(*Components, *config.Settings) error {
					return errors.New("sse start error")
				},
			},
			wantErrContain: "sse start error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunWithDeps(context.Background(), tt.params, nil, "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErrContain)
		})
	}
}

func TestRunWithDeps_Cleanup(t *testing.T) {
	cleanupCalled := false
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "sse"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*Components, func(), error) {
			return nil, func() { cleanupCalled = true }, nil
		},
		StartSSEServer: func(*Components, *config.Settings) error {
			return errors.New("intentional error to trigger cleanup")
		},
	}

	_ = RunWithDeps(context.Background(), params, nil, "test")

	assert.True(t, cleanupCalled, "cleanup was not called")
}

func TestDefaultRunParams(t *testing.T) {
	params := DefaultRunParams()

	assert.NotNil(t, params.LoadSettings, "loadSettings is nil")
	assert.NotNil(t, params.ValidSettings, "validSettings is nil")
	assert.NotNil(t, params.StartSSEServer, "startSSEServer is nil")
	assert.NotNil(t, params.CreateServer, "createServer is nil")
}

func TestRunWithDeps_StdioWithDefaultTransport(t *testing.T) {
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "stdio"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*Components, func(), error) {
			impl := &mcp.Implementation{Name: "test", Version: "1.0"}
			return &Components{MCP: mcp.NewServer(impl, nil)}, nil, nil
		},
		CustomIOTransport: nil,
	}

	// Use a cancelled context to avoid hanging on stdio
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWithDeps(ctx, params, nil, "test")

	// We expect an error because the context is cancelled
	if err == nil {
		t.Log("No error returned (unexpected)")
	}
}

func TestRunWithDeps_StdioWithCustomTransport(t *testing.T) {
	transportUsed := false
	customTransport := &mockTransport{
		connectCalled: &transportUsed,
	}

	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "stdio"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*Components, func(), error) {
			impl := &mcp.Implementation{Name: "test", Version: "1.0"}
			return &Components{MCP: mcp.NewServer(impl, nil)}, nil, nil
		},
		CustomIOTransport: customTransport,
	}

	// Use a cancelled context to avoid hanging
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = RunWithDeps(ctx, params, nil, "test")

	assert.True(t, transportUsed, "custom transport Connect was not called")
}

func TestCreateMCPServer(t *testing.T) {
	settings := catalog.TestSettings(catalog.WriteSampleSource(t, catalog.SampleFiles))
	settings.Metrics.Enabled = true

	components, cleanup, err := CreateMCPServer(settings)
	require.NoError(t, err)
	require.NotNil(t, cleanup, "a cleanup function")
	defer cleanup()

	assert.NotNil(t, components.MCP, "server to be created")
	if assert.NotNil(t, components.Catalog) {
		assert.True(t, components.Catalog.IsReady(), "catalog should be ready")
	}
	assert.NotNil(t, components.Registry, "a metrics registry")
}

func TestCreateMCPServer_MetricsDisabled(t *testing.T) {
	settings := catalog.TestSettings(catalog.WriteSampleSource(t, catalog.SampleFiles))

	components, cleanup, err := CreateMCPServer(settings)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, components.Registry, "no registry when metrics are disabled")
}

func TestCreateMCPServer_InitializationFailure(t *testing.T) {
	// No notations file: the catalog cannot load but formatting still works
	settings := catalog.TestSettings(t.TempDir())

	components, cleanup, err := CreateMCPServer(settings)
	require.NoError(t, err)
	assert.Nil(t, cleanup, "no cleanup without a catalog")
	assert.NotNil(t, components.MCP, "server to be created")
	assert.Nil(t, components.Catalog, "no catalog after a failed initialization")
}

func TestCreateMCPServer_InvalidStore(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	settings := catalog.TestSettings("data")
	settings.Store.Driver = config.StoreDriverSQLite
	settings.Store.BaseDir = filepath.Join(blocker, "base")

	_, _, err := CreateMCPServer(settings)
	assert.Error(t, err, "error when the base dir cannot be created")
}

func TestNewRegistry(t *testing.T) {
	registry, metrics, err := NewRegistry()
	require.NoError(t, err)
	require.NotNil(t, metrics, "resolver metrics")
	metrics.NamedFallbacks.Inc()

	families, err := registry.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "iconclass_named_fallbacks_total" {
			found = true
		}
	}
	assert.True(t, found, "iconclass_named_fallbacks_total to be gathered")
}

func TestLoadValidSettings(t *testing.T) {
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return catalog.TestSettings("data"), nil
		},
		ValidSettings: config.ValidateSettings,
	}

	settings, err := LoadValidSettings(params, nil)
	require.NoError(t, err)
	assert.Equal(t, "data", settings.Store.DataSource)
}

// mockTransport implements mcp.Transport for testing
type mockTransport struct {
	connectCalled *bool
}

func (m *mockTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	if m.connectCalled != nil {
		*m.connectCalled = true
	}
	return nil, errors.New("mock transport - no real connection")
}
