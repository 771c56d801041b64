package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth: AuthSettings{
			Type: AuthTypeNone,
		},
	}
	Log(s) // Should not panic
}

func TestLogWithLogger_StdioTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Host:      "localhost",
		Port:      8080,
		Auth: AuthSettings{
			Type: AuthTypeNone,
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "transport", "'transport' in log output")
	// stdio transport should not log host/port
	assert.NotContains(t, output, "host", "no 'host' in log output for stdio transport")
}

func TestLogWithLogger_SSETransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth: AuthSettings{
			Type: AuthTypeNone,
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "transport", "'transport' in log output")
	assert.Contains(t, output, "host", "'host' in log output for SSE transport")
	assert.Contains(t, output, "port", "'port' in log output for SSE transport")
}

func TestLogWithLogger_BasicAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth: AuthSettings{
			Type: AuthTypeBasic,
			Basic: BasicAuthSettings{
				Username: "admin",
				Password: "secret",
			},
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "admin", "username in log output")
	assert.Contains(t, output, "****", "masked password in log output")
	assert.NotContains(t, output, "secret", "password should be masked, not shown in plain text")
}

func TestLogWithLogger_APIKeyAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth: AuthSettings{
			Type:    AuthTypeAPIKey,
			APIKeys: []string{"key1", "key2", "key3"},
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "count=3")
}

func TestSettingsLogValue(t *testing.T) {
	s := Settings{
		Transport: "sse",
		Host:      "localhost",
		Port:      8080,
		Auth: AuthSettings{
			Type:    AuthTypeAPIKey,
			APIKeys: []string{"key1"},
		},
	}

	val := SettingsLogValue(s)
	assert.Equal(t, slog.KindGroup, val.Kind())
}

func TestAuthSettingsLogValue(t *testing.T) {
	s := AuthSettings{
		Type:    AuthTypeAPIKey,
		APIKeys: []string{"key1", "key2"},
		Basic: BasicAuthSettings{
			Username: "user",
			Password: "pass",
		},
	}

	val := AuthSettingsLogValue(s)
	assert.Equal(t, slog.KindGroup, val.Kind())
}

func TestBasicAuthSettingsLogValue(t *testing.T) {
	s := BasicAuthSettings{
		Username: "admin",
		Password: "secret",
	}

	val := BasicAuthSettingsLogValue(s)
	assert.Equal(t, slog.KindGroup, val.Kind())
}

func TestLogWithLogger_PostgresStore(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth:      AuthSettings{Type: AuthTypeNone},
		Store: StoreSettings{
			Driver:      StoreDriverPostgres,
			DataSource:  "s3://bucket/iconclass",
			PostgresDSN: "postgres://ic:secret@db:5432/iconclass",
			BaseDir:     "/var/lib/iconclass",
			S3Region:    "eu-west-1",
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.NotContains(t, output, "secret", "DSN password should be masked, not shown in plain text")
	for _, want := range []string{"store.postgres_dsn", "store.base_dir", "store.s3_region", "eu-west-1"} {
		assert.Contains(t, output, want)
	}
	assert.NotContains(t, output, "store.sqlite_path", "no sqlite path for the postgres driver")
}

func TestLogWithLogger_MemoryStore(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Transport: "stdio",
		Auth:      AuthSettings{Type: AuthTypeNone},
		Store:     StoreSettings{Driver: StoreDriverMemory, DataSource: "data", BaseDir: "/var/lib/iconclass"},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "store.driver", "'store.driver' in log output")
	assert.NotContains(t, output, "store.base_dir", "no base dir for the memory driver")
	assert.NotContains(t, output, "store.s3_region", "no s3 settings for a local data source")
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url with password", "postgres://ic:secret@db:5432/iconclass", "postgres://ic:xxxxx@db:5432/iconclass"},
		{"url without password", "nats://broker:4222", "nats://broker:4222"},
		{"key value", "host=db password=secret user=ic", "host=db password=xxxxx user=ic"},
		{"key value without password", "host=db user=ic", "host=db user=ic"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskDSN(tt.dsn))
		})
	}
}

func TestStoreSettingsLogValue(t *testing.T) {
	val := StoreSettingsLogValue(StoreSettings{
		Driver:      StoreDriverPostgres,
		PostgresDSN: "postgres://ic:secret@db/iconclass",
	})
	require.Equal(t, slog.KindGroup, val.Kind())
	assert.NotContains(t, val.String(), "secret", "DSN password should be masked")
}
