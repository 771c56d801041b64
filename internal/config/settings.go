package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by the server.
const EnvPrefix = "ICONCLASS_MCP"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Store driver constants
const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverNATS     = "nats"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// StoreSettings configuration of the data source and the store serving it
type StoreSettings struct {
	Driver           string        `mapstructure:"driver"`
	DataSource       string        `mapstructure:"data_source"` // directory or s3://bucket/prefix
	BaseDir          string        `mapstructure:"base_dir"`
	SQLitePath       string        `mapstructure:"sqlite_path"`
	PostgresDSN      string        `mapstructure:"postgres_dsn"`
	NATSURL          string        `mapstructure:"nats_url"`
	NATSBucketPrefix string        `mapstructure:"nats_bucket_prefix"`
	CacheSize        int           `mapstructure:"cache_size"`
	LoadTimeout      time.Duration `mapstructure:"load_timeout"`
	S3Region         string        `mapstructure:"s3_region"`
	S3Endpoint       string        `mapstructure:"s3_endpoint"`
	S3PathStyle      bool          `mapstructure:"s3_path_style"`
}

// ResolverSettings configuration of notation resolution
type ResolverSettings struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxBatch    int `mapstructure:"max_batch"`
	WalkLimit   int `mapstructure:"walk_limit"`
}

// MetricsSettings configuration of the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// Settings application settings
type Settings struct {
	Transport string           `mapstructure:"transport"`
	Host      string           `mapstructure:"host"`
	Port      int              `mapstructure:"port"`
	Auth      AuthSettings     `mapstructure:"auth"`
	Store     StoreSettings    `mapstructure:"store"`
	Resolver  ResolverSettings `mapstructure:"resolver"`
	Metrics   MetricsSettings  `mapstructure:"metrics"`
}

// keyFlags maps nested setting keys to their CLI flag names.
var keyFlags = [][2]string{
	{"transport", "transport"},
	{"host", "host"},
	{"port", "port"},
	{"auth.type", "auth-type"},
	{"auth.basic.username", "auth-basic-username"},
	{"auth.basic.password", "auth-basic-password"},
	{"auth.api_keys", "auth-api-keys"},
	{"store.driver", "store-driver"},
	{"store.data_source", "data-source"},
	{"store.base_dir", "base-dir"},
	{"store.sqlite_path", "sqlite-path"},
	{"store.postgres_dsn", "postgres-dsn"},
	{"store.nats_url", "nats-url"},
	{"store.nats_bucket_prefix", "nats-bucket-prefix"},
	{"store.cache_size", "cache-size"},
	{"store.load_timeout", "load-timeout"},
	{"store.s3_region", "s3-region"},
	{"store.s3_endpoint", "s3-endpoint"},
	{"store.s3_path_style", "s3-path-style"},
	{"resolver.concurrency", "concurrency"},
	{"resolver.max_batch", "max-batch"},
	{"resolver.walk_limit", "walk-limit"},
	{"metrics.enabled", "metrics-enabled"},
}

// envName returns the environment variable bound to a nested key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.data_source", "data")
	v.SetDefault("store.base_dir", defaultBaseDir())
	v.SetDefault("store.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("store.nats_bucket_prefix", "iconclass")
	v.SetDefault("store.cache_size", 4096)
	v.SetDefault("store.load_timeout", 5*time.Minute)
	v.SetDefault("store.s3_region", "us-east-1")

	v.SetDefault("resolver.concurrency", 8)
	v.SetDefault("resolver.max_batch", 500)
	v.SetDefault("resolver.walk_limit", 1000)

	v.SetDefault("metrics.enabled", true)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	for _, kf := range keyFlags {
		_ = v.BindEnv(kf[0], envName(kf[0]))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for _, kf := range keyFlags {
			if f := flags.Lookup(kf[1]); f != nil {
				_ = v.BindPFlag(kf[0], f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(envName("auth.api_keys"))
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.Store.Driver = strings.ToLower(strings.TrimSpace(settings.Store.Driver))
	settings.Store.BaseDir = expandHomeDir(settings.Store.BaseDir)
	if !strings.HasPrefix(settings.Store.DataSource, "s3://") {
		settings.Store.DataSource = expandHomeDir(settings.Store.DataSource)
	}
	if settings.Store.SQLitePath == "" {
		settings.Store.SQLitePath = filepath.Join(settings.Store.BaseDir, "iconclass.sqlite")
	}
	settings.Store.SQLitePath = expandHomeDir(settings.Store.SQLitePath)

	return &settings, nil
}

// defaultBaseDir returns the default directory for lock, manifest and SQLite files
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".iconclass-mcp"
	}
	return filepath.Join(home, ".iconclass-mcp")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config,
// an unusable store configuration or non-positive limits.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}
	if err := validateStoreSettings(&s.Store); err != nil {
		return err
	}
	return validateResolverSettings(&s.Resolver)
}

func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

// validateStoreSettings validates the store configuration
func validateStoreSettings(st *StoreSettings) error {
	if strings.TrimSpace(st.DataSource) == "" {
		return errors.New("data-source cannot be empty")
	}

	switch st.Driver {
	case StoreDriverMemory:
		// nothing else is needed
	case StoreDriverSQLite:
		if st.SQLitePath == "" {
			return errors.New("store-driver 'sqlite' requires sqlite-path")
		}
	case StoreDriverPostgres:
		if st.PostgresDSN == "" {
			return errors.New("store-driver 'postgres' requires postgres-dsn")
		}
	case StoreDriverNATS:
		if st.NATSURL == "" {
			return errors.New("store-driver 'nats' requires nats-url")
		}
		if st.NATSBucketPrefix == "" {
			return errors.New("store-driver 'nats' requires nats-bucket-prefix")
		}
	default:
		return fmt.Errorf("unknown store-driver: %s", st.Driver)
	}

	if st.Driver != StoreDriverMemory {
		if st.BaseDir == "" {
			return errors.New("base-dir cannot be empty")
		}
		if st.LoadTimeout <= 0 {
			return errors.New("load-timeout must be positive")
		}
	}

	if st.CacheSize < 0 {
		return errors.New("cache-size cannot be negative")
	}
	return nil
}

// validateResolverSettings validates the resolver limits
func validateResolverSettings(r *ResolverSettings) error {
	if r.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if r.MaxBatch <= 0 {
		return errors.New("max-batch must be positive")
	}
	if r.WalkLimit <= 0 {
		return errors.New("walk-limit must be positive")
	}
	return nil
}
