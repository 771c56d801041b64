package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet.
// Defaults live in config, a flag only overrides when set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	RegisterStoreFlags(flags)

	flags.Int("concurrency", 0, "Maximum number of notations resolved in parallel")
	flags.Int("max-batch", 0, "Maximum number of notations per resolve call")
	flags.Int("walk-limit", 0, "Maximum number of records returned by a hierarchy walk")
	flags.Bool("metrics-enabled", false, "Serve Prometheus metrics on /metrics (SSE only)")
}

// RegisterStoreFlags registers the flags selecting the data source and store.
// They are shared by the server and the one-shot commands.
func RegisterStoreFlags(flags *pflag.FlagSet) {
	flags.StringP("store-driver", "s", "", "Store driver: memory, sqlite, postgres, or nats")
	flags.StringP("data-source", "d", "", "ICONCLASS data directory or s3://bucket/prefix")
	flags.String("base-dir", "", "Directory for the load lock, manifest and SQLite database")
	flags.String("sqlite-path", "", "SQLite database file (default <base-dir>/iconclass.sqlite)")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("nats-url", "", "NATS server URL")
	flags.String("nats-bucket-prefix", "", "Prefix of the NATS key-value buckets")
	flags.Int("cache-size", 0, "Entries kept in the read-through cache, 0 disables it")
	flags.Duration("load-timeout", 0, "How long a follower waits for the leader to load the store")
	flags.String("s3-region", "", "Region of an s3:// data source")
	flags.String("s3-endpoint", "", "Custom S3 endpoint, e.g. for MinIO")
	flags.Bool("s3-path-style", false, "Use path-style S3 addressing")
}
