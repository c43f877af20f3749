// Package config loads server configuration from environment variables,
// optionally seeded from a .env file, and validates it on startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Snapshot SnapshotConfig
	Logging  LoggingConfig
	Seed     SeedConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, sqlite-pure, postgres
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	DSN string `env:"STORE_DSN" envAlt:"DATABASE_URL"`
}

// RedisConfig enables cross-process car locks when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" default:"0"`
	LockTTL  time.Duration `env:"REDIS_LOCK_TTL" default:"10s"`
}

// SnapshotConfig controls periodic snapshot publication.
type SnapshotConfig struct {
	// Driver is one of: none, file, s3
	Driver   string        `env:"SNAPSHOT_DRIVER" default:"none"`
	Interval time.Duration `env:"SNAPSHOT_INTERVAL" default:"1h"`
	Dir      string        `env:"SNAPSHOT_DIR" default:"./snapshots"`

	S3Bucket    string `env:"SNAPSHOT_S3_BUCKET"`
	S3Region    string `env:"SNAPSHOT_S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	S3Endpoint  string `env:"SNAPSHOT_S3_ENDPOINT"`
	S3Prefix    string `env:"SNAPSHOT_S3_PREFIX" default:"snapshots"`
	S3PathStyle bool   `env:"SNAPSHOT_S3_PATH_STYLE" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SeedConfig names a fleet document loaded at startup.
type SeedConfig struct {
	File string `env:"SEED_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
