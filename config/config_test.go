package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SERVER_HOST", "SERVER_PORT", "PORT", "SERVER_SHUTDOWN_TIMEOUT", "CORS_ORIGINS",
		"STORE_DRIVER", "STORE_DSN", "DATABASE_URL",
		"REDIS_ADDR", "REDIS_LOCK_TTL",
		"SNAPSHOT_DRIVER", "SNAPSHOT_INTERVAL", "SNAPSHOT_DIR", "SNAPSHOT_S3_BUCKET",
		"LOG_LEVEL", "LOG_FORMAT", "SEED_FILE",
	} {
		t.Setenv(name, "")
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Store:    StoreConfig{Driver: "memory"},
		Snapshot: SnapshotConfig{Driver: "none"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, "memory")
	}
	if cfg.Snapshot.Driver != "none" {
		t.Errorf("Snapshot.Driver = %q, want %q", cfg.Snapshot.Driver, "none")
	}
	if cfg.Redis.LockTTL != 10*time.Second {
		t.Errorf("Redis.LockTTL = %v, want %v", cfg.Redis.LockTTL, 10*time.Second)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", "./fleet.db")
	t.Setenv("SNAPSHOT_INTERVAL", "15m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Store.DSN != "./fleet.db" {
		t.Errorf("Store.DSN = %q, want %q", cfg.Store.DSN, "./fleet.db")
	}
	if cfg.Snapshot.Interval != 15*time.Minute {
		t.Errorf("Snapshot.Interval = %v, want %v", cfg.Snapshot.Interval, 15*time.Minute)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.DSN != "postgres://localhost/fleet" {
		t.Errorf("Store.DSN = %q, want %q", cfg.Store.DSN, "postgres://localhost/fleet")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_LOCK_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for bad duration")
	}
}

func TestValidate_SQLDriverNeedsDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "STORE_DSN") {
		t.Fatalf("Validate() = %v, want STORE_DSN error", err)
	}
}

func TestValidate_UnknownDrivers(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "oracle"
	cfg.Snapshot.Driver = "ftp"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "STORE_DRIVER") || !strings.Contains(err.Error(), "SNAPSHOT_DRIVER") {
		t.Errorf("error should mention both drivers: %v", err)
	}
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Snapshot = SnapshotConfig{Driver: "s3", Interval: time.Hour}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SNAPSHOT_S3_BUCKET") {
		t.Fatalf("Validate() = %v, want SNAPSHOT_S3_BUCKET error", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Fatalf("Validate() = %v, want LOG_LEVEL error", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SERVER_PORT=7070\nLOG_FORMAT=json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7070)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 9000, ":9000"},
		{"::1", 8080, "[::1]:8080"},
	}
	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
