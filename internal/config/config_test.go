package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv isolates a test from APP_* variables set in the outer environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFiles_Defaults(t *testing.T) {
	// Arrange
	clearEnv(t)

	// Act
	cfg, err := LoadFiles("", "")

	// Assert
	if err != nil {
		t.Fatalf("LoadFiles() unexpected error: %v", err)
	}
	want := Config{
		Server:   ServerConfig{Port: DefaultServerPort},
		Log:      LogConfig{Level: DefaultLogLevel},
		Shutdown: ShutdownConfig{Timeout: DefaultShutdownTimeout},
		Metrics:  MetricsConfig{Enabled: true},
		Store:    StoreConfig{Path: DefaultStorePath, Header: DefaultStoreHeader, Atomic: true},
		Catalog:  CatalogConfig{Driver: DriverSQLite, Path: DefaultCatalogPath},
		Auth:     AuthConfig{Mode: DefaultAuthMode},
	}
	if *cfg != want {
		t.Errorf("LoadFiles() = %+v, want %+v", *cfg, want)
	}
}

func TestLoadFiles_EnvironmentVariables(t *testing.T) {
	// Arrange
	clearEnv(t)
	t.Setenv("APP_SERVER_PORT", "9000")
	t.Setenv("APP_LOG_LEVEL", "debug")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("APP_METRICS_ENABLED", "false")
	t.Setenv("APP_STORE_PATH", "/data/records.csv")
	t.Setenv("APP_STORE_HEADER", "nome,preco,estoque")
	t.Setenv("APP_STORE_ATOMIC", "false")
	t.Setenv("APP_CATALOG_DRIVER", "memory")
	t.Setenv("APP_AUTH_MODE", "apikey")
	t.Setenv("APP_AUTH_KEYS", "k1:cli")

	// Act
	cfg, err := LoadFiles("", "")

	// Assert
	if err != nil {
		t.Fatalf("LoadFiles() unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Shutdown.Timeout != 5*time.Second {
		t.Errorf("Shutdown.Timeout = %v, want 5s", cfg.Shutdown.Timeout)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
	if cfg.Store.Path != "/data/records.csv" || cfg.Store.Header != "nome,preco,estoque" || cfg.Store.Atomic {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Catalog.Driver != DriverMemory {
		t.Errorf("Catalog.Driver = %s, want memory", cfg.Catalog.Driver)
	}
	if cfg.Auth.Mode != "apikey" || cfg.Auth.Keys != "k1:cli" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadFiles_Precedence(t *testing.T) {
	// Arrange - YAML sets three keys, .env overrides two, the environment one
	clearEnv(t)
	yamlPath := writeTemp(t, "config.yaml", "server:\n  port: 7000\nlog:\n  level: warn\nstore:\n  path: yaml.csv\n")
	envPath := writeTemp(t, ".env", "APP_LOG_LEVEL=error\nAPP_STORE_PATH=dotenv.csv\nUNRELATED=1\n")
	t.Setenv("APP_STORE_PATH", "env.csv")

	// Act
	cfg, err := LoadFiles(yamlPath, envPath)

	// Assert
	if err != nil {
		t.Fatalf("LoadFiles() unexpected error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 from YAML", cfg.Server.Port)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %s, want error from .env", cfg.Log.Level)
	}
	if cfg.Store.Path != "env.csv" {
		t.Errorf("Store.Path = %s, want env.csv from environment", cfg.Store.Path)
	}
}

func TestLoadFiles_MissingEnvFileIgnored(t *testing.T) {
	clearEnv(t)

	_, err := LoadFiles("", filepath.Join(t.TempDir(), ".env"))

	if err != nil {
		t.Errorf("LoadFiles() unexpected error: %v", err)
	}
}

func TestLoadFiles_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadFiles(filepath.Join(t.TempDir(), "missing.yaml"), "")

	if err == nil {
		t.Error("LoadFiles() expected error for missing config file")
	}
}

func TestLoad_UsesConfigFileVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, writeTemp(t, "config.yaml", "catalog:\n  driver: memory\n"))
	t.Chdir(t.TempDir())

	cfg, err := Load()

	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Catalog.Driver != DriverMemory {
		t.Errorf("Catalog.Driver = %s, want memory", cfg.Catalog.Driver)
	}
}

func TestLoadFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{name: "port out of range", env: map[string]string{"APP_SERVER_PORT": "70000"}, wantErr: ErrInvalidServerPort},
		{name: "bad log level", env: map[string]string{"APP_LOG_LEVEL": "trace"}, wantErr: ErrInvalidLogLevel},
		{name: "zero shutdown timeout", env: map[string]string{"APP_SHUTDOWN_TIMEOUT": "0s"}, wantErr: ErrInvalidShutdownTimeout},
		{name: "blank store path", env: map[string]string{"APP_STORE_PATH": "  "}, wantErr: ErrEmptyStorePath},
		{name: "unknown driver", env: map[string]string{"APP_CATALOG_DRIVER": "postgres"}, wantErr: ErrInvalidCatalogDriver},
		{name: "unknown auth mode", env: map[string]string{"APP_AUTH_MODE": "oidc"}, wantErr: ErrInvalidAuthMode},
		{name: "basic without users", env: map[string]string{"APP_AUTH_MODE": "basic"}, wantErr: ErrInvalidBasicAuthConfig},
		{name: "apikey without keys", env: map[string]string{"APP_AUTH_MODE": "apikey"}, wantErr: ErrInvalidAPIKeyConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			// Act
			_, err := LoadFiles("", "")

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFiles() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFiles_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "APP_SERVER_PORT", "http"},
		{"bad duration", "APP_SHUTDOWN_TIMEOUT", "soon"},
		{"bad bool", "APP_METRICS_ENABLED", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFiles("", ""); err == nil {
				t.Errorf("LoadFiles() expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Log:      LogConfig{Level: "info"},
			Shutdown: ShutdownConfig{Timeout: time.Second},
			Store:    StoreConfig{Path: "p.csv", Header: "name,price,quantity"},
			Catalog:  CatalogConfig{Driver: DriverSQLite, Path: "p.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty auth mode is none", mutate: func(c *Config) { c.Auth.Mode = "" }},
		{name: "memory driver needs no path", mutate: func(c *Config) { c.Catalog = CatalogConfig{Driver: DriverMemory} }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Catalog.Path = "" }, wantErr: ErrEmptyCatalogPath},
		{name: "multi-line header", mutate: func(c *Config) { c.Store.Header = "a\nb" }, wantErr: ErrInvalidStoreHeader},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: ErrInvalidServerPort},
		{name: "basic with users", mutate: func(c *Config) { c.Auth = AuthConfig{Mode: "basic", Users: "a:h"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 3000}}

	if got := cfg.Address(); got != ":3000" {
		t.Errorf("Address() = %s, want :3000", got)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"APP_STORE_PATH", "store.path"},
		{"APP_SERVER_PORT", "server.port"},
		{"APP_CONFIG_FILE", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
