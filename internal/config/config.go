// Package config loads the server configuration from defaults, an optional
// YAML file, an optional .env file and APP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load. The rest of
// the name maps to a config key with "_" as separator: APP_STORE_PATH sets
// store.path.
const EnvPrefix = "APP_"

// EnvConfigFile names the optional YAML config file.
const EnvConfigFile = "APP_CONFIG_FILE"

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultStorePath       = "products.csv"
	DefaultStoreHeader     = "name,price,quantity"
	DefaultStoreAtomic     = true
	DefaultCatalogDriver   = DriverSQLite
	DefaultCatalogPath     = "products.db"
	DefaultAuthMode        = "none"
)

// Catalog drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Shutdown ShutdownConfig `koanf:"shutdown"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Store    StoreConfig    `koanf:"store"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `koanf:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ShutdownConfig holds graceful shutdown settings.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// StoreConfig configures the flat-file record store.
type StoreConfig struct {
	Path   string `koanf:"path"`
	Header string `koanf:"header"`
	// Atomic selects temp-file-and-rename rewrites.
	Atomic bool `koanf:"atomic"`
}

// CatalogConfig configures the id-addressed product catalog.
type CatalogConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	// Mode is one of none, basic, apikey.
	Mode string `koanf:"mode"`
	// Users is "user1:bcrypt_hash,user2:bcrypt_hash".
	Users string `koanf:"users"`
	// Keys is "key1:name1,key2:name2".
	Keys string `koanf:"keys"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrEmptyStorePath         = errors.New("store path must be set")
	ErrInvalidStoreHeader     = errors.New("store header must be a single non-empty line")
	ErrInvalidCatalogDriver   = errors.New("catalog driver must be one of: sqlite, memory")
	ErrEmptyCatalogPath       = errors.New("catalog path must be set for the sqlite driver")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, basic, apikey")
	ErrInvalidBasicAuthConfig = errors.New("auth users must be set when auth mode is basic")
	ErrInvalidAPIKeyConfig    = errors.New("auth keys must be set when auth mode is apikey")
)

func defaults() map[string]any {
	return map[string]any{
		"server.port":      DefaultServerPort,
		"log.level":        DefaultLogLevel,
		"shutdown.timeout": DefaultShutdownTimeout,
		"metrics.enabled":  DefaultMetricsEnabled,
		"store.path":       DefaultStorePath,
		"store.header":     DefaultStoreHeader,
		"store.atomic":     DefaultStoreAtomic,
		"catalog.driver":   DefaultCatalogDriver,
		"catalog.path":     DefaultCatalogPath,
		"auth.mode":        DefaultAuthMode,
	}
}

// Load builds the configuration. Later sources win: defaults, the YAML file
// named by APP_CONFIG_FILE, ./.env, then the process environment.
func Load() (*Config, error) {
	return LoadFiles(os.Getenv(EnvConfigFile), DefaultEnvFile)
}

// LoadFiles is Load with explicit file locations. An empty configFile skips
// the YAML layer; a missing envFile is ignored.
func LoadFiles(configFile, envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv := make(map[string]any, len(values))
			for key, value := range values {
				if name := envKey(key); name != "" {
					dotenv[name] = value
				}
			}
			if err := k.Load(confmap.Provider(dotenv, "."), nil); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envFile, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// envKey maps APP_STORE_PATH to store.path. Names without the prefix and
// the config file pointer itself map to "" and are dropped.
func envKey(name string) string {
	if !strings.HasPrefix(name, EnvPrefix) || name == EnvConfigFile {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidServerPort
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	if c.Shutdown.Timeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return ErrEmptyStorePath
	}
	if strings.TrimSpace(c.Store.Header) == "" || strings.ContainsAny(c.Store.Header, "\r\n") {
		return ErrInvalidStoreHeader
	}

	switch c.Catalog.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Catalog.Path) == "" {
			return ErrEmptyCatalogPath
		}
	case DriverMemory:
	default:
		return ErrInvalidCatalogDriver
	}

	return c.validateAuth()
}

func (c *Config) validateAuth() error {
	switch c.Auth.Mode {
	case "", "none":
		return nil
	case "basic":
		if strings.TrimSpace(c.Auth.Users) == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "apikey":
		if strings.TrimSpace(c.Auth.Keys) == "" {
			return ErrInvalidAPIKeyConfig
		}
	default:
		return ErrInvalidAuthMode
	}
	return nil
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
