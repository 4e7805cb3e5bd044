// Package main is the entry point for the product store API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/productstore/internal/auth"
	"github.com/vyrodovalexey/productstore/internal/config"
	"github.com/vyrodovalexey/productstore/internal/importer"
	"github.com/vyrodovalexey/productstore/internal/server"
	"github.com/vyrodovalexey/productstore/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.Log.Level)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Duration("shutdown_timeout", cfg.Shutdown.Timeout),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.String("store_path", cfg.Store.Path),
		zap.Bool("store_atomic", cfg.Store.Atomic),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("auth_mode", cfg.Auth.Mode),
	)

	deps, cleanup, err := buildDependencies(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return 1
	}
	defer cleanup()

	srv := server.New(cfg, logger, deps)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// buildDependencies opens the stores and the authenticator named by cfg. The
// returned cleanup closes whatever was opened.
func buildDependencies(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (server.Dependencies, func(), error) {
	noop := func() {}

	records, err := store.NewFileStore(cfg.Store.Path,
		store.WithHeader(cfg.Store.Header),
		store.WithAtomicWrites(cfg.Store.Atomic),
		store.WithLogger(logger),
	)
	switch {
	case records == nil:
		return server.Dependencies{}, noop, fmt.Errorf("creating record store: %w", err)
	case err != nil:
		// Degraded: the file could not be prepared yet, every operation
		// retries and reports its own I/O error.
		logger.Warn("record store degraded", zap.String("path", cfg.Store.Path), zap.Error(err))
	}

	catalog, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return server.Dependencies{}, noop, err
	}

	authenticator, err := createAuthenticator(cfg, logger)
	if err != nil {
		closeCatalog()
		return server.Dependencies{}, noop, err
	}

	deps := server.Dependencies{
		Records:       records,
		Importer:      importer.New(records, logger),
		Catalog:       catalog,
		Authenticator: authenticator,
		Ready: func(ctx context.Context) error {
			_, err := records.ListAll(ctx)
			return err
		},
	}

	return deps, closeCatalog, nil
}

// openCatalog opens the id-addressed product backend for the configured driver.
func openCatalog(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (store.CatalogStore, func(), error) {
	switch cfg.Catalog.Driver {
	case config.DriverMemory:
		logger.Info("catalog backend: memory")
		return store.NewMemoryStore(), func() {}, nil
	case config.DriverSQLite:
		logger.Info("catalog backend: sqlite", zap.String("path", cfg.Catalog.Path))
		db, err := store.OpenSQLStore(ctx, cfg.Catalog.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening catalog: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Error("closing catalog", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog driver: %s", cfg.Catalog.Driver)
	}
}

// createAuthenticator creates an authenticator based on the config auth mode.
func createAuthenticator(cfg *config.Config, logger *zap.Logger) (auth.Authenticator, error) {
	authenticator, err := auth.New(auth.Method(cfg.Auth.Mode), cfg.Auth.Users, cfg.Auth.Keys)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	if authenticator == nil {
		logger.Info("authentication disabled")
	} else {
		logger.Info("authentication enabled", zap.String("mode", string(authenticator.Method())))
	}

	return authenticator, nil
}
