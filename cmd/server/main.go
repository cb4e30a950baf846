package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/config"
	_ "github.com/JonMunkholm/flatfile/internal/formats" // Register all formats
	"github.com/JonMunkholm/flatfile/internal/logging"
	"github.com/JonMunkholm/flatfile/internal/metrics"
	"github.com/JonMunkholm/flatfile/internal/s3source"
	"github.com/JonMunkholm/flatfile/internal/store"
	"github.com/JonMunkholm/flatfile/internal/web"
)

func main() {
	// Load .env file if it exists (overwrites existing env vars)
	loaded, err := config.LoadDotenv()
	switch {
	case err != nil:
		slog.Error("failed to read .env file", logging.Error(err))
		os.Exit(1)
	case loaded:
		slog.Info("loaded .env file (overwriting existing env vars)")
	default:
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", logging.Error(err))
		os.Exit(1)
	}

	log := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"object_storage", cfg.Storage.Enabled(),
		"decode_max_concurrent", cfg.Decode.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	log.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := web.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Limiter: web.NewDecodeLimiter(cfg.Decode.MaxConcurrent, cfg.Decode.MaxWaitTime),
	}

	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, store.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			RetryAttempts:   cfg.Database.ConnectRetries + 1,
			RetryInterval:   cfg.Database.ConnectRetryInterval,
		}, log.With(logging.Component("store")))
		if err != nil {
			log.Error("failed to connect to database", logging.Error(err))
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx, pool, log.With(logging.Component("migrate"))); err != nil {
				log.Error("failed to migrate database", logging.Error(err))
				os.Exit(1)
			}
		}

		importer := store.NewImporter(pool, cfg.Decode.BatchSize, log.With(logging.Component("import")))
		opts.Importer = importer
		opts.Runs = importer.Runs()
		opts.Health = store.Healthcheck(pool)
		log.Info("connected to database")
	} else {
		log.Warn("DATABASE_URL not set, persisting decoded rows is disabled")
	}

	if cfg.Storage.Enabled() {
		objects, err := s3source.New(ctx, s3source.Config{
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Endpoint:        cfg.Storage.Endpoint,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			DefaultBucket:   cfg.Storage.Bucket,
		})
		if err != nil {
			log.Error("failed to configure object storage", logging.Error(err))
			os.Exit(1)
		}
		opts.Objects = objects
	}

	log.Info("formats registered", "count", catalog.Count(), "keys", catalog.Keys())

	server := web.NewServer(ctx, opts)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", logging.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		log.Error("server stopped", logging.Error(err))
		os.Exit(1)
	}
	<-shutdownDone
	log.Info("server stopped")
}
