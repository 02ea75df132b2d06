package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"sonoweb/internal/config"
	"sonoweb/internal/core"
	"sonoweb/internal/history"
	"sonoweb/internal/logging"
	"sonoweb/internal/media"
	"sonoweb/internal/sonify"
	"sonoweb/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"media_backend", cfg.Media.Backend,
		"history_enabled", cfg.Database.Enabled(),
		"jobs_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// The history store is optional: without a database URL the app runs
	// with history disabled.
	var hist *history.Store
	if cfg.Database.Enabled() {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
		poolConfig.MinConns = int32(cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		hist = history.New(pool)
		if err := hist.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure history schema", "error", err)
			os.Exit(1)
		}

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
	} else {
		slog.Info("no database configured, history disabled")
	}

	store, err := newMediaStore(cfg)
	if err != nil {
		slog.Error("failed to create media store", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(store, hist, core.Options{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		JobTimeout:    cfg.Upload.Timeout,
		CacheSize:     cfg.Media.CacheSize,
		Sound: core.SoundDefaults{
			SampleRate: cfg.Sound.SampleRate,
			TimeBase:   cfg.Sound.TimeBase,
			MinFreq:    cfg.Sound.MinFreq,
			FreqSpan:   cfg.Sound.FreqSpan,
			FixedFreq:  cfg.Sound.FixedFreq,
			Volume:     cfg.Sound.Volume,
			Waveform:   sonify.Waveform(cfg.Sound.Waveform),
		},
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, store, cfg)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	if cfg.Cleanup.Enabled {
		cleaner := media.NewCleaner(store, media.CleanupConfig{
			Retention: cfg.Cleanup.Retention,
			Interval:  cfg.Cleanup.Interval,
		})
		go cleaner.Run(jobCtx)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running sonifications finish (with timeout)
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for jobs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("jobs did not complete in time", "error", err)
			} else {
				slog.Info("all jobs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newMediaStore builds the configured media backend.
func newMediaStore(cfg *config.Config) (media.Store, error) {
	switch cfg.Media.Backend {
	case "s3":
		return media.NewS3Store(media.S3Config{
			Endpoint:  cfg.Media.S3Endpoint,
			Region:    cfg.Media.S3Region,
			AccessKey: cfg.Media.S3AccessKey,
			SecretKey: cfg.Media.S3SecretKey,
			Bucket:    cfg.Media.S3Bucket,
			UseSSL:    cfg.Media.S3UseSSL,
		})
	default:
		return media.NewFSStore(cfg.Media.Dir)
	}
}
