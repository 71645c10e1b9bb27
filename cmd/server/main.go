package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reel/internal/server/api"
	"reel/internal/server/config"
	"reel/internal/server/database"
	"reel/internal/server/events"
	"reel/internal/server/service"
	"reel/internal/server/storage"
	"reel/internal/server/token"
	"reel/internal/server/transcode"

	"github.com/rs/zerolog"
)

func main() {
	// Structured logging
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	logger.Info().
		Str("port", cfg.Port).
		Str("storage_backend", cfg.StorageBackend).
		Str("geometry", cfg.Geometry().String()).
		Int64("max_file_size", cfg.MaxFileSize).
		Dur("default_share_expiry", cfg.DefaultShareExpiry()).
		Msg("configuration loaded")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server exited cleanly")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	logger.Info().Msg("database migrations complete")

	// Initialize storage
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Events
	var publisher interface {
		service.Publisher
		Close()
	} = events.Nop{}
	if cfg.NATSURL != "" {
		nats, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			return err
		}
		publisher = nats
		logger.Info().Str("prefix", cfg.NATSSubjectPrefix).Msg("publishing events to nats")
	}
	defer publisher.Close()

	// Initialize repository and services
	repo := database.NewRepository(db)
	ffmpeg := transcode.New(transcode.Options{
		FFmpegPath:    cfg.FFmpegPath,
		FFprobePath:   cfg.FFprobePath,
		MaxConcurrent: cfg.MaxConcurrentTranscodes,
	}, logger)

	videos := service.NewVideoService(repo, store, ffmpeg, publisher, service.VideoOptions{
		Geometry:       cfg.Geometry(),
		StrictGeometry: cfg.StrictGeometry,
		MaxFileSize:    cfg.MaxFileSize,
		MaxDuration:    cfg.MaxDurationSeconds,
		WorkDir:        cfg.WorkDir,
	}, logger)

	shares := service.NewShareService(repo, store, token.NewULIDGenerator(), publisher, service.ShareConfig{
		DefaultExpiry: cfg.DefaultShareExpiry(),
		MaxExpiry:     cfg.MaxShareExpiry(),
		TokenAttempts: cfg.ShareTokenAttempts,
		BaseURL:       cfg.BaseURL,
	}, logger)

	// Start cleanup service
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	cleanup := storage.NewCleanupService(repo, store, cfg.CleanupInterval, cfg.OrphanGrace, logger)
	cleanup.Start(cleanupCtx)

	// Setup HTTP router
	handler := api.NewHandler(videos, shares, db, logger)
	e := api.SetupRouter(handler, cfg, logger)

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("base_url", cfg.BaseURL).Msg("starting server")
		if err := e.Start(cfg.Addr()); err != nil {
			logger.Info().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop cleanup service
	cleanupCancel()
	cleanup.Wait()

	return nil
}
