// Package main provides the API server entry point for the vault monitor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/api"
	"github.com/vault-sentinel/internal/config"
	"github.com/vault-sentinel/internal/service"
	"github.com/vault-sentinel/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(&cfg.Logging)
	log.Info().Str("level", cfg.Logging.Level).Msg("logging initialized")

	// Connect to Postgres
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis is optional; without it range reads just skip the cache.
	var cacheService *storage.CacheService
	if cfg.Database.Redis.Enabled() {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redis.Close()
		cacheService = storage.NewCacheService(redis, cfg.Database.Redis.CacheTTL)
		log.Info().Msg("snapshot cache enabled")
	} else {
		log.Info().Msg("no Redis configured, snapshot cache disabled")
	}

	log.Info().Msg("database connections established")

	provider := adapter.NewVaultClient(&cfg.Provider)
	snapshotRepo := storage.NewSnapshotRepository(postgres.Pool())

	backfillService := service.NewBackfillService(snapshotRepo)
	collectService := service.NewCollectService(provider, snapshotRepo, cacheService, backfillService)
	queryService := service.NewQueryService(snapshotRepo, provider, cacheService)

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		CollectSecret:     cfg.Auth.CollectSecret,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, collectService, queryService)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	log.Info().
		Str("host", cfg.Server.Host).
		Str("port", cfg.Server.Port).
		Msg("server started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func setupLogging(cfg *config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
