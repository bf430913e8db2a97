// Package main provides a CLI tool that bootstraps the snapshot table from
// the provider's all-time NAV history.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/config"
	"github.com/vault-sentinel/internal/service"
	"github.com/vault-sentinel/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer postgres.Close()

	provider := adapter.NewVaultClient(&cfg.Provider)
	snapshotRepo := storage.NewSnapshotRepository(postgres.Pool())
	seedService := service.NewSeedService(provider, snapshotRepo)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	inserted, err := seedService.Seed(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("inserted", inserted).Msg("seed failed")
	}

	log.Info().
		Int("inserted", inserted).
		Dur("took", time.Since(start)).
		Msg("seed complete")
}
