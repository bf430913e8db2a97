// Package main provides a CLI tool that recomputes ATH, drawdown and every
// score across all stored snapshots. Run it after a scoring rule changes.
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
	updated, err := seedService.Recompute(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("updated", updated).Msg("recompute failed")
	}

	log.Info().
		Int("updated", updated).
		Dur("took", time.Since(start)).
		Msg("recompute complete")
}
