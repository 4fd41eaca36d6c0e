package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/adapters/database"
	"github.com/zatekoja/carematch/internal/adapters/search"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Environment, cfg.LogLevel)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Typesense client")
	}

	store := database.NewProviderAdapter(pgClient)
	index := search.NewTypesenseAdapter(tsClient)

	for {
		if err := indexOnce(ctx, tsClient, store, index, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

// indexOnce upserts every active provider and removes index entries the store no longer lists as active
func indexOnce(ctx context.Context, tsClient *typesense.Client, store repositories.ProviderRepository, index repositories.ProviderIndex, reset bool) error {
	if reset {
		if err := tsClient.DropSchema(ctx); err != nil {
			return err
		}
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	active, err := store.QueryActive(ctx, repositories.ProviderFilter{})
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	keep := make(map[string]struct{}, len(active))
	indexed, failed := 0, 0
	for _, provider := range active {
		keep[provider.ID] = struct{}{}
		if !provider.HasLocation() {
			continue
		}
		if err := index.Index(ctx, provider); err != nil {
			failed++
			log.Warn().Err(err).Str("provider_id", provider.ID).Msg("failed to index provider")
			continue
		}
		indexed++
	}

	removed := 0
	if !reset {
		existing, err := index.QueryActive(ctx, repositories.ProviderFilter{})
		if err != nil {
			return fmt.Errorf("failed to list indexed providers: %w", err)
		}
		for _, doc := range existing {
			if _, ok := keep[doc.ID]; ok {
				continue
			}
			if err := index.Delete(ctx, doc.ID); err != nil {
				log.Warn().Err(err).Str("provider_id", doc.ID).Msg("failed to remove stale provider")
				continue
			}
			removed++
		}
	}

	log.Info().Int("indexed", indexed).Int("failed", failed).Int("removed", removed).Msg("providers reindexed")
	return nil
}
