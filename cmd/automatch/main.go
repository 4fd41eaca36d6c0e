package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/adapters/database"
	"github.com/zatekoja/carematch/internal/adapters/events"
	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/internal/infrastructure/resilience"
	"github.com/zatekoja/carematch/pkg/config"
)

// automatch runs one pass over the pending backlog and exits. It is meant to be
// scheduled externally (cron, Kubernetes CronJob).
func main() {
	var budget time.Duration
	flag.DurationVar(&budget, "timeout", 5*time.Minute, "upper bound for the whole run")
	flag.Parse()

	if err := run(budget); err != nil {
		log.Error().Err(err).Msg("auto-match run failed")
		os.Exit(1)
	}
}

func run(budget time.Duration) error {

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-automatch", cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(flushCtx)
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	defer pgClient.Close()

	var eventBus providers.EventBus
	if redisClient, err := redis.NewClient(&cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; match events will not be published")
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	breaker := resilience.NewBreaker("postgres", cfg.Breaker)
	requestStore := database.NewGuardedPatientRequestRepository(database.NewPatientRequestAdapter(pgClient), breaker)
	providerStore := database.NewGuardedProviderRepository(database.NewProviderAdapter(pgClient), breaker)

	finder := services.NewNearbyProviderFinder(providerStore)
	matcher := services.NewRequestMatcher(requestStore, finder, services.NewMatchScorer(services.DefaultScoringWeights()), eventBus, metrics, cfg.Matching)
	scheduler := services.NewAutoMatchScheduler(requestStore, matcher, metrics, cfg.Matching)

	start := time.Now()
	matched, err := scheduler.RunAutoMatch(ctx)
	if err != nil {
		return fmt.Errorf("matched %d before failing: %w", matched, err)
	}
	log.Info().Int("matched", matched).Dur("elapsed", time.Since(start)).Msg("auto-match run complete")
	return nil
}
