package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/adapters/cache"
	"github.com/zatekoja/carematch/internal/adapters/database"
	"github.com/zatekoja/carematch/internal/adapters/events"
	"github.com/zatekoja/carematch/internal/adapters/search"
	"github.com/zatekoja/carematch/internal/api/handlers"
	"github.com/zatekoja/carematch/internal/api/middleware"
	"github.com/zatekoja/carematch/internal/api/routes"
	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/internal/infrastructure/resilience"
	"github.com/zatekoja/carematch/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.ForwardLogsToOTel(cfg.OTEL.ServiceName)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it the service runs uncached and publishes no events.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; running without cache and events")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	storeBreaker := resilience.NewBreaker("postgres", cfg.Breaker)
	requestStore := database.NewGuardedPatientRequestRepository(database.NewPatientRequestAdapter(pgClient), storeBreaker)
	guardedProviders := database.NewGuardedProviderRepository(database.NewProviderAdapter(pgClient), storeBreaker)

	var (
		cacheProvider   providers.CacheProvider
		eventBus        providers.EventBus
		providerStore   repositories.ProviderRepository = guardedProviders
		cachedProviders *database.CachedProviderAdapter
		cacheMiddleware *middleware.CacheMiddleware
	)
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		cachedProviders = database.NewCachedProviderAdapter(guardedProviders, cacheProvider, metrics, int(cfg.Cache.ProviderQueryTTL.Seconds()))
		providerStore = cachedProviders
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
	}

	// With Typesense enabled the index serves candidate lookups and is kept current on writes.
	var (
		providerIndex  repositories.ProviderIndex
		providerSource services.ProviderSource = providerStore
	)
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; matching reads from PostgreSQL")
		} else {
			if err := tsClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			adapter := search.NewTypesenseAdapter(tsClient)
			providerIndex = adapter
			providerSource = adapter
		}
	}

	finder := services.NewNearbyProviderFinder(providerSource)
	scorer := services.NewMatchScorer(services.DefaultScoringWeights())
	matcher := services.NewRequestMatcher(requestStore, finder, scorer, eventBus, metrics, cfg.Matching)
	scheduler := services.NewAutoMatchScheduler(requestStore, matcher, metrics, cfg.Matching)
	requestService := services.NewRequestService(requestStore, eventBus)
	statsService := services.NewRequestStatisticsService(requestStore)
	providerService := services.NewProviderService(providerStore, providerIndex, eventBus)

	var cacheInvalidation *services.CacheInvalidationService
	if cachedProviders != nil && eventBus != nil {
		cacheInvalidation = services.NewCacheInvalidationService(
			services.ProviderCacheInvalidators{cachedProviders, cacheMiddleware},
			cacheMiddleware,
			eventBus,
		)
		if err := cacheInvalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
			cacheInvalidation = nil
		}

		services.NewCacheWarmingService(cachedProviders).StartPeriodicWarming(ctx, cfg.Cache.WarmInterval)
	}

	if cfg.Matching.AutoMatchInterval > 0 {
		go scheduler.Start(ctx, cfg.Matching.AutoMatchInterval)
		log.Info().Dur("interval", cfg.Matching.AutoMatchInterval).Msg("in-process auto-match enabled")
	}

	healthChecks := map[string]handlers.Pinger{"postgres": pgClient}
	if redisClient != nil {
		healthChecks["redis"] = redisClient
	}

	router := routes.NewRouter(
		handlers.NewRequestHandler(requestService, statsService),
		handlers.NewMatchHandler(matcher, scheduler, requestService).WithAutoMatchBudget(cfg.Matching.AutoMatchBudget),
		handlers.NewProviderHandler(providerService, finder, cfg.Matching.SearchRadiusMiles),
		handlers.NewHealthHandler(healthChecks),
		providerStore,
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Matching.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if cacheInvalidation != nil {
		cacheInvalidation.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
