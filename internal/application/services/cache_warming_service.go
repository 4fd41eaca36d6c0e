package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ProviderCacheWarmer preloads provider entries into the cache
type ProviderCacheWarmer interface {
	WarmProviders(ctx context.Context) (int, error)
}

// CacheWarmingService keeps frequently read provider data hot in the cache
type CacheWarmingService struct {
	warmer ProviderCacheWarmer
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(warmer ProviderCacheWarmer) *CacheWarmingService {
	return &CacheWarmingService{warmer: warmer}
}

// WarmCache caches every active provider
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	count, err := s.warmer.WarmProviders(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("providers", count).Msg("provider cache warmed")
	return nil
}

// StartPeriodicWarming warms once, then again on every tick until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
