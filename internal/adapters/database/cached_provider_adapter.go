package database

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
)

// CachedProviderAdapter wraps a ProviderRepository with a read-through cache
type CachedProviderAdapter struct {
	adapter repositories.ProviderRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
	ttl     int
}

// NewCachedProviderAdapter creates a new cached provider adapter. ttlSeconds applies to both keyspaces.
func NewCachedProviderAdapter(adapter repositories.ProviderRepository, cache providers.CacheProvider, metrics *observability.Metrics, ttlSeconds int) *CachedProviderAdapter {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &CachedProviderAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
		ttl:     ttlSeconds,
	}
}

var _ repositories.ProviderRepository = (*CachedProviderAdapter)(nil)

const (
	providerKeyspace      = "provider"
	providerQueryKeyspace = "providers:active"
)

// ProviderCacheKey returns the cache key for a single provider
func ProviderCacheKey(id string) string {
	return fmt.Sprintf("%s:%s", providerKeyspace, id)
}

// ProviderQueryCachePattern matches every cached QueryActive result
const ProviderQueryCachePattern = providerQueryKeyspace + ":*"

func providerQueryCacheKey(filter repositories.ProviderFilter) (string, error) {
	data, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return fmt.Sprintf("%s:%s", providerQueryKeyspace, hex.EncodeToString(sum[:])), nil
}

// Create creates a provider and invalidates cached queries
func (a *CachedProviderAdapter) Create(ctx context.Context, provider *entities.Provider) error {
	if err := a.adapter.Create(ctx, provider); err != nil {
		return err
	}
	a.invalidateQueries(ctx)
	return nil
}

// GetByID retrieves a provider by ID with caching
func (a *CachedProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	key := ProviderCacheKey(id)

	var provider entities.Provider
	if a.load(ctx, key, providerKeyspace, &provider) {
		return &provider, nil
	}

	fetched, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.store(ctx, key, fetched)
	return fetched, nil
}

// GetByIDs is not cached; batch lookups come from the request loader which already dedupes
func (a *CachedProviderAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	return a.adapter.GetByIDs(ctx, ids)
}

// QueryActive retrieves active providers with caching keyed by the full filter
func (a *CachedProviderAdapter) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	key, err := providerQueryCacheKey(filter)
	if err != nil {
		return a.adapter.QueryActive(ctx, filter)
	}

	var cached []*entities.Provider
	if a.load(ctx, key, providerQueryKeyspace, &cached) {
		return cached, nil
	}

	result, err := a.adapter.QueryActive(ctx, filter)
	if err != nil {
		return nil, err
	}

	a.store(ctx, key, result)
	return result, nil
}

// UpdateWaitTime updates the provider and drops every cache entry that may embed it
func (a *CachedProviderAdapter) UpdateWaitTime(ctx context.Context, id string, minutes *int) error {
	if err := a.adapter.UpdateWaitTime(ctx, id, minutes); err != nil {
		return err
	}
	a.InvalidateProvider(ctx, id)
	return nil
}

// InvalidateProvider removes the provider's own entry and all cached queries
func (a *CachedProviderAdapter) InvalidateProvider(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, ProviderCacheKey(id)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", id).Msg("failed to invalidate provider cache")
	}
	a.invalidateQueries(ctx)
}

func (a *CachedProviderAdapter) invalidateQueries(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, ProviderQueryCachePattern); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to invalidate provider query cache")
	}
}

func (a *CachedProviderAdapter) load(ctx context.Context, key, keyspace string, dest interface{}) bool {
	data, err := a.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		observability.RecordCacheMiss(ctx, a.metrics, keyspace)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		observability.RecordCacheMiss(ctx, a.metrics, keyspace)
		return false
	}

	observability.RecordCacheHit(ctx, a.metrics, keyspace)
	return true
}

func (a *CachedProviderAdapter) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}

// WarmProviders loads every active provider from the store and caches each one individually
func (a *CachedProviderAdapter) WarmProviders(ctx context.Context) (int, error) {
	active, err := a.adapter.QueryActive(ctx, repositories.ProviderFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch active providers: %w", err)
	}
	for _, provider := range active {
		a.store(ctx, ProviderCacheKey(provider.ID), provider)
	}
	return len(active), nil
}
