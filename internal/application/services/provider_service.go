package services

import (
	"context"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

// ProviderService handles provider mutations and keeps the search index in step
type ProviderService struct {
	repo     repositories.ProviderRepository
	index    repositories.ProviderIndex
	eventBus providers.EventBus
}

// NewProviderService creates a new provider service. index and eventBus may be nil.
func NewProviderService(repo repositories.ProviderRepository, index repositories.ProviderIndex, eventBus providers.EventBus) *ProviderService {
	return &ProviderService{
		repo:     repo,
		index:    index,
		eventBus: eventBus,
	}
}

// GetByID retrieves a provider by ID
func (s *ProviderService) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs retrieves providers by ID
func (s *ProviderService) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// UpdateWaitTime records a provider's current wait, reindexes it, and announces the change.
// A nil minutes value marks the wait as unknown.
func (s *ProviderService) UpdateWaitTime(ctx context.Context, id string, minutes *int) (*entities.Provider, error) {
	if minutes != nil && *minutes < 0 {
		return nil, apperrors.NewValidationError("current_wait_time must not be negative")
	}
	if err := s.repo.UpdateWaitTime(ctx, id, minutes); err != nil {
		return nil, err
	}

	provider, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)

	// The store is authoritative; a stale index entry is corrected on the next reindex.
	if s.index != nil {
		if err := s.index.Index(ctx, provider); err != nil {
			logger.Warn().Err(err).Str("provider_id", id).Msg("failed to reindex provider")
		}
	}

	if s.eventBus != nil {
		fields := map[string]interface{}{"current_wait_time": nil}
		if minutes != nil {
			fields["current_wait_time"] = *minutes
		}
		event := entities.NewMatchEvent(entities.MatchEventProviderWaitTimeUpdate, "", id, fields)
		if err := s.eventBus.Publish(ctx, providers.EventChannelProviders, event); err != nil {
			logger.Warn().Err(err).Str("provider_id", id).Msg("failed to publish provider event")
		}
	}

	return provider, nil
}
