package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
)

// ProviderCacheInvalidator drops cached provider data
type ProviderCacheInvalidator interface {
	InvalidateProvider(ctx context.Context, providerID string)
}

// ProviderCacheInvalidators fans one invalidation out to every member
type ProviderCacheInvalidators []ProviderCacheInvalidator

// InvalidateProvider invalidates providerID in every member
func (all ProviderCacheInvalidators) InvalidateProvider(ctx context.Context, providerID string) {
	for _, inv := range all {
		inv.InvalidateProvider(ctx, providerID)
	}
}

// RequestCacheInvalidator drops cached data derived from request state
type RequestCacheInvalidator interface {
	InvalidateRequests(ctx context.Context, requestID string)
}

// CacheInvalidationService drops cached data when provider or request events arrive
type CacheInvalidationService struct {
	providerInvalidator ProviderCacheInvalidator
	requestInvalidator  RequestCacheInvalidator
	eventBus            providers.EventBus
	ctx                 context.Context
	cancel              context.CancelFunc
	done                chan struct{}
	started             bool
}

// NewCacheInvalidationService creates a new cache invalidation service. requestInvalidator
// may be nil, in which case request events are not consumed.
func NewCacheInvalidationService(
	providerInvalidator ProviderCacheInvalidator,
	requestInvalidator RequestCacheInvalidator,
	eventBus providers.EventBus,
) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		providerInvalidator: providerInvalidator,
		requestInvalidator:  requestInvalidator,
		eventBus:            eventBus,
		ctx:                 ctx,
		cancel:              cancel,
		done:                make(chan struct{}),
	}
}

// Start begins listening for provider and request events
func (s *CacheInvalidationService) Start() error {
	providerEvents, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelProviders)
	if err != nil {
		return fmt.Errorf("failed to subscribe to provider events: %w", err)
	}

	var requestEvents <-chan *entities.MatchEvent
	if s.requestInvalidator != nil {
		if requestEvents, err = s.eventBus.Subscribe(s.ctx, providers.EventChannelRequests); err != nil {
			s.cancel()
			return fmt.Errorf("failed to subscribe to request events: %w", err)
		}
	}

	s.started = true
	go s.processEvents(providerEvents, requestEvents)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

// processEvents runs until the service stops or both streams close. A nil stream never
// fires, so a closed or absent channel simply drops out of the select.
func (s *CacheInvalidationService) processEvents(providerEvents, requestEvents <-chan *entities.MatchEvent) {
	defer close(s.done)
	for providerEvents != nil || requestEvents != nil {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-providerEvents:
			if !ok {
				providerEvents = nil
				continue
			}
			s.handleProviderEvent(event)
		case event, ok := <-requestEvents:
			if !ok {
				requestEvents = nil
				continue
			}
			s.handleRequestEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleProviderEvent(event *entities.MatchEvent) {
	if event == nil || event.EventType != entities.MatchEventProviderWaitTimeUpdate || event.ProviderID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.providerInvalidator.InvalidateProvider(ctx, event.ProviderID)
	log.Debug().Str("provider_id", event.ProviderID).Str("event_id", event.ID).Msg("invalidated provider cache")
}

func (s *CacheInvalidationService) handleRequestEvent(event *entities.MatchEvent) {
	if event == nil {
		return
	}
	switch event.EventType {
	case entities.MatchEventRequestCreated, entities.MatchEventRequestMatched,
		entities.MatchEventRequestCancelled, entities.MatchEventRequestFulfilled:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.requestInvalidator.InvalidateRequests(ctx, event.RequestID)
	log.Debug().Str("request_id", event.RequestID).Str("event_type", string(event.EventType)).Msg("invalidated request cache")
}
