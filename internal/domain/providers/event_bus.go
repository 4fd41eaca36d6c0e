package providers

import (
	"context"

	"github.com/zatekoja/carematch/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to match events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.MatchEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.MatchEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event streams
const (
	// EventChannelRequests carries request lifecycle events
	EventChannelRequests = "carematch:requests"

	// EventChannelProviders carries provider mutation events
	EventChannelProviders = "carematch:providers"
)
