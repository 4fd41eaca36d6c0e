package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
	redisclient "github.com/zatekoja/carematch/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 100

// ErrBusClosed is returned by Subscribe after Close
var ErrBusClosed = errors.New("event bus closed")

// hub is one Redis subscription and the local subscribers it fans out to
type hub struct {
	pubsub *redis.PubSub
	subs   map[chan *entities.MatchEvent]struct{}
}

// RedisEventBus carries match events between instances over Redis pub/sub. Each Redis
// channel is subscribed once per process however many local subscribers it has.
type RedisEventBus struct {
	client *redisclient.Client

	mu     sync.Mutex
	hubs   map[string]*hub
	closed bool
	done   chan struct{}
}

func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	return &RedisEventBus{
		client: client,
		hubs:   make(map[string]*hub),
		done:   make(chan struct{}),
	}
}

func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}

	receivers, err := b.client.Client().Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_type", string(event.EventType)).
		Str("request_id", event.RequestID).
		Str("provider_id", event.ProviderID).
		Int64("receivers", receivers).
		Msg("published match event")
	return nil
}

// Subscribe returns a buffered stream of events on channel. The stream is closed when
// ctx is done or the bus is closed. Events are dropped for a subscriber whose buffer is full.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MatchEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	h, ok := b.hubs[channel]
	if !ok {
		pubsub := b.client.Client().Subscribe(context.Background(), channel)
		// Wait for the confirmation so an event published right after Subscribe returns is delivered.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		h = &hub{pubsub: pubsub, subs: make(map[chan *entities.MatchEvent]struct{})}
		b.hubs[channel] = h
		go b.fanOut(channel, h)
	}

	sub := make(chan *entities.MatchEvent, subscriberBuffer)
	h.subs[sub] = struct{}{}
	log.Info().Str("channel", channel).Int("subscribers", len(h.subs)).Msg("subscribed to match events")

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(channel, h, sub)
		case <-b.done:
		}
	}()

	return sub, nil
}

func (b *RedisEventBus) fanOut(channel string, h *hub) {
	for msg := range h.pubsub.Channel() {
		var event entities.MatchEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("discarding undecodable match event")
			continue
		}

		b.mu.Lock()
		for sub := range h.subs {
			select {
			case sub <- &event:
			default:
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, dropping match event")
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.shutdownHub(channel, h)
	b.mu.Unlock()
}

func (b *RedisEventBus) unsubscribe(channel string, h *hub, sub chan *entities.MatchEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub)

	if len(h.subs) == 0 {
		b.shutdownHub(channel, h)
	}
}

// shutdownHub closes every local stream and the Redis subscription. Callers hold b.mu.
func (b *RedisEventBus) shutdownHub(channel string, h *hub) error {
	for sub := range h.subs {
		close(sub)
		delete(h.subs, sub)
	}
	if b.hubs[channel] != h {
		return nil
	}
	delete(b.hubs, channel)

	if err := h.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("closed match event subscription")
	return nil
}

// Close ends every subscription. It is safe to call more than once.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	var errs []error
	for channel, h := range b.hubs {
		if err := b.shutdownHub(channel, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
