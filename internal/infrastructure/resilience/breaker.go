// Package resilience wraps store calls in a circuit breaker so a failing
// datastore is reported as unavailable quickly instead of piling up timeouts.
package resilience

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/zatekoja/carematch/pkg/config"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

// Breaker trips on consecutive UNAVAILABLE errors. Domain errors such as
// NOT_FOUND pass through without counting as failures.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a named breaker
func NewBreaker(name string, cfg config.BreakerConfig) *Breaker {
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store circuit breaker changed state")
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker
func (b *Breaker) Do(fn func() error) error {
	_, err := Call(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the current breaker state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Call runs fn through the breaker and returns its value
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var (
		result    T
		domainErr error
	)

	_, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		result = v
		if err != nil && !apperrors.IsUnavailable(err) {
			domainErr = err
			return nil, nil
		}
		return nil, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, apperrors.NewUnavailableError(fmt.Sprintf("%s is unavailable", b.cb.Name()), err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	if domainErr != nil {
		var zero T
		return zero, domainErr
	}
	return result, nil
}
