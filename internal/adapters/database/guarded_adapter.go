package database

import (
	"context"
	"time"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/resilience"
)

// GuardedProviderRepository routes every provider store call through a circuit breaker
type GuardedProviderRepository struct {
	inner   repositories.ProviderRepository
	breaker *resilience.Breaker
}

// NewGuardedProviderRepository wraps a provider repository with a breaker
func NewGuardedProviderRepository(inner repositories.ProviderRepository, breaker *resilience.Breaker) repositories.ProviderRepository {
	return &GuardedProviderRepository{inner: inner, breaker: breaker}
}

func (g *GuardedProviderRepository) Create(ctx context.Context, provider *entities.Provider) error {
	return g.breaker.Do(func() error {
		return g.inner.Create(ctx, provider)
	})
}

func (g *GuardedProviderRepository) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	return resilience.Call(g.breaker, func() (*entities.Provider, error) {
		return g.inner.GetByID(ctx, id)
	})
}

func (g *GuardedProviderRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	return resilience.Call(g.breaker, func() ([]*entities.Provider, error) {
		return g.inner.GetByIDs(ctx, ids)
	})
}

func (g *GuardedProviderRepository) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	return resilience.Call(g.breaker, func() ([]*entities.Provider, error) {
		return g.inner.QueryActive(ctx, filter)
	})
}

func (g *GuardedProviderRepository) UpdateWaitTime(ctx context.Context, id string, minutes *int) error {
	return g.breaker.Do(func() error {
		return g.inner.UpdateWaitTime(ctx, id, minutes)
	})
}

// GuardedPatientRequestRepository routes every request store call through a circuit breaker
type GuardedPatientRequestRepository struct {
	inner   repositories.PatientRequestRepository
	breaker *resilience.Breaker
}

// NewGuardedPatientRequestRepository wraps a patient request repository with a breaker
func NewGuardedPatientRequestRepository(inner repositories.PatientRequestRepository, breaker *resilience.Breaker) repositories.PatientRequestRepository {
	return &GuardedPatientRequestRepository{inner: inner, breaker: breaker}
}

func (g *GuardedPatientRequestRepository) Create(ctx context.Context, request *entities.PatientRequest) error {
	return g.breaker.Do(func() error {
		return g.inner.Create(ctx, request)
	})
}

func (g *GuardedPatientRequestRepository) GetByID(ctx context.Context, id string) (*entities.PatientRequest, error) {
	return resilience.Call(g.breaker, func() (*entities.PatientRequest, error) {
		return g.inner.GetByID(ctx, id)
	})
}

func (g *GuardedPatientRequestRepository) ListPending(ctx context.Context) ([]*entities.PatientRequest, error) {
	return resilience.Call(g.breaker, func() ([]*entities.PatientRequest, error) {
		return g.inner.ListPending(ctx)
	})
}

func (g *GuardedPatientRequestRepository) ListByDateRange(ctx context.Context, start, end *time.Time) ([]*entities.PatientRequest, error) {
	return resilience.Call(g.breaker, func() ([]*entities.PatientRequest, error) {
		return g.inner.ListByDateRange(ctx, start, end)
	})
}

func (g *GuardedPatientRequestRepository) List(ctx context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error) {
	return resilience.Call(g.breaker, func() ([]*entities.PatientRequest, error) {
		return g.inner.List(ctx, filter)
	})
}

func (g *GuardedPatientRequestRepository) CompareAndSetMatched(ctx context.Context, id string, expected entities.RequestStatus, providerID string, score float64) (bool, error) {
	return resilience.Call(g.breaker, func() (bool, error) {
		return g.inner.CompareAndSetMatched(ctx, id, expected, providerID, score)
	})
}

func (g *GuardedPatientRequestRepository) TransitionStatus(ctx context.Context, id string, from []entities.RequestStatus, to entities.RequestStatus) (bool, error) {
	return resilience.Call(g.breaker, func() (bool, error) {
		return g.inner.TransitionStatus(ctx, id, from, to)
	})
}
