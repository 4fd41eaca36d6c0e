package services_test

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/pkg/geo"
)

type MockPatientRequestRepository struct {
	mock.Mock
}

func (m *MockPatientRequestRepository) Create(ctx context.Context, request *entities.PatientRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockPatientRequestRepository) GetByID(ctx context.Context, id string) (*entities.PatientRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PatientRequest), args.Error(1)
}

func (m *MockPatientRequestRepository) ListPending(ctx context.Context) ([]*entities.PatientRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PatientRequest), args.Error(1)
}

func (m *MockPatientRequestRepository) ListByDateRange(ctx context.Context, start, end *time.Time) ([]*entities.PatientRequest, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PatientRequest), args.Error(1)
}

func (m *MockPatientRequestRepository) List(ctx context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PatientRequest), args.Error(1)
}

func (m *MockPatientRequestRepository) CompareAndSetMatched(ctx context.Context, id string, expected entities.RequestStatus, providerID string, score float64) (bool, error) {
	args := m.Called(ctx, id, expected, providerID, score)
	return args.Bool(0), args.Error(1)
}

func (m *MockPatientRequestRepository) TransitionStatus(ctx context.Context, id string, from []entities.RequestStatus, to entities.RequestStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) Create(ctx context.Context, provider *entities.Provider) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

func (m *MockProviderRepository) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) UpdateWaitTime(ctx context.Context, id string, minutes *int) error {
	args := m.Called(ctx, id, minutes)
	return args.Error(0)
}

type MockProviderIndex struct {
	mock.Mock
}

func (m *MockProviderIndex) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Provider), args.Error(1)
}

func (m *MockProviderIndex) Index(ctx context.Context, provider *entities.Provider) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

func (m *MockProviderIndex) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// recordingEventBus delivers published events to subscribers in-process
type recordingEventBus struct {
	mu          sync.Mutex
	published   []*entities.MatchEvent
	subscribers map[string][]chan *entities.MatchEvent
	publishErr  error
}

func newRecordingEventBus() *recordingEventBus {
	return &recordingEventBus{subscribers: make(map[string][]chan *entities.MatchEvent)}
}

func (b *recordingEventBus) Publish(_ context.Context, channel string, event *entities.MatchEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, event)
	for _, ch := range b.subscribers[channel] {
		ch <- event
	}
	return nil
}

func (b *recordingEventBus) Subscribe(_ context.Context, channel string) (<-chan *entities.MatchEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.MatchEvent, 10)
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	return ch, nil
}

func (b *recordingEventBus) Close() error { return nil }

func (b *recordingEventBus) events() []*entities.MatchEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*entities.MatchEvent, len(b.published))
	copy(out, b.published)
	return out
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// milesNorth offsets a latitude by the given distance along a meridian
func milesNorth(lat, miles float64) float64 {
	return lat + miles/(geo.EarthRadiusMiles*math.Pi/180)
}
