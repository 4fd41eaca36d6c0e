package handlers_test

import (
	"context"
	"time"

	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
)

type stubRequestService struct {
	created    []services.CreateRequestInput
	createErr  error
	request    *entities.PatientRequest
	getErr     error
	listed     []*entities.PatientRequest
	lastFilter repositories.PatientRequestFilter
	listErr    error
	cancelErr  error
	fulfillErr error
}

func (s *stubRequestService) Create(_ context.Context, input services.CreateRequestInput) (*entities.PatientRequest, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, input)
	return &entities.PatientRequest{
		ID:               "r-new",
		PatientName:      input.PatientName,
		RequestedService: entities.ServiceType(input.RequestedService),
		UrgencyLevel:     input.UrgencyLevel,
		Status:           entities.RequestStatusPending,
	}, nil
}

func (s *stubRequestService) GetByID(_ context.Context, id string) (*entities.PatientRequest, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.request != nil {
		return s.request, nil
	}
	return &entities.PatientRequest{ID: id, Status: entities.RequestStatusPending}, nil
}

func (s *stubRequestService) List(_ context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error) {
	s.lastFilter = filter
	return s.listed, s.listErr
}

func (s *stubRequestService) Cancel(_ context.Context, id string) (*entities.PatientRequest, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &entities.PatientRequest{ID: id, Status: entities.RequestStatusCancelled}, nil
}

func (s *stubRequestService) Fulfill(_ context.Context, id string) (*entities.PatientRequest, error) {
	if s.fulfillErr != nil {
		return nil, s.fulfillErr
	}
	return &entities.PatientRequest{ID: id, Status: entities.RequestStatusFulfilled}, nil
}

type stubStatisticsService struct {
	start, end *time.Time
	stats      *entities.RequestStatistics
	err        error
}

func (s *stubStatisticsService) GetStatistics(_ context.Context, start, end *time.Time) (*entities.RequestStatistics, error) {
	s.start, s.end = start, end
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

type stubMatcher struct {
	result     *entities.MatchResult
	commitErr  error
	candidates []entities.MatchCandidate
	rankErr    error
}

func (m *stubMatcher) MatchRequest(context.Context, string) ([]entities.MatchCandidate, error) {
	return m.candidates, m.rankErr
}

func (m *stubMatcher) MatchAndCommit(context.Context, string) (*entities.MatchResult, error) {
	return m.result, m.commitErr
}

type stubAutoMatcher struct {
	matched int
	err     error
	// runUntilCancelled makes RunAutoMatch block until its context ends, like a large backlog.
	runUntilCancelled bool
}

func (a *stubAutoMatcher) RunAutoMatch(ctx context.Context) (int, error) {
	if a.runUntilCancelled {
		<-ctx.Done()
		return a.matched, ctx.Err()
	}
	return a.matched, a.err
}

type stubFinder struct {
	center entities.Location
	radius float64
	filter repositories.ProviderFilter
	limit  int
	found  []entities.NearbyProviderResult
	err    error
}

func (f *stubFinder) FindNearby(_ context.Context, center entities.Location, radius float64, filter repositories.ProviderFilter, limit int) ([]entities.NearbyProviderResult, error) {
	f.center, f.radius, f.filter, f.limit = center, radius, filter, limit
	return f.found, f.err
}

type stubProviderService struct {
	updatedID string
	minutes   *int
	err       error
}

func (s *stubProviderService) GetByID(_ context.Context, id string) (*entities.Provider, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entities.Provider{ID: id, Name: "Eastside Clinic"}, nil
}

func (s *stubProviderService) UpdateWaitTime(_ context.Context, id string, minutes *int) (*entities.Provider, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.updatedID, s.minutes = id, minutes
	return &entities.Provider{ID: id, CurrentWaitTime: minutes}, nil
}
