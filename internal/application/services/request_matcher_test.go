package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/pkg/config"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

type matcherFixture struct {
	requests  *MockPatientRequestRepository
	providers *MockProviderRepository
	bus       *recordingEventBus
	matcher   *services.RequestMatcher
}

func newMatcherFixture() *matcherFixture {
	f := &matcherFixture{
		requests:  new(MockPatientRequestRepository),
		providers: new(MockProviderRepository),
		bus:       newRecordingEventBus(),
	}
	f.matcher = services.NewRequestMatcher(
		f.requests,
		services.NewNearbyProviderFinder(f.providers),
		services.NewMatchScorer(services.DefaultScoringWeights()),
		f.bus,
		nil,
		config.MatchingConfig{SearchRadiusMiles: 20, CandidateLimit: 10, RequestTimeout: time.Second},
	)
	return f
}

func urgentCareRequest(id string) *entities.PatientRequest {
	return &entities.PatientRequest{
		ID:               id,
		Latitude:         38.85,
		Longitude:        -77.27,
		RequestedService: entities.ServiceUrgentCare,
		UrgencyLevel:     1,
		Status:           entities.RequestStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

func urgentCareProviders() []*entities.Provider {
	return []*entities.Provider{
		{
			ID:              "P2",
			Name:            "Close but busy",
			Type:            entities.ProviderTypeUrgentCare,
			Services:        []entities.ServiceType{entities.ServiceUrgentCare},
			Location:        &entities.Location{Latitude: milesNorth(38.85, 1), Longitude: -77.27},
			CurrentWaitTime: intPtr(45),
			IsActive:        true,
		},
		{
			ID:              "P1",
			Name:            "Farther but quick",
			Type:            entities.ProviderTypeUrgentCare,
			Services:        []entities.ServiceType{entities.ServiceUrgentCare},
			Location:        &entities.Location{Latitude: milesNorth(38.85, 2), Longitude: -77.27},
			CurrentWaitTime: intPtr(15),
			IsActive:        true,
		},
	}
}

func TestRequestMatcher_MatchRequestRanksByScore(t *testing.T) {
	f := newMatcherFixture()
	ctx := context.Background()

	f.requests.On("GetByID", mock.Anything, "r1").Return(urgentCareRequest("r1"), nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)

	candidates, err := f.matcher.MatchRequest(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "P1", candidates[0].ProviderID)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
	assert.Equal(t, "P2", candidates[1].ProviderID)
	assert.InDelta(t, 0.627, candidates[1].Score, 0.001)
	assert.Empty(t, f.bus.events())
}

func TestRequestMatcher_MatchRequestNoCandidates(t *testing.T) {
	f := newMatcherFixture()

	f.requests.On("GetByID", mock.Anything, "r1").Return(urgentCareRequest("r1"), nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return([]*entities.Provider{}, nil)

	candidates, err := f.matcher.MatchRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRequestMatcher_MatchRequestNotFound(t *testing.T) {
	f := newMatcherFixture()

	f.requests.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("not found"))

	_, err := f.matcher.MatchRequest(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	f.providers.AssertNotCalled(t, "QueryActive", mock.Anything, mock.Anything)
}

func TestRequestMatcher_CommitMatch(t *testing.T) {
	t.Run("commits and publishes", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P1", 0.9).Return(true, nil)

		require.NoError(t, f.matcher.CommitMatch(context.Background(), "r1", "P1", 0.9))

		events := f.bus.events()
		require.Len(t, events, 1)
		assert.Equal(t, entities.MatchEventRequestMatched, events[0].EventType)
		assert.Equal(t, "r1", events[0].RequestID)
		assert.Equal(t, "P1", events[0].ProviderID)
	})

	t.Run("repeating the same commit is a no-op", func(t *testing.T) {
		f := newMatcherFixture()
		matched := urgentCareRequest("r1")
		matched.Status = entities.RequestStatusMatched
		matched.MatchedProviderID = strPtr("P1")
		matched.MatchScore = floatPtr(0.9)

		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P1", 0.9).Return(false, nil)
		f.requests.On("GetByID", mock.Anything, "r1").Return(matched, nil)

		require.NoError(t, f.matcher.CommitMatch(context.Background(), "r1", "P1", 0.9))
		assert.Empty(t, f.bus.events())
	})

	t.Run("a different match loses", func(t *testing.T) {
		f := newMatcherFixture()
		matched := urgentCareRequest("r1")
		matched.Status = entities.RequestStatusMatched
		matched.MatchedProviderID = strPtr("P1")
		matched.MatchScore = floatPtr(0.9)

		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P2", 0.6).Return(false, nil)
		f.requests.On("GetByID", mock.Anything, "r1").Return(matched, nil)

		err := f.matcher.CommitMatch(context.Background(), "r1", "P2", 0.6)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("terminal request rejects commit", func(t *testing.T) {
		f := newMatcherFixture()
		cancelled := urgentCareRequest("r1")
		cancelled.Status = entities.RequestStatusCancelled

		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P1", 0.9).Return(false, nil)
		f.requests.On("GetByID", mock.Anything, "r1").Return(cancelled, nil)

		err := f.matcher.CommitMatch(context.Background(), "r1", "P1", 0.9)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("missing request", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("CompareAndSetMatched", mock.Anything, "ghost", entities.RequestStatusPending, "P1", 0.9).Return(false, nil)
		f.requests.On("GetByID", mock.Anything, "ghost").Return(nil, apperrors.NewNotFoundError("not found"))

		err := f.matcher.CommitMatch(context.Background(), "ghost", "P1", 0.9)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("validates input", func(t *testing.T) {
		f := newMatcherFixture()
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(f.matcher.CommitMatch(context.Background(), "r1", "", 0.5)))
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(f.matcher.CommitMatch(context.Background(), "r1", "P1", 1.5)))
	})

	t.Run("publish failure does not fail the commit", func(t *testing.T) {
		f := newMatcherFixture()
		f.bus.publishErr = assert.AnError
		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P1", 0.9).Return(true, nil)

		assert.NoError(t, f.matcher.CommitMatch(context.Background(), "r1", "P1", 0.9))
	})
}

func TestRequestMatcher_MatchAndCommit(t *testing.T) {
	t.Run("commits the top candidate", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("GetByID", mock.Anything, "r1").Return(urgentCareRequest("r1"), nil)
		f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)
		f.requests.On("CompareAndSetMatched", mock.Anything, "r1", entities.RequestStatusPending, "P1", 1.0).Return(true, nil)

		result, err := f.matcher.MatchAndCommit(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", result.RequestID)
		assert.Equal(t, "P1", result.ProviderID)
		assert.Equal(t, 1.0, result.Score)
		require.NotNil(t, result.Candidate)
		assert.InDelta(t, 2.0, result.Candidate.DistanceMiles, 1e-6)
	})

	t.Run("no candidates is a distinct error", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("GetByID", mock.Anything, "r1").Return(urgentCareRequest("r1"), nil)
		f.providers.On("QueryActive", mock.Anything, mock.Anything).Return([]*entities.Provider{}, nil)

		_, err := f.matcher.MatchAndCommit(context.Background(), "r1")
		assert.True(t, apperrors.IsNoCandidates(err))
		assert.False(t, apperrors.IsUnavailable(err))
		f.requests.AssertNotCalled(t, "CompareAndSetMatched", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store outage is unavailable", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("GetByID", mock.Anything, "r1").Return(urgentCareRequest("r1"), nil)
		f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(nil, apperrors.NewUnavailableError("db down", nil))

		_, err := f.matcher.MatchAndCommit(context.Background(), "r1")
		assert.True(t, apperrors.IsUnavailable(err))
	})

	t.Run("applies the per-request timeout", func(t *testing.T) {
		f := newMatcherFixture()
		f.requests.On("GetByID", mock.MatchedBy(func(ctx context.Context) bool {
			_, hasDeadline := ctx.Deadline()
			return hasDeadline
		}), "r1").Return(nil, apperrors.NewNotFoundError("not found"))

		_, err := f.matcher.MatchAndCommit(context.Background(), "r1")
		assert.True(t, apperrors.IsNotFound(err))
		f.requests.AssertExpectations(t)
	})
}
