package services_test

import (
	"context"
	"errors"
	"fmt"
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

func newScheduler(f *matcherFixture, cfg config.MatchingConfig) *services.AutoMatchScheduler {
	return services.NewAutoMatchScheduler(f.requests, f.matcher, nil, cfg)
}

func pendingRequest(id string, urgency int, createdAt time.Time) *entities.PatientRequest {
	r := urgentCareRequest(id)
	r.UrgencyLevel = urgency
	r.CreatedAt = createdAt
	return r
}

func TestAutoMatchScheduler_UrgentFirst(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	backlog := []*entities.PatientRequest{
		pendingRequest("u3", 3, created),
		pendingRequest("u1", 1, created),
		pendingRequest("u2", 2, created),
	}
	f.requests.On("ListPending", mock.Anything).Return(backlog, nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)

	var attempted []string
	for _, r := range backlog {
		f.requests.On("GetByID", mock.Anything, r.ID).Return(r, nil)
	}
	f.requests.On("CompareAndSetMatched", mock.Anything, mock.Anything, entities.RequestStatusPending, "P1", mock.Anything).
		Run(func(args mock.Arguments) {
			attempted = append(attempted, args.String(1))
		}).
		Return(true, nil)

	matched, err := scheduler.RunAutoMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, matched)
	assert.Equal(t, []string{"u1", "u2", "u3"}, attempted)
}

func TestAutoMatchScheduler_OldestFirstWithinUrgency(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	backlog := []*entities.PatientRequest{
		pendingRequest("newer", 2, base.Add(time.Hour)),
		pendingRequest("older", 2, base),
	}
	f.requests.On("ListPending", mock.Anything).Return(backlog, nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)
	for _, r := range backlog {
		f.requests.On("GetByID", mock.Anything, r.ID).Return(r, nil)
	}

	var attempted []string
	f.requests.On("CompareAndSetMatched", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { attempted = append(attempted, args.String(1)) }).
		Return(true, nil)

	_, err := scheduler.RunAutoMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"older", "newer"}, attempted)
}

func TestAutoMatchScheduler_PartialFailureIsolation(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	var backlog []*entities.PatientRequest
	for i := 1; i <= 5; i++ {
		backlog = append(backlog, pendingRequest(fmt.Sprintf("r%d", i), 3, created.Add(time.Duration(i)*time.Minute)))
	}
	f.requests.On("ListPending", mock.Anything).Return(backlog, nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)
	for _, r := range backlog {
		f.requests.On("GetByID", mock.Anything, r.ID).Return(r, nil)
	}

	f.requests.On("CompareAndSetMatched", mock.Anything, "r2", mock.Anything, mock.Anything, mock.Anything).
		Return(false, apperrors.NewUnavailableError("db down", errors.New("timeout")))
	for _, id := range []string{"r1", "r3", "r4", "r5"} {
		f.requests.On("CompareAndSetMatched", mock.Anything, id, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	}

	matched, err := scheduler.RunAutoMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, matched)
	f.requests.AssertNumberOfCalls(t, "CompareAndSetMatched", 5)
}

func TestAutoMatchScheduler_SkipsNoCandidatesAndLostRaces(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	lonely := pendingRequest("lonely", 1, created)
	lonely.RequestedService = entities.ServiceDental
	raced := pendingRequest("raced", 2, created)
	ok := pendingRequest("ok", 3, created)

	f.requests.On("ListPending", mock.Anything).Return([]*entities.PatientRequest{lonely, raced, ok}, nil)
	f.providers.On("QueryActive", mock.Anything, mock.Anything).Return(urgentCareProviders(), nil)
	f.requests.On("GetByID", mock.Anything, "lonely").Return(lonely, nil)
	f.requests.On("GetByID", mock.Anything, "ok").Return(ok, nil)

	// Someone else matched "raced" to a different provider first.
	racedNow := *raced
	racedNow.Status = entities.RequestStatusMatched
	racedNow.MatchedProviderID = strPtr("other")
	racedNow.MatchScore = floatPtr(0.5)
	f.requests.On("GetByID", mock.Anything, "raced").Return(raced, nil).Once()
	f.requests.On("GetByID", mock.Anything, "raced").Return(&racedNow, nil)
	f.requests.On("CompareAndSetMatched", mock.Anything, "raced", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.requests.On("CompareAndSetMatched", mock.Anything, "ok", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	matched, err := scheduler.RunAutoMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	f.requests.AssertNotCalled(t, "CompareAndSetMatched", mock.Anything, "lonely", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoMatchScheduler_ListFailure(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})

	f.requests.On("ListPending", mock.Anything).Return(nil, errors.New("connection refused"))

	matched, err := scheduler.RunAutoMatch(context.Background())
	assert.Equal(t, 0, matched)
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestAutoMatchScheduler_EmptyBacklog(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{CommitsPerSecond: 5})

	f.requests.On("ListPending", mock.Anything).Return([]*entities.PatientRequest{}, nil)

	matched, err := scheduler.RunAutoMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, matched)
}

func TestAutoMatchScheduler_StartDisabled(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start with a zero interval should return immediately")
	}
	f.requests.AssertNotCalled(t, "ListPending", mock.Anything)
}

func TestAutoMatchScheduler_StartRunsUntilCancelled(t *testing.T) {
	f := newMatcherFixture()
	scheduler := newScheduler(f, config.MatchingConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{}, 10)
	f.requests.On("ListPending", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case ran <- struct{}{}:
			default:
			}
		}).
		Return([]*entities.PatientRequest{}, nil)

	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
