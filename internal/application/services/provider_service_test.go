package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

func TestProviderService_UpdateWaitTime(t *testing.T) {
	t.Run("updates, reindexes, and publishes", func(t *testing.T) {
		repo := new(MockProviderRepository)
		index := new(MockProviderIndex)
		bus := newRecordingEventBus()
		svc := services.NewProviderService(repo, index, bus)

		minutes := 35
		updated := &entities.Provider{ID: "p1", CurrentWaitTime: &minutes, IsActive: true}
		repo.On("UpdateWaitTime", mock.Anything, "p1", &minutes).Return(nil)
		repo.On("GetByID", mock.Anything, "p1").Return(updated, nil)
		index.On("Index", mock.Anything, updated).Return(nil)

		provider, err := svc.UpdateWaitTime(context.Background(), "p1", &minutes)
		require.NoError(t, err)
		assert.Equal(t, 35, *provider.CurrentWaitTime)

		events := bus.events()
		require.Len(t, events, 1)
		assert.Equal(t, entities.MatchEventProviderWaitTimeUpdate, events[0].EventType)
		assert.Equal(t, "p1", events[0].ProviderID)
		assert.Equal(t, 35, events[0].Fields["current_wait_time"])
		index.AssertExpectations(t)
	})

	t.Run("index failure does not fail the update", func(t *testing.T) {
		repo := new(MockProviderRepository)
		index := new(MockProviderIndex)
		svc := services.NewProviderService(repo, index, nil)

		provider := &entities.Provider{ID: "p1"}
		repo.On("UpdateWaitTime", mock.Anything, "p1", (*int)(nil)).Return(nil)
		repo.On("GetByID", mock.Anything, "p1").Return(provider, nil)
		index.On("Index", mock.Anything, provider).Return(assert.AnError)

		_, err := svc.UpdateWaitTime(context.Background(), "p1", nil)
		assert.NoError(t, err)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		repo := new(MockProviderRepository)
		svc := services.NewProviderService(repo, nil, nil)

		repo.On("UpdateWaitTime", mock.Anything, "ghost", mock.Anything).Return(apperrors.NewNotFoundError("no provider"))

		_, err := svc.UpdateWaitTime(context.Background(), "ghost", intPtr(5))
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("negative wait is rejected", func(t *testing.T) {
		repo := new(MockProviderRepository)
		svc := services.NewProviderService(repo, nil, nil)

		_, err := svc.UpdateWaitTime(context.Background(), "p1", intPtr(-5))
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		repo.AssertNotCalled(t, "UpdateWaitTime", mock.Anything, mock.Anything, mock.Anything)
	})
}
