package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

var providerRowColumns = []string{
	"id", "name", "provider_type", "services", "latitude", "longitude",
	"current_wait_time", "accepts_walk_ins", "telehealth_available",
	"languages", "accepted_insurance", "rating", "is_active",
	"created_at", "updated_at",
}

func setupMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.NewClientFromDB(db), mock
}

func TestProviderAdapter_GetByID(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewProviderAdapter(client)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("maps a full row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "providers" WHERE \("id" = 'p1'\)`).
			WillReturnRows(sqlmock.NewRows(providerRowColumns).AddRow(
				"p1", "Eastside Clinic", "clinic", "{general,dental}", 40.7128, -74.0060,
				int64(15), true, false, "{en,es}", "{}", 4.5, true, now, now,
			))

		provider, err := adapter.GetByID(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, entities.ProviderTypeClinic, provider.Type)
		assert.Equal(t, []entities.ServiceType{entities.ServiceGeneral, entities.ServiceDental}, provider.Services)
		require.NotNil(t, provider.Location)
		assert.InDelta(t, 40.7128, provider.Location.Latitude, 1e-9)
		require.NotNil(t, provider.CurrentWaitTime)
		assert.Equal(t, 15, *provider.CurrentWaitTime)
		assert.Equal(t, []string{"en", "es"}, provider.Languages)
		require.NotNil(t, provider.Rating)
		assert.InDelta(t, 4.5, *provider.Rating, 1e-9)
	})

	t.Run("missing coordinates and wait time stay nil", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "providers"`).
			WillReturnRows(sqlmock.NewRows(providerRowColumns).AddRow(
				"p2", "Mobile Unit", "mobile", "{vaccination}", nil, -74.0,
				nil, false, false, nil, nil, nil, true, now, now,
			))

		provider, err := adapter.GetByID(context.Background(), "p2")
		require.NoError(t, err)
		assert.Nil(t, provider.Location)
		assert.Nil(t, provider.CurrentWaitTime)
		assert.Nil(t, provider.Rating)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "providers"`).WillReturnError(sql.ErrNoRows)

		_, err := adapter.GetByID(context.Background(), "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("driver failure is unavailable", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM "providers"`).WillReturnError(errors.New("connection reset"))

		_, err := adapter.GetByID(context.Background(), "p1")
		assert.True(t, apperrors.IsUnavailable(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_QueryActive(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewProviderAdapter(client)
	walkIns := true

	mock.ExpectQuery(`SELECT .* FROM "providers" WHERE .*'dental' = ANY\(services\).*"latitude" BETWEEN .* ORDER BY "id" ASC`).
		WillReturnRows(sqlmock.NewRows(providerRowColumns))

	result, err := adapter.QueryActive(context.Background(), repositories.ProviderFilter{
		ProviderType:   entities.ProviderTypeClinic,
		ServiceType:    entities.ServiceDental,
		AcceptsWalkIns: &walkIns,
		Near: &repositories.GeoRadius{
			Center:      entities.Location{Latitude: 40.7, Longitude: -74.0},
			RadiusMiles: 10,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderFilterConditions_Empty(t *testing.T) {
	assert.Empty(t, providerFilterConditions(repositories.ProviderFilter{}))
}

func TestProviderAdapter_UpdateWaitTime(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewProviderAdapter(client)
	ctx := context.Background()

	t.Run("rejects negative minutes", func(t *testing.T) {
		minutes := -1
		err := adapter.UpdateWaitTime(ctx, "p1", &minutes)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("updates the row", func(t *testing.T) {
		minutes := 20
		mock.ExpectExec(`UPDATE "providers" SET .*"current_wait_time"=20`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, adapter.UpdateWaitTime(ctx, "p1", &minutes))
	})

	t.Run("clears to NULL", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "providers" SET .*"current_wait_time"=NULL`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, adapter.UpdateWaitTime(ctx, "p1", nil))
	})

	t.Run("unknown provider", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "providers"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.UpdateWaitTime(ctx, "ghost", nil)
		assert.True(t, apperrors.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
