package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carematch/internal/api/handlers"
	"github.com/zatekoja/carematch/internal/domain/entities"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

func TestProviderHandler_FindNearby(t *testing.T) {
	t.Run("parses the filter", func(t *testing.T) {
		finder := &stubFinder{found: []entities.NearbyProviderResult{{ProviderID: "p1", DistanceMiles: 1.2}}}
		handler := handlers.NewProviderHandler(nil, finder, 20)

		w := httptest.NewRecorder()
		handler.FindNearby(w, httptest.NewRequest(http.MethodGet,
			"/api/providers/nearby?lat=38.85&lng=-77.27&service=dentist&type=clinic&walk_ins=true&language=es&limit=5", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entities.Location{Latitude: 38.85, Longitude: -77.27}, finder.center)
		assert.Equal(t, 20.0, finder.radius)
		assert.Equal(t, 5, finder.limit)
		assert.Equal(t, entities.ServiceDental, finder.filter.ServiceType)
		assert.Equal(t, entities.ProviderTypeClinic, finder.filter.ProviderType)
		require.NotNil(t, finder.filter.AcceptsWalkIns)
		assert.True(t, *finder.filter.AcceptsWalkIns)
		assert.Nil(t, finder.filter.TelehealthAvailable)
		assert.Equal(t, "es", finder.filter.Language)
		assert.Contains(t, w.Body.String(), `"count":1`)
	})

	t.Run("explicit radius", func(t *testing.T) {
		finder := &stubFinder{}
		handler := handlers.NewProviderHandler(nil, finder, 20)

		w := httptest.NewRecorder()
		handler.FindNearby(w, httptest.NewRequest(http.MethodGet, "/api/providers/nearby?lat=1&lon=2&radius=3.5", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.5, finder.radius)
		assert.Contains(t, w.Body.String(), `"providers":[]`)
	})

	badQueries := []string{
		"lng=-77.27",
		"lat=38.85",
		"lat=north&lng=1",
		"lat=1&lng=1&radius=far",
		"lat=1&lng=1&walk_ins=maybe",
		"lat=1&lng=1&limit=x",
	}
	for _, query := range badQueries {
		t.Run("rejects "+query, func(t *testing.T) {
			handler := handlers.NewProviderHandler(nil, &stubFinder{}, 20)
			w := httptest.NewRecorder()
			handler.FindNearby(w, httptest.NewRequest(http.MethodGet, "/api/providers/nearby?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("finder validation surfaces as 400", func(t *testing.T) {
		handler := handlers.NewProviderHandler(nil, &stubFinder{err: apperrors.NewValidationError("search radius must be positive")}, 20)
		w := httptest.NewRecorder()
		handler.FindNearby(w, httptest.NewRequest(http.MethodGet, "/api/providers/nearby?lat=1&lng=1&radius=0", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProviderHandler_UpdateWaitTime(t *testing.T) {
	t.Run("sets minutes", func(t *testing.T) {
		svc := &stubProviderService{}
		handler := handlers.NewProviderHandler(svc, nil, 20)

		req := httptest.NewRequest(http.MethodPatch, "/api/providers/p1/wait-time", strings.NewReader(`{"current_wait_time":25}`))
		req.SetPathValue("id", "p1")
		w := httptest.NewRecorder()
		handler.UpdateWaitTime(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "p1", svc.updatedID)
		require.NotNil(t, svc.minutes)
		assert.Equal(t, 25, *svc.minutes)
	})

	t.Run("null marks unknown", func(t *testing.T) {
		svc := &stubProviderService{}
		handler := handlers.NewProviderHandler(svc, nil, 20)

		req := httptest.NewRequest(http.MethodPatch, "/api/providers/p1/wait-time", strings.NewReader(`{"current_wait_time":null}`))
		req.SetPathValue("id", "p1")
		w := httptest.NewRecorder()
		handler.UpdateWaitTime(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, svc.minutes)
	})

	t.Run("unknown provider", func(t *testing.T) {
		handler := handlers.NewProviderHandler(&stubProviderService{err: apperrors.NewNotFoundError("provider p9 not found")}, nil, 20)

		req := httptest.NewRequest(http.MethodPatch, "/api/providers/p9/wait-time", strings.NewReader(`{"current_wait_time":5}`))
		req.SetPathValue("id", "p9")
		w := httptest.NewRecorder()
		handler.UpdateWaitTime(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
