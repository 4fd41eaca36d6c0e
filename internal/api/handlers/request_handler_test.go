package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/carematch/internal/api/handlers"
	"github.com/zatekoja/carematch/internal/api/loaders"
	"github.com/zatekoja/carematch/internal/domain/entities"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

type namedProviders map[string]string

func (n namedProviders) GetByIDs(_ context.Context, ids []string) ([]*entities.Provider, error) {
	var out []*entities.Provider
	for _, id := range ids {
		if name, ok := n[id]; ok {
			out = append(out, &entities.Provider{ID: id, Name: name})
		}
	}
	return out, nil
}

func TestRequestHandler_CreateRequest(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &stubRequestService{}
		handler := handlers.NewRequestHandler(svc, nil)

		body := `{"patient_name":"Ada","latitude":38.85,"longitude":-77.27,"requested_service":"urgent_care","urgency_level":1}`
		w := httptest.NewRecorder()
		handler.CreateRequest(w, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, svc.created, 1)
		assert.Equal(t, 1, svc.created[0].UrgencyLevel)
		assert.Equal(t, 38.85, svc.created[0].Latitude)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &stubRequestService{}
		handler := handlers.NewRequestHandler(svc, nil)

		w := httptest.NewRecorder()
		handler.CreateRequest(w, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`{"urgency_level":`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.created)
	})

	t.Run("validation failure", func(t *testing.T) {
		svc := &stubRequestService{createErr: apperrors.NewValidationError("urgency_level must be between 1 and 5")}
		handler := handlers.NewRequestHandler(svc, nil)

		w := httptest.NewRecorder()
		handler.CreateRequest(w, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`{"urgency_level":9}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "urgency_level")
	})
}

func TestRequestHandler_ListRequests(t *testing.T) {
	p1 := "p1"
	gone := "p-deleted"
	svc := &stubRequestService{listed: []*entities.PatientRequest{
		{ID: "r1", Status: entities.RequestStatusMatched, MatchedProviderID: &p1},
		{ID: "r2", Status: entities.RequestStatusPending},
		{ID: "r3", Status: entities.RequestStatusMatched, MatchedProviderID: &gone},
	}}
	handler := handlers.NewRequestHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/requests?status=matched&service=Urgent%20Care&limit=25", nil)
	req = req.WithContext(loaders.WithLoaders(req.Context(), loaders.NewLoaders(namedProviders{"p1": "Eastside Clinic"})))
	w := httptest.NewRecorder()
	handler.ListRequests(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entities.RequestStatusMatched, svc.lastFilter.Status)
	assert.Equal(t, entities.ServiceUrgentCare, svc.lastFilter.RequestedService)
	assert.Equal(t, 25, svc.lastFilter.Limit)

	var body struct {
		Requests []struct {
			ID                  string `json:"id"`
			MatchedProviderName string `json:"matched_provider_name"`
		} `json:"requests"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, 3, body.Count)
	assert.Equal(t, "Eastside Clinic", body.Requests[0].MatchedProviderName)
	assert.Empty(t, body.Requests[1].MatchedProviderName)
	assert.Empty(t, body.Requests[2].MatchedProviderName)
}

func TestRequestHandler_ListRequestsRejectsBadPaging(t *testing.T) {
	handler := handlers.NewRequestHandler(&stubRequestService{}, nil)

	for _, query := range []string{"limit=ten", "offset=-1"} {
		w := httptest.NewRecorder()
		handler.ListRequests(w, httptest.NewRequest(http.MethodGet, "/api/requests?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestRequestHandler_Transitions(t *testing.T) {
	svc := &stubRequestService{fulfillErr: apperrors.NewInvalidStateError("request r1 is pending and cannot become fulfilled")}
	handler := handlers.NewRequestHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/requests/r1/cancel", nil)
	req.SetPathValue("id", "r1")
	w := httptest.NewRecorder()
	handler.CancelRequest(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	req = httptest.NewRequest(http.MethodPost, "/api/requests/r1/fulfill", nil)
	req.SetPathValue("id", "r1")
	w = httptest.NewRecorder()
	handler.FulfillRequest(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestHandler_GetStatistics(t *testing.T) {
	t.Run("date-only bounds cover whole days", func(t *testing.T) {
		stats := &stubStatisticsService{stats: &entities.RequestStatistics{Total: 2, ByService: map[entities.ServiceType]int{}}}
		handler := handlers.NewRequestHandler(nil, stats)

		w := httptest.NewRecorder()
		handler.GetStatistics(w, httptest.NewRequest(http.MethodGet, "/api/requests/stats?start=2026-04-01&end=2026-04-30", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, stats.start)
		require.NotNil(t, stats.end)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *stats.start)
		assert.Equal(t, time.Date(2026, 4, 30, 23, 59, 59, 999999999, time.UTC), *stats.end)
		assert.Contains(t, w.Body.String(), `"total":2`)
	})

	t.Run("rfc3339 bounds pass through", func(t *testing.T) {
		stats := &stubStatisticsService{stats: &entities.RequestStatistics{}}
		handler := handlers.NewRequestHandler(nil, stats)

		w := httptest.NewRecorder()
		handler.GetStatistics(w, httptest.NewRequest(http.MethodGet, "/api/requests/stats?end=2026-04-30T12:00:00Z", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, stats.start)
		assert.Equal(t, time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC), *stats.end)
	})

	t.Run("unparseable date", func(t *testing.T) {
		handler := handlers.NewRequestHandler(nil, &stubStatisticsService{})

		w := httptest.NewRecorder()
		handler.GetStatistics(w, httptest.NewRequest(http.MethodGet, "/api/requests/stats?start=last-week", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("inverted range", func(t *testing.T) {
		handler := handlers.NewRequestHandler(nil, &stubStatisticsService{err: apperrors.NewValidationError("start must not be after end")})

		w := httptest.NewRecorder()
		handler.GetStatistics(w, httptest.NewRequest(http.MethodGet, "/api/requests/stats?start=2026-05-01&end=2026-04-01", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
