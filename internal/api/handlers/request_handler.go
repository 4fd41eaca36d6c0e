package handlers

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/carematch/internal/api/loaders"
	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
	"github.com/zatekoja/carematch/pkg/utils"
)

const dateOnlyLayout = "2006-01-02"

// RequestHandler handles patient request HTTP requests
type RequestHandler struct {
	requests RequestService
	stats    StatisticsService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests RequestService, stats StatisticsService) *RequestHandler {
	return &RequestHandler{
		requests: requests,
		stats:    stats,
	}
}

// requestView is a request with its matched provider's display name
type requestView struct {
	*entities.PatientRequest
	MatchedProviderName string `json:"matched_provider_name,omitempty"`
}

// CreateRequest handles POST /api/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var input services.CreateRequestInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	request, err := h.requests.Create(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, request)
}

// GetRequest handles GET /api/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	request, err := h.requests.GetByID(r.Context(), requestID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, request)
}

// ListRequests handles GET /api/requests
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.PatientRequestFilter{
		Status: entities.RequestStatus(query.Get("status")),
	}
	if service := query.Get("service"); service != "" {
		filter.RequestedService = entities.ServiceType(utils.NormalizeServiceTag(service))
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit"), 0); err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset"), 0); err != nil || filter.Offset < 0 {
		respondWithError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	requests, err := h.requests.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	views, err := attachProviderNames(r, requests)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": views,
		"count":    len(views),
	})
}

// attachProviderNames resolves matched provider names through the request's loader in one batch.
// A provider that no longer exists leaves the name empty.
func attachProviderNames(r *http.Request, requests []*entities.PatientRequest) ([]requestView, error) {
	views := make([]requestView, len(requests))
	for i, request := range requests {
		views[i].PatientRequest = request
	}

	ls := loaders.For(r.Context())
	if ls == nil {
		return views, nil
	}

	g, ctx := errgroup.WithContext(r.Context())
	for i, request := range requests {
		if request.MatchedProviderID == nil {
			continue
		}
		thunk := ls.ProviderLoader.Load(ctx, *request.MatchedProviderID)
		g.Go(func() error {
			provider, err := thunk()
			if err != nil {
				if apperrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			views[i].MatchedProviderName = provider.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("failed to load matched providers")
		return nil, apperrors.NewUnavailableError("failed to load matched providers", err)
	}
	return views, nil
}

// CancelRequest handles POST /api/requests/{id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.requests.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, request)
}

// FulfillRequest handles POST /api/requests/{id}/fulfill
func (h *RequestHandler) FulfillRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.requests.Fulfill(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, request)
}

// GetStatistics handles GET /api/requests/stats
func (h *RequestHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r.URL.Query().Get("start"), false)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"), true)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD")
		return
	}

	stats, err := h.stats.GetStatistics(r.Context(), start, end)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// parseTimeParam accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseTimeParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnlyLayout, value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
