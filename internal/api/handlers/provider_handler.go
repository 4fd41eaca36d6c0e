package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/pkg/utils"
)

// ProviderHandler handles provider HTTP requests
type ProviderHandler struct {
	providers     ProviderService
	finder        NearbyFinder
	defaultRadius float64
}

// NewProviderHandler creates a new provider handler. defaultRadius applies when a search omits radius.
func NewProviderHandler(providers ProviderService, finder NearbyFinder, defaultRadius float64) *ProviderHandler {
	return &ProviderHandler{
		providers:     providers,
		finder:        finder,
		defaultRadius: defaultRadius,
	}
}

// GetProvider handles GET /api/providers/{id}
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	if providerID == "" {
		respondWithError(w, http.StatusBadRequest, "provider ID is required")
		return
	}

	provider, err := h.providers.GetByID(r.Context(), providerID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

// FindNearby handles GET /api/providers/nearby
func (h *ProviderHandler) FindNearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	lat, err := strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "lat is required and must be a number")
		return
	}
	lngParam := query.Get("lng")
	if lngParam == "" {
		lngParam = query.Get("lon")
	}
	lng, err := strconv.ParseFloat(lngParam, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "lng is required and must be a number")
		return
	}

	radius := h.defaultRadius
	if value := query.Get("radius"); value != "" {
		if radius, err = strconv.ParseFloat(value, 64); err != nil {
			respondWithError(w, http.StatusBadRequest, "radius must be a number")
			return
		}
	}

	limit, err := intParam(query.Get("limit"), 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	filter := repositories.ProviderFilter{
		ProviderType: entities.ProviderType(query.Get("type")),
		Language:     query.Get("language"),
		Insurance:    query.Get("insurance"),
	}
	if service := query.Get("service"); service != "" {
		filter.ServiceType = entities.ServiceType(utils.NormalizeServiceTag(service))
	}
	if filter.AcceptsWalkIns, err = boolParam(query.Get("walk_ins")); err != nil {
		respondWithError(w, http.StatusBadRequest, "walk_ins must be true or false")
		return
	}
	if filter.TelehealthAvailable, err = boolParam(query.Get("telehealth")); err != nil {
		respondWithError(w, http.StatusBadRequest, "telehealth must be true or false")
		return
	}

	results, err := h.finder.FindNearby(r.Context(), entities.Location{Latitude: lat, Longitude: lng}, radius, filter, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if results == nil {
		results = []entities.NearbyProviderResult{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": results,
		"count":     len(results),
	})
}

// UpdateWaitTime handles PATCH /api/providers/{id}/wait-time. A null value marks the wait as unknown.
func (h *ProviderHandler) UpdateWaitTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentWaitTime *int `json:"current_wait_time"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	provider, err := h.providers.UpdateWaitTime(r.Context(), r.PathValue("id"), body.CurrentWaitTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

func boolParam(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
