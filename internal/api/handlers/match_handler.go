package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

// MatchHandler handles matching HTTP requests
type MatchHandler struct {
	matcher         Matcher
	autoMatcher     AutoMatcher
	requests        RequestService
	autoMatchBudget time.Duration
}

// autoMatchWriteSlack is the time left after the run budget to write the response
const autoMatchWriteSlack = 10 * time.Second

// NewMatchHandler creates a new match handler
func NewMatchHandler(matcher Matcher, autoMatcher AutoMatcher, requests RequestService) *MatchHandler {
	return &MatchHandler{
		matcher:     matcher,
		autoMatcher: autoMatcher,
		requests:    requests,
	}
}

// WithAutoMatchBudget bounds each HTTP-triggered auto-match run and extends the
// connection's write deadline to cover it. Zero leaves the run bound to the request.
func (h *MatchHandler) WithAutoMatchBudget(budget time.Duration) *MatchHandler {
	h.autoMatchBudget = budget
	return h
}

// MatchRequest handles POST /api/requests/{id}/match
func (h *MatchHandler) MatchRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	result, err := h.matcher.MatchAndCommit(r.Context(), requestID)
	if err != nil {
		if apperrors.IsNoCandidates(err) {
			respondWithJSON(w, http.StatusOK, map[string]interface{}{
				"matched":    false,
				"request_id": requestID,
			})
			return
		}
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"matched": true,
		"match":   result,
	})
}

// ListCandidates handles GET /api/requests/{id}/candidates. Nothing is committed.
func (h *MatchHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		respondWithError(w, http.StatusBadRequest, "request ID is required")
		return
	}

	var (
		request    *entities.PatientRequest
		candidates []entities.MatchCandidate
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		request, err = h.requests.GetByID(ctx, requestID)
		return err
	})
	g.Go(func() error {
		var err error
		candidates, err = h.matcher.MatchRequest(ctx, requestID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if candidates == nil {
		candidates = []entities.MatchCandidate{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"request":    request,
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// AutoMatch handles POST /api/requests/auto-match
func (h *MatchHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.autoMatchBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.autoMatchBudget)
		defer cancel()

		deadline := time.Now().Add(h.autoMatchBudget + autoMatchWriteSlack)
		if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to extend write deadline for auto-match")
		}
	}

	matched, err := h.autoMatcher.RunAutoMatch(ctx)
	if err != nil {
		// An exhausted budget is a partial run; whatever is still pending is left for the next one.
		if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
			respondWithJSON(w, http.StatusOK, map[string]interface{}{"matched_count": matched, "complete": false})
			return
		}
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"matched_count": matched, "complete": true})
}
