package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/pkg/config"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
	"github.com/zatekoja/carematch/pkg/geo"
)

const (
	defaultSearchRadiusMiles = 20.0
	defaultCandidateLimit    = 10
)

// Match attempt outcomes recorded in metrics
const (
	outcomeMatched      = "matched"
	outcomeNoCandidates = "no_candidates"
	outcomeConflict     = "conflict"
	outcomeError        = "error"
)

// RequestMatcher ranks candidate providers for a request and commits the match
type RequestMatcher struct {
	requests repositories.PatientRequestRepository
	finder   *NearbyProviderFinder
	scorer   *MatchScorer
	eventBus providers.EventBus
	metrics  *observability.Metrics

	radiusMiles    float64
	candidateLimit int
	timeout        time.Duration
}

// NewRequestMatcher creates a new request matcher. eventBus and metrics may be nil.
func NewRequestMatcher(
	requests repositories.PatientRequestRepository,
	finder *NearbyProviderFinder,
	scorer *MatchScorer,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	cfg config.MatchingConfig,
) *RequestMatcher {
	radius := cfg.SearchRadiusMiles
	if !geo.ValidRadius(radius) {
		radius = defaultSearchRadiusMiles
	}
	limit := cfg.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	return &RequestMatcher{
		requests:       requests,
		finder:         finder,
		scorer:         scorer,
		eventBus:       eventBus,
		metrics:        metrics,
		radiusMiles:    radius,
		candidateLimit: limit,
		timeout:        cfg.RequestTimeout,
	}
}

// MatchRequest returns the ranked candidates for a request without committing anything.
// An empty slice means no provider qualified.
func (m *RequestMatcher) MatchRequest(ctx context.Context, requestID string) ([]entities.MatchCandidate, error) {
	ctx, span := observability.StartSpan(ctx, "RequestMatcher.MatchRequest")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("request.id", requestID))

	request, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	nearby, err := m.finder.FindNearby(
		ctx,
		request.Location(),
		m.radiusMiles,
		repositories.ProviderFilter{ServiceType: request.RequestedService},
		m.candidateLimit,
	)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	candidates := m.scorer.Rank(request, nearby, m.radiusMiles)
	observability.SetSpanAttributes(span, attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

// CommitMatch records providerID as the match for a pending request. Committing the
// same provider and score to an already matched request is a no-op.
func (m *RequestMatcher) CommitMatch(ctx context.Context, requestID, providerID string, score float64) error {
	_, err := m.commit(ctx, requestID, providerID, score)
	return err
}

// commit reports whether this call performed the transition
func (m *RequestMatcher) commit(ctx context.Context, requestID, providerID string, score float64) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "RequestMatcher.CommitMatch")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("request.id", requestID),
		attribute.String("provider.id", providerID),
		attribute.Float64("match.score", score),
	)

	if providerID == "" {
		return false, apperrors.NewValidationError("provider id is required")
	}
	if score < 0 || score > 1 {
		return false, apperrors.NewValidationError("match score must be between 0 and 1")
	}

	ok, err := m.requests.CompareAndSetMatched(ctx, requestID, entities.RequestStatusPending, providerID, score)
	if err != nil {
		observability.RecordError(span, err)
		return false, err
	}

	if !ok {
		current, err := m.requests.GetByID(ctx, requestID)
		if err != nil {
			return false, err
		}
		if current.IsMatchedTo(providerID, score) {
			return false, nil
		}
		return false, apperrors.NewInvalidStateError(
			fmt.Sprintf("request %s is %s and cannot be matched", requestID, current.Status),
		)
	}

	observability.RecordMatchScore(ctx, m.metrics, score)
	m.publish(ctx, entities.NewMatchEvent(entities.MatchEventRequestMatched, requestID, providerID, map[string]interface{}{
		"score": score,
	}))
	return true, nil
}

// MatchAndCommit matches a single request and commits its best candidate. It returns a
// NO_CANDIDATES error when no provider qualifies.
func (m *RequestMatcher) MatchAndCommit(ctx context.Context, requestID string) (*entities.MatchResult, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	candidates, err := m.MatchRequest(ctx, requestID)
	if err != nil {
		observability.RecordMatchAttempt(ctx, m.metrics, outcomeError)
		return nil, err
	}
	if len(candidates) == 0 {
		observability.RecordMatchAttempt(ctx, m.metrics, outcomeNoCandidates)
		return nil, apperrors.NewNoCandidatesError(fmt.Sprintf("no providers available for request %s", requestID))
	}

	best := candidates[0]
	if err := m.CommitMatch(ctx, requestID, best.ProviderID, best.Score); err != nil {
		if apperrors.IsInvalidState(err) {
			observability.RecordMatchAttempt(ctx, m.metrics, outcomeConflict)
		} else {
			observability.RecordMatchAttempt(ctx, m.metrics, outcomeError)
		}
		return nil, err
	}

	observability.RecordMatchAttempt(ctx, m.metrics, outcomeMatched)
	return &entities.MatchResult{
		RequestID:  requestID,
		ProviderID: best.ProviderID,
		Score:      best.Score,
		Candidate:  &best,
	}, nil
}

func (m *RequestMatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *RequestMatcher) publish(ctx context.Context, event *entities.MatchEvent) {
	if m.eventBus == nil {
		return
	}
	if err := m.eventBus.Publish(ctx, providers.EventChannelRequests, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event_type", string(event.EventType)).
			Str("request_id", event.RequestID).
			Msg("failed to publish match event")
	}
}

func sortCandidates(candidates []entities.MatchCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceMiles != b.DistanceMiles {
			return a.DistanceMiles < b.DistanceMiles
		}
		return a.ProviderID < b.ProviderID
	})
}
