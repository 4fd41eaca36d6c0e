package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	"github.com/zatekoja/carematch/pkg/config"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

// AutoMatchScheduler matches the pending backlog, most urgent and oldest first
type AutoMatchScheduler struct {
	requests repositories.PatientRequestRepository
	matcher  *RequestMatcher
	metrics  *observability.Metrics
	timeout  time.Duration

	// limiter paces commits so a large backlog does not saturate the store; nil means unpaced
	limiter *rate.Limiter
}

// NewAutoMatchScheduler creates a new scheduler
func NewAutoMatchScheduler(
	requests repositories.PatientRequestRepository,
	matcher *RequestMatcher,
	metrics *observability.Metrics,
	cfg config.MatchingConfig,
) *AutoMatchScheduler {
	s := &AutoMatchScheduler{
		requests: requests,
		matcher:  matcher,
		metrics:  metrics,
		timeout:  cfg.RequestTimeout,
	}
	if cfg.CommitsPerSecond > 0 {
		burst := int(cfg.CommitsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.CommitsPerSecond), burst)
	}
	return s
}

// RunAutoMatch attempts every pending request once and returns how many it matched.
// Only a failure to list the backlog is returned as an error; per-request failures are
// logged and skipped. If ctx is cancelled mid-batch the count so far is returned with ctx.Err().
func (s *AutoMatchScheduler) RunAutoMatch(ctx context.Context) (int, error) {
	ctx, span := observability.StartSpan(ctx, "AutoMatchScheduler.RunAutoMatch")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return 0, asUnavailable(err, "failed to list pending requests")
	}

	orderBacklog(pending)

	matched := 0
	for _, request := range pending {
		if err := ctx.Err(); err != nil {
			observability.RecordAutoMatchRun(ctx, s.metrics, matched)
			return matched, err
		}

		committed, err := s.matchOne(ctx, request)
		switch {
		case err == nil:
			if committed {
				matched++
			}
		case apperrors.IsInvalidState(err):
			logger.Debug().Str("request_id", request.ID).Msg("request changed state before commit, skipping")
		case ctx.Err() != nil:
			observability.RecordAutoMatchRun(ctx, s.metrics, matched)
			return matched, ctx.Err()
		default:
			logger.Warn().Err(err).Str("request_id", request.ID).Msg("auto-match failed for request")
		}
	}

	observability.RecordAutoMatchRun(ctx, s.metrics, matched)
	logger.Info().Int("pending", len(pending)).Int("matched", matched).Msg("auto-match run complete")
	return matched, nil
}

func (s *AutoMatchScheduler) matchOne(ctx context.Context, request *entities.PatientRequest) (bool, error) {
	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	candidates, err := s.matcher.MatchRequest(reqCtx, request.ID)
	if err != nil {
		observability.RecordMatchAttempt(ctx, s.metrics, outcomeError)
		return false, err
	}
	if len(candidates) == 0 {
		observability.RecordMatchAttempt(ctx, s.metrics, outcomeNoCandidates)
		observability.LoggerFromContext(ctx).Debug().Str("request_id", request.ID).Msg("no candidates for request")
		return false, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	best := candidates[0]
	committed, err := s.matcher.commit(reqCtx, request.ID, best.ProviderID, best.Score)
	switch {
	case err == nil && committed:
		observability.RecordMatchAttempt(ctx, s.metrics, outcomeMatched)
	case apperrors.IsInvalidState(err):
		observability.RecordMatchAttempt(ctx, s.metrics, outcomeConflict)
	case err != nil:
		observability.RecordMatchAttempt(ctx, s.metrics, outcomeError)
	}
	return committed, err
}

// Start runs RunAutoMatch every interval until ctx is done. It blocks; callers run it
// in a goroutine. A non-positive interval returns immediately.
func (s *AutoMatchScheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	log.Info().Dur("interval", interval).Msg("auto-match scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auto-match scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunAutoMatch(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("auto-match run failed")
			}
		}
	}
}

// orderBacklog sorts by urgency asc, created_at asc, then id. Stores already return this
// order; sorting again keeps the guarantee independent of the backing store.
func orderBacklog(requests []*entities.PatientRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		a, b := requests[i], requests[j]
		if a.UrgencyLevel != b.UrgencyLevel {
			return a.UrgencyLevel < b.UrgencyLevel
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
