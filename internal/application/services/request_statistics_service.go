package services

import (
	"context"
	"time"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

// RequestStatisticsService aggregates patient request counts
type RequestStatisticsService struct {
	requests repositories.PatientRequestRepository
}

// NewRequestStatisticsService creates a new statistics service
func NewRequestStatisticsService(requests repositories.PatientRequestRepository) *RequestStatisticsService {
	return &RequestStatisticsService{requests: requests}
}

// GetStatistics aggregates requests created within [start, end]. Nil bounds are open.
func (s *RequestStatisticsService) GetStatistics(ctx context.Context, start, end *time.Time) (*entities.RequestStatistics, error) {
	ctx, span := observability.StartSpan(ctx, "RequestStatisticsService.GetStatistics")
	defer span.End()

	if start != nil && end != nil && start.After(*end) {
		return nil, apperrors.NewValidationError("start must not be after end")
	}

	requests, err := s.requests.ListByDateRange(ctx, start, end)
	if err != nil {
		observability.RecordError(span, err)
		return nil, asUnavailable(err, "failed to list requests")
	}

	stats := &entities.RequestStatistics{
		ByService: make(map[entities.ServiceType]int),
	}

	var scoreSum float64
	var scoreCount int

	for _, r := range requests {
		if start != nil && r.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && r.CreatedAt.After(*end) {
			continue
		}

		stats.Total++
		switch r.Status {
		case entities.RequestStatusPending:
			stats.Pending++
		case entities.RequestStatusMatched:
			stats.Matched++
		case entities.RequestStatusFulfilled:
			stats.Fulfilled++
		case entities.RequestStatusCancelled:
			stats.Cancelled++
		}

		stats.ByService[r.RequestedService]++

		if r.MatchScore != nil {
			scoreSum += *r.MatchScore
			scoreCount++
		}
	}

	if scoreCount > 0 {
		stats.AverageMatchScore = scoreSum / float64(scoreCount)
	}

	return stats, nil
}
