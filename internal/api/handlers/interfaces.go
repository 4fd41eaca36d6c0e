package handlers

import (
	"context"
	"time"

	"github.com/zatekoja/carematch/internal/application/services"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
)

// RequestService is the request lifecycle surface the handlers need
type RequestService interface {
	Create(ctx context.Context, input services.CreateRequestInput) (*entities.PatientRequest, error)
	GetByID(ctx context.Context, id string) (*entities.PatientRequest, error)
	List(ctx context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error)
	Cancel(ctx context.Context, id string) (*entities.PatientRequest, error)
	Fulfill(ctx context.Context, id string) (*entities.PatientRequest, error)
}

// StatisticsService aggregates request counts
type StatisticsService interface {
	GetStatistics(ctx context.Context, start, end *time.Time) (*entities.RequestStatistics, error)
}

// Matcher ranks and commits providers for a single request
type Matcher interface {
	MatchRequest(ctx context.Context, requestID string) ([]entities.MatchCandidate, error)
	MatchAndCommit(ctx context.Context, requestID string) (*entities.MatchResult, error)
}

// AutoMatcher runs a batch match over the pending backlog
type AutoMatcher interface {
	RunAutoMatch(ctx context.Context) (int, error)
}

// NearbyFinder locates providers around a point
type NearbyFinder interface {
	FindNearby(ctx context.Context, center entities.Location, maxDistanceMiles float64, filter repositories.ProviderFilter, limit int) ([]entities.NearbyProviderResult, error)
}

// ProviderService reads and mutates providers
type ProviderService interface {
	GetByID(ctx context.Context, id string) (*entities.Provider, error)
	UpdateWaitTime(ctx context.Context, id string, minutes *int) (*entities.Provider, error)
}

var (
	_ RequestService    = (*services.RequestService)(nil)
	_ StatisticsService = (*services.RequestStatisticsService)(nil)
	_ Matcher           = (*services.RequestMatcher)(nil)
	_ AutoMatcher       = (*services.AutoMatchScheduler)(nil)
	_ NearbyFinder      = (*services.NearbyProviderFinder)(nil)
	_ ProviderService   = (*services.ProviderService)(nil)
)
