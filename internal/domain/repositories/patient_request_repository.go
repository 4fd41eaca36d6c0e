package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/carematch/internal/domain/entities"
)

// PatientRequestRepository defines the interface for patient request data operations
type PatientRequestRepository interface {
	// Create creates a new patient request
	Create(ctx context.Context, request *entities.PatientRequest) error

	// GetByID retrieves a patient request by ID
	GetByID(ctx context.Context, id string) (*entities.PatientRequest, error)

	// ListPending retrieves pending requests ordered by urgency_level then created_at, both ascending
	ListPending(ctx context.Context) ([]*entities.PatientRequest, error)

	// ListByDateRange retrieves requests whose created_at lies within [start, end]; nil bounds are open
	ListByDateRange(ctx context.Context, start, end *time.Time) ([]*entities.PatientRequest, error)

	// List retrieves requests with filters, newest first
	List(ctx context.Context, filter PatientRequestFilter) ([]*entities.PatientRequest, error)

	// CompareAndSetMatched atomically moves a request from expected to matched and records
	// the match. It reports false when the request is no longer in the expected status.
	CompareAndSetMatched(ctx context.Context, id string, expected entities.RequestStatus, providerID string, score float64) (bool, error)

	// TransitionStatus atomically moves a request to status "to" if its current status is one
	// of "from". It reports false when no row matched.
	TransitionStatus(ctx context.Context, id string, from []entities.RequestStatus, to entities.RequestStatus) (bool, error)
}

// PatientRequestFilter defines filters for listing patient requests
type PatientRequestFilter struct {
	Status           entities.RequestStatus
	RequestedService entities.ServiceType
	Limit            int
	Offset           int
}
