package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/providers"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
	"github.com/zatekoja/carematch/pkg/geo"
	"github.com/zatekoja/carematch/pkg/utils"
)

const maxListLimit = 200

// CreateRequestInput carries the fields a caller supplies for a new request
type CreateRequestInput struct {
	PatientName      string  `json:"patient_name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	RequestedService string  `json:"requested_service"`
	UrgencyLevel     int     `json:"urgency_level"`
	Notes            string  `json:"notes"`
}

// RequestService handles the patient request lifecycle outside of matching
type RequestService struct {
	repo     repositories.PatientRequestRepository
	eventBus providers.EventBus
}

// NewRequestService creates a new request service. eventBus may be nil.
func NewRequestService(repo repositories.PatientRequestRepository, eventBus providers.EventBus) *RequestService {
	return &RequestService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// Create validates and stores a new pending request
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*entities.PatientRequest, error) {
	if !geo.ValidCoordinates(input.Latitude, input.Longitude) {
		return nil, apperrors.NewValidationError("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	if input.UrgencyLevel < entities.UrgencyEmergency || input.UrgencyLevel > entities.UrgencyRoutine {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("urgency_level must be between %d and %d", entities.UrgencyEmergency, entities.UrgencyRoutine),
		)
	}

	service := entities.ServiceType(utils.NormalizeServiceTag(input.RequestedService))
	if !service.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown service type %q", input.RequestedService))
	}

	now := time.Now().UTC()
	request := &entities.PatientRequest{
		ID:               uuid.NewString(),
		PatientName:      strings.TrimSpace(input.PatientName),
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		RequestedService: service,
		UrgencyLevel:     input.UrgencyLevel,
		Status:           entities.RequestStatusPending,
		Notes:            strings.TrimSpace(input.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}
	s.publish(ctx, entities.NewMatchEvent(entities.MatchEventRequestCreated, request.ID, "", nil))
	return request, nil
}

// GetByID retrieves a request by ID
func (s *RequestService) GetByID(ctx context.Context, id string) (*entities.PatientRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves requests with filters
func (s *RequestService) List(ctx context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.List(ctx, filter)
}

// Cancel moves a pending or matched request to cancelled
func (s *RequestService) Cancel(ctx context.Context, id string) (*entities.PatientRequest, error) {
	return s.transition(ctx, id, entities.RequestStatusCancelled, entities.MatchEventRequestCancelled)
}

// Fulfill moves a matched request to fulfilled
func (s *RequestService) Fulfill(ctx context.Context, id string) (*entities.PatientRequest, error) {
	return s.transition(ctx, id, entities.RequestStatusFulfilled, entities.MatchEventRequestFulfilled)
}

// transition is idempotent: repeating a transition that already happened returns the request unchanged
func (s *RequestService) transition(ctx context.Context, id string, to entities.RequestStatus, eventType entities.MatchEventType) (*entities.PatientRequest, error) {
	ok, err := s.repo.TransitionStatus(ctx, id, entities.SourcesFor(to), to)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		if current.Status == to {
			return current, nil
		}
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("request %s is %s and cannot become %s", id, current.Status, to))
	}

	providerID := ""
	if current.MatchedProviderID != nil {
		providerID = *current.MatchedProviderID
	}
	s.publish(ctx, entities.NewMatchEvent(eventType, id, providerID, nil))

	return current, nil
}

func (s *RequestService) publish(ctx context.Context, event *entities.MatchEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelRequests, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("request_id", event.RequestID).
			Str("event_type", string(event.EventType)).
			Msg("failed to publish request event")
	}
}
