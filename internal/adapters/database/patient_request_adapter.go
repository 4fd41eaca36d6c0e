package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

const patientRequestsTable = "patient_requests"

var patientRequestColumns = []interface{}{
	"id", "patient_name", "latitude", "longitude",
	"requested_service", "urgency_level", "status",
	"matched_provider_id", "match_score", "notes",
	"matched_at", "created_at", "updated_at",
}

// PatientRequestAdapter implements the PatientRequestRepository interface
type PatientRequestAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.PatientRequestRepository = (*PatientRequestAdapter)(nil)

// NewPatientRequestAdapter creates a new patient request adapter
func NewPatientRequestAdapter(client *postgres.Client) *PatientRequestAdapter {
	return &PatientRequestAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new patient request
func (a *PatientRequestAdapter) Create(ctx context.Context, request *entities.PatientRequest) error {
	record := goqu.Record{
		"id":                  request.ID,
		"patient_name":        request.PatientName,
		"latitude":            request.Latitude,
		"longitude":           request.Longitude,
		"requested_service":   string(request.RequestedService),
		"urgency_level":       request.UrgencyLevel,
		"status":              string(request.Status),
		"matched_provider_id": nullableString(request.MatchedProviderID),
		"match_score":         nullableFloat(request.MatchScore),
		"notes":               request.Notes,
		"created_at":          request.CreatedAt,
		"updated_at":          request.UpdatedAt,
	}

	query, args, err := a.db.Insert(patientRequestsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewUnavailableError("failed to create patient request", err)
	}

	return nil
}

// GetByID retrieves a patient request by ID
func (a *PatientRequestAdapter) GetByID(ctx context.Context, id string) (*entities.PatientRequest, error) {
	query, args, err := a.db.From(patientRequestsTable).
		Select(patientRequestColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	request, err := scanPatientRequest(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient request with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to get patient request", err)
	}

	return request, nil
}

// ListPending retrieves pending requests, most urgent first and oldest first within an urgency level
func (a *PatientRequestAdapter) ListPending(ctx context.Context) ([]*entities.PatientRequest, error) {
	query, args, err := a.db.From(patientRequestsTable).
		Select(patientRequestColumns...).
		Where(goqu.Ex{"status": string(entities.RequestStatusPending)}).
		Order(
			goqu.I("urgency_level").Asc(),
			goqu.I("created_at").Asc(),
			goqu.I("id").Asc(),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build pending query", err)
	}

	return a.queryRequests(ctx, query, args)
}

// ListByDateRange retrieves requests created within [start, end]
func (a *PatientRequestAdapter) ListByDateRange(ctx context.Context, start, end *time.Time) ([]*entities.PatientRequest, error) {
	ds := a.db.From(patientRequestsTable).Select(patientRequestColumns...)

	if start != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*start))
	}
	if end != nil {
		ds = ds.Where(goqu.C("created_at").Lte(*end))
	}

	query, args, err := ds.Order(goqu.I("created_at").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build date range query", err)
	}

	return a.queryRequests(ctx, query, args)
}

// List retrieves requests with filters, newest first
func (a *PatientRequestAdapter) List(ctx context.Context, filter repositories.PatientRequestFilter) ([]*entities.PatientRequest, error) {
	ds := a.db.From(patientRequestsTable).Select(patientRequestColumns...)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": string(filter.Status)})
	}
	if filter.RequestedService != "" {
		ds = ds.Where(goqu.Ex{"requested_service": string(filter.RequestedService)})
	}

	ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryRequests(ctx, query, args)
}

// CompareAndSetMatched records a match with a single conditional UPDATE so that
// only one concurrent committer can move a request out of the expected status.
func (a *PatientRequestAdapter) CompareAndSetMatched(ctx context.Context, id string, expected entities.RequestStatus, providerID string, score float64) (bool, error) {
	now := time.Now().UTC()

	query, args, err := a.db.Update(patientRequestsTable).
		Set(goqu.Record{
			"status":              string(entities.RequestStatusMatched),
			"matched_provider_id": providerID,
			"match_score":         score,
			"matched_at":          now,
			"updated_at":          now,
		}).
		Where(goqu.Ex{
			"id":     id,
			"status": string(expected),
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build match update", err)
	}

	return a.execConditional(ctx, query, args, "failed to record match")
}

// TransitionStatus moves a request to "to" when its current status is one of "from"
func (a *PatientRequestAdapter) TransitionStatus(ctx context.Context, id string, from []entities.RequestStatus, to entities.RequestStatus) (bool, error) {
	if len(from) == 0 {
		return false, apperrors.NewValidationError("at least one source status is required")
	}

	sources := make([]string, 0, len(from))
	for _, f := range from {
		if !f.CanTransitionTo(to) {
			return false, apperrors.NewInvalidStateError(fmt.Sprintf("cannot transition from %s to %s", f, to))
		}
		sources = append(sources, string(f))
	}

	query, args, err := a.db.Update(patientRequestsTable).
		Set(goqu.Record{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{
			"id":     id,
			"status": sources,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build status update", err)
	}

	return a.execConditional(ctx, query, args, "failed to update request status")
}

func (a *PatientRequestAdapter) execConditional(ctx context.Context, query string, args []interface{}, failure string) (bool, error) {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewUnavailableError(failure, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewUnavailableError("failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

func (a *PatientRequestAdapter) queryRequests(ctx context.Context, query string, args []interface{}) ([]*entities.PatientRequest, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to query patient requests", err)
	}
	defer rows.Close()

	requests := []*entities.PatientRequest{}
	for rows.Next() {
		request, err := scanPatientRequest(rows)
		if err != nil {
			return nil, apperrors.NewUnavailableError("failed to scan patient request", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("error iterating patient requests", err)
	}

	return requests, nil
}

func scanPatientRequest(row rowScanner) (*entities.PatientRequest, error) {
	request := &entities.PatientRequest{}
	var (
		service, status    string
		patientName, notes sql.NullString
		matchedProviderID  sql.NullString
		matchScore         sql.NullFloat64
		matchedAt          sql.NullTime
	)

	err := row.Scan(
		&request.ID,
		&patientName,
		&request.Latitude,
		&request.Longitude,
		&service,
		&request.UrgencyLevel,
		&status,
		&matchedProviderID,
		&matchScore,
		&notes,
		&matchedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.RequestedService = entities.ServiceType(service)
	request.Status = entities.RequestStatus(status)
	request.PatientName = patientName.String
	request.Notes = notes.String

	if matchedProviderID.Valid {
		id := matchedProviderID.String
		request.MatchedProviderID = &id
	}
	if matchScore.Valid {
		score := matchScore.Float64
		request.MatchScore = &score
	}
	if matchedAt.Valid {
		t := matchedAt.Time
		request.MatchedAt = &t
	}

	return request, nil
}
