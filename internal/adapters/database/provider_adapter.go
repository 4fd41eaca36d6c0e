package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
	"github.com/zatekoja/carematch/pkg/geo"
)

const providersTable = "providers"

var providerColumns = []interface{}{
	"id", "name", "provider_type", "services",
	"latitude", "longitude", "current_wait_time",
	"accepts_walk_ins", "telehealth_available",
	"languages", "accepted_insurance", "rating",
	"is_active", "created_at", "updated_at",
}

// ProviderAdapter implements the ProviderRepository interface
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.ProviderRepository = (*ProviderAdapter)(nil)

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) *ProviderAdapter {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new provider
func (a *ProviderAdapter) Create(ctx context.Context, provider *entities.Provider) error {
	var lat, lon interface{}
	if provider.Location != nil {
		lat = provider.Location.Latitude
		lon = provider.Location.Longitude
	}

	record := goqu.Record{
		"id":                   provider.ID,
		"name":                 provider.Name,
		"provider_type":        string(provider.Type),
		"services":             pq.Array(serviceStrings(provider.Services)),
		"latitude":             lat,
		"longitude":            lon,
		"current_wait_time":    nullableInt(provider.CurrentWaitTime),
		"accepts_walk_ins":     provider.AcceptsWalkIns,
		"telehealth_available": provider.TelehealthAvailable,
		"languages":            pq.Array(nonNilStrings(provider.Languages)),
		"accepted_insurance":   pq.Array(nonNilStrings(provider.AcceptedInsurance)),
		"rating":               nullableFloat(provider.Rating),
		"is_active":            provider.IsActive,
		"created_at":           provider.CreatedAt,
		"updated_at":           provider.UpdatedAt,
	}

	query, args, err := a.db.Insert(providersTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewUnavailableError("failed to create provider", err)
	}

	return nil
}

// GetByID retrieves a provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	query, args, err := a.db.From(providersTable).
		Select(providerColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	provider, err := scanProvider(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to get provider", err)
	}

	return provider, nil
}

// GetByIDs retrieves multiple providers by their IDs
func (a *ProviderAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	if len(ids) == 0 {
		return []*entities.Provider{}, nil
	}

	query, args, err := a.db.From(providersTable).
		Select(providerColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryProviders(ctx, query, args)
}

// QueryActive retrieves active providers satisfying the filter, ordered by id
func (a *ProviderAdapter) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	ds := a.db.From(providersTable).
		Select(providerColumns...).
		Where(goqu.Ex{"is_active": true})

	for _, cond := range providerFilterConditions(filter) {
		ds = ds.Where(cond)
	}

	query, args, err := ds.Order(goqu.I("id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryProviders(ctx, query, args)
}

// UpdateWaitTime sets the provider's current wait time; nil marks it unknown
func (a *ProviderAdapter) UpdateWaitTime(ctx context.Context, id string, minutes *int) error {
	if minutes != nil && *minutes < 0 {
		return apperrors.NewValidationError("wait time must not be negative")
	}

	query, args, err := a.db.Update(providersTable).
		Set(goqu.Record{
			"current_wait_time": nullableInt(minutes),
			"updated_at":        time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewUnavailableError("failed to update provider wait time", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewUnavailableError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}

	return nil
}

func (a *ProviderAdapter) queryProviders(ctx context.Context, query string, args []interface{}) ([]*entities.Provider, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to query providers", err)
	}
	defer rows.Close()

	providers := []*entities.Provider{}
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, apperrors.NewUnavailableError("failed to scan provider", err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("error iterating providers", err)
	}

	return providers, nil
}

func providerFilterConditions(filter repositories.ProviderFilter) []exp.Expression {
	var conds []exp.Expression

	if filter.ProviderType != "" {
		conds = append(conds, goqu.Ex{"provider_type": string(filter.ProviderType)})
	}
	if filter.ServiceType != "" {
		conds = append(conds, goqu.L("? = ANY(services)", string(filter.ServiceType)))
	}
	if filter.AcceptsWalkIns != nil {
		conds = append(conds, goqu.Ex{"accepts_walk_ins": *filter.AcceptsWalkIns})
	}
	if filter.TelehealthAvailable != nil {
		conds = append(conds, goqu.Ex{"telehealth_available": *filter.TelehealthAvailable})
	}
	if filter.Language != "" {
		conds = append(conds, goqu.L("? = ANY(languages)", filter.Language))
	}
	if filter.Insurance != "" {
		conds = append(conds, goqu.L("? = ANY(accepted_insurance)", filter.Insurance))
	}
	if filter.Near != nil {
		box := geo.BoundingBoxFor(filter.Near.Center.Latitude, filter.Near.Center.Longitude, filter.Near.RadiusMiles)
		conds = append(conds,
			goqu.C("latitude").Between(goqu.Range(box.MinLat, box.MaxLat)),
			goqu.C("longitude").Between(goqu.Range(box.MinLon, box.MaxLon)),
		)
	}

	return conds
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*entities.Provider, error) {
	provider := &entities.Provider{}
	var (
		providerType        string
		services            []string
		lat, lon, rating    sql.NullFloat64
		waitTime            sql.NullInt64
		languages, insurers []string
	)

	err := row.Scan(
		&provider.ID,
		&provider.Name,
		&providerType,
		pq.Array(&services),
		&lat,
		&lon,
		&waitTime,
		&provider.AcceptsWalkIns,
		&provider.TelehealthAvailable,
		pq.Array(&languages),
		pq.Array(&insurers),
		&rating,
		&provider.IsActive,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	provider.Type = entities.ProviderType(providerType)
	provider.Services = make([]entities.ServiceType, 0, len(services))
	for _, s := range services {
		provider.Services = append(provider.Services, entities.ServiceType(s))
	}
	provider.Languages = languages
	provider.AcceptedInsurance = insurers

	// A half-populated coordinate pair is treated as no location at all.
	if lat.Valid && lon.Valid {
		provider.Location = &entities.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if waitTime.Valid {
		minutes := int(waitTime.Int64)
		provider.CurrentWaitTime = &minutes
	}
	if rating.Valid {
		r := rating.Float64
		provider.Rating = &r
	}

	return provider, nil
}

func serviceStrings(services []entities.ServiceType) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[i] = string(s)
	}
	return out
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
