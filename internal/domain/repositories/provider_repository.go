package repositories

import (
	"context"

	"github.com/zatekoja/carematch/internal/domain/entities"
)

// ProviderRepository defines the interface for provider data operations
type ProviderRepository interface {
	// Create creates a new provider
	Create(ctx context.Context, provider *entities.Provider) error

	// GetByID retrieves a provider by ID
	GetByID(ctx context.Context, id string) (*entities.Provider, error)

	// GetByIDs retrieves multiple providers by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error)

	// QueryActive retrieves active providers satisfying the filter
	QueryActive(ctx context.Context, filter ProviderFilter) ([]*entities.Provider, error)

	// UpdateWaitTime sets the provider's current wait time; nil marks it unknown
	UpdateWaitTime(ctx context.Context, id string, minutes *int) error
}

// ProviderIndex is a secondary, search-optimised copy of provider records
type ProviderIndex interface {
	// QueryActive retrieves active providers satisfying the filter
	QueryActive(ctx context.Context, filter ProviderFilter) ([]*entities.Provider, error)

	// Index upserts a provider document
	Index(ctx context.Context, provider *entities.Provider) error

	// Delete removes a provider document
	Delete(ctx context.Context, id string) error
}

// ProviderFilter enumerates the recognised provider filters. Zero values mean "any".
type ProviderFilter struct {
	ProviderType        entities.ProviderType
	ServiceType         entities.ServiceType
	AcceptsWalkIns      *bool
	TelehealthAvailable *bool
	Language            string
	Insurance           string

	// Near is a pruning hint. Stores may drop rows they can prove lie outside it,
	// but callers must still check distance themselves.
	Near *GeoRadius
}

// GeoRadius is a search circle
type GeoRadius struct {
	Center      entities.Location
	RadiusMiles float64
}
