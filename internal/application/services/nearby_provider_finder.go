package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	"github.com/zatekoja/carematch/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
	"github.com/zatekoja/carematch/pkg/geo"
)

// ProviderSource lists active providers for a filter. Both the SQL store and the
// Typesense index satisfy it.
type ProviderSource interface {
	QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error)
}

// NearbyProviderFinder finds active providers within a radius of a point
type NearbyProviderFinder struct {
	source ProviderSource
}

// NewNearbyProviderFinder creates a new finder
func NewNearbyProviderFinder(source ProviderSource) *NearbyProviderFinder {
	return &NearbyProviderFinder{source: source}
}

// FindNearby returns providers within maxDistanceMiles of center, nearest first.
// Ties on distance are broken by provider id. A limit <= 0 returns every match.
func (f *NearbyProviderFinder) FindNearby(
	ctx context.Context,
	center entities.Location,
	maxDistanceMiles float64,
	filter repositories.ProviderFilter,
	limit int,
) ([]entities.NearbyProviderResult, error) {
	ctx, span := observability.StartSpan(ctx, "NearbyProviderFinder.FindNearby")
	defer span.End()

	if !geo.ValidRadius(maxDistanceMiles) {
		return nil, apperrors.NewValidationError("search radius must be a positive finite number")
	}
	if !geo.ValidCoordinates(center.Latitude, center.Longitude) {
		return nil, apperrors.NewValidationError("invalid search coordinates")
	}

	filter.Near = &repositories.GeoRadius{Center: center, RadiusMiles: maxDistanceMiles}

	providers, err := f.source.QueryActive(ctx, filter)
	if err != nil {
		observability.RecordError(span, err)
		return nil, asUnavailable(err, "failed to query providers")
	}

	results := make([]entities.NearbyProviderResult, 0, len(providers))
	for _, p := range providers {
		if p == nil || !p.IsActive || !p.HasLocation() {
			continue
		}
		if filter.ServiceType != "" && !p.OffersService(filter.ServiceType) {
			continue
		}
		if filter.ProviderType != "" && p.Type != filter.ProviderType {
			continue
		}

		distance := geo.DistanceMiles(center.Latitude, center.Longitude, p.Location.Latitude, p.Location.Longitude)
		if distance > maxDistanceMiles {
			continue
		}

		results = append(results, entities.NearbyProviderResult{
			ProviderID:       p.ID,
			ProviderName:     p.Name,
			ProviderType:     p.Type,
			DistanceMiles:    distance,
			CurrentWaitTime:  p.CurrentWaitTime,
			MatchingServices: matchingServices(p, filter.ServiceType),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceMiles != results[j].DistanceMiles {
			return results[i].DistanceMiles < results[j].DistanceMiles
		}
		return results[i].ProviderID < results[j].ProviderID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	observability.SetSpanAttributes(span,
		attribute.Int("providers.scanned", len(providers)),
		attribute.Int("providers.nearby", len(results)),
	)
	return results, nil
}

func matchingServices(p *entities.Provider, requested entities.ServiceType) []entities.ServiceType {
	if requested != "" {
		return []entities.ServiceType{requested}
	}
	out := make([]entities.ServiceType, len(p.Services))
	copy(out, p.Services)
	return out
}

// asUnavailable keeps typed errors intact and reports anything else as a store outage
func asUnavailable(err error, message string) error {
	if apperrors.TypeOf(err) != "" {
		return err
	}
	return apperrors.NewUnavailableError(message, err)
}
