package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/carematch/internal/domain/entities"
	"github.com/zatekoja/carematch/internal/domain/repositories"
	tsclient "github.com/zatekoja/carematch/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

const maxPerPage = 250

// TypesenseAdapter serves provider queries from the Typesense providers collection
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements ProviderIndex
var _ repositories.ProviderIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a provider document
func (a *TypesenseAdapter) Index(ctx context.Context, provider *entities.Provider) error {
	_, err := a.client.Client().Collection(tsclient.ProvidersCollection).Documents().Upsert(ctx, providerDocument(provider))
	if err != nil {
		return apperrors.NewUnavailableError("failed to index provider", err)
	}
	return nil
}

// Delete removes a provider from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ProvidersCollection).Document(id).Delete(ctx)
	if err != nil {
		return apperrors.NewUnavailableError("failed to delete provider from index", err)
	}
	return nil
}

// QueryActive returns every active provider document satisfying the filter, paging
// through the whole result set.
func (a *TypesenseAdapter) QueryActive(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	filterBy := buildFilterBy(filter)
	providers := []*entities.Provider{}

	for page := 1; ; page++ {
		params := &api.SearchCollectionParams{
			Q:        pointer.String("*"),
			QueryBy:  pointer.String("name"),
			FilterBy: pointer.String(filterBy),
			SortBy:   pointer.String("created_at:asc"),
			Page:     pointer.Int(page),
			PerPage:  pointer.Int(maxPerPage),
		}

		result, err := a.client.Client().Collection(tsclient.ProvidersCollection).Documents().Search(ctx, params)
		if err != nil {
			return nil, apperrors.NewUnavailableError("failed to search providers", err)
		}
		if result.Hits == nil || len(*result.Hits) == 0 {
			break
		}

		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			providers = append(providers, providerFromDocument(*hit.Document))
		}

		found := 0
		if result.Found != nil {
			found = *result.Found
		}
		if page*maxPerPage >= found {
			break
		}
	}

	return providers, nil
}

// buildFilterBy translates a ProviderFilter into Typesense filter_by syntax
func buildFilterBy(filter repositories.ProviderFilter) string {
	clauses := []string{"is_active:=true"}

	if filter.ProviderType != "" {
		clauses = append(clauses, fmt.Sprintf("provider_type:=`%s`", filter.ProviderType))
	}
	if filter.ServiceType != "" {
		clauses = append(clauses, fmt.Sprintf("services:=[`%s`]", filter.ServiceType))
	}
	if filter.AcceptsWalkIns != nil {
		clauses = append(clauses, "accepts_walk_ins:="+strconv.FormatBool(*filter.AcceptsWalkIns))
	}
	if filter.TelehealthAvailable != nil {
		clauses = append(clauses, "telehealth_available:="+strconv.FormatBool(*filter.TelehealthAvailable))
	}
	if filter.Language != "" {
		clauses = append(clauses, fmt.Sprintf("languages:=[`%s`]", escapeBackticks(filter.Language)))
	}
	if filter.Insurance != "" {
		clauses = append(clauses, fmt.Sprintf("accepted_insurance:=[`%s`]", escapeBackticks(filter.Insurance)))
	}
	if filter.Near != nil {
		clauses = append(clauses, fmt.Sprintf("location:(%f, %f, %s mi)",
			filter.Near.Center.Latitude,
			filter.Near.Center.Longitude,
			strconv.FormatFloat(filter.Near.RadiusMiles, 'f', -1, 64),
		))
	}

	return strings.Join(clauses, " && ")
}

func escapeBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}

func providerDocument(provider *entities.Provider) map[string]interface{} {
	services := make([]string, len(provider.Services))
	for i, s := range provider.Services {
		services[i] = string(s)
	}

	doc := map[string]interface{}{
		"id":                   provider.ID,
		"name":                 provider.Name,
		"provider_type":        string(provider.Type),
		"services":             services,
		"accepts_walk_ins":     provider.AcceptsWalkIns,
		"telehealth_available": provider.TelehealthAvailable,
		"is_active":            provider.IsActive,
		"created_at":           provider.CreatedAt.Unix(),
		"updated_at":           provider.UpdatedAt.Unix(),
	}

	if provider.Location != nil {
		doc["location"] = []float64{provider.Location.Latitude, provider.Location.Longitude}
	}
	if provider.CurrentWaitTime != nil {
		doc["current_wait_time"] = *provider.CurrentWaitTime
	}
	if len(provider.Languages) > 0 {
		doc["languages"] = provider.Languages
	}
	if len(provider.AcceptedInsurance) > 0 {
		doc["accepted_insurance"] = provider.AcceptedInsurance
	}
	if provider.Rating != nil {
		doc["rating"] = *provider.Rating
	}

	return doc
}

// providerFromDocument rebuilds a provider from a search hit. Fields that are missing
// or of the wrong shape are left at their zero value.
func providerFromDocument(doc map[string]interface{}) *entities.Provider {
	provider := &entities.Provider{}

	provider.ID, _ = doc["id"].(string)
	provider.Name, _ = doc["name"].(string)
	if t, ok := doc["provider_type"].(string); ok {
		provider.Type = entities.ProviderType(t)
	}
	provider.AcceptsWalkIns, _ = doc["accepts_walk_ins"].(bool)
	provider.TelehealthAvailable, _ = doc["telehealth_available"].(bool)
	provider.IsActive, _ = doc["is_active"].(bool)

	for _, s := range stringSlice(doc["services"]) {
		provider.Services = append(provider.Services, entities.ServiceType(s))
	}
	provider.Languages = stringSlice(doc["languages"])
	provider.AcceptedInsurance = stringSlice(doc["accepted_insurance"])

	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, latOK := loc[0].(float64)
		lon, lonOK := loc[1].(float64)
		if latOK && lonOK {
			provider.Location = &entities.Location{Latitude: lat, Longitude: lon}
		}
	}
	if v, ok := doc["current_wait_time"].(float64); ok {
		minutes := int(v)
		provider.CurrentWaitTime = &minutes
	}
	if v, ok := doc["rating"].(float64); ok {
		rating := v
		provider.Rating = &rating
	}
	if v, ok := doc["created_at"].(float64); ok {
		provider.CreatedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := doc["updated_at"].(float64); ok {
		provider.UpdatedAt = time.Unix(int64(v), 0).UTC()
	}

	return provider
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
