package loaders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/carematch/internal/domain/entities"
	apperrors "github.com/zatekoja/carematch/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// ProviderBatchGetter fetches providers by id in one round trip
type ProviderBatchGetter interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error)
}

// Loaders contains the request-scoped dataloaders
type Loaders struct {
	ProviderLoader *dataloader.Loader[string, *entities.Provider]
}

// NewLoaders creates a fresh set of loaders. Loaders cache per instance, so build one per request.
func NewLoaders(providers ProviderBatchGetter) *Loaders {
	return &Loaders{
		ProviderLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Provider] {
			results := make([]*dataloader.Result[*entities.Provider], len(keys))
			found, err := providers.GetByIDs(ctx, keys)

			byID := make(map[string]*entities.Provider, len(found))
			if err == nil {
				for _, p := range found {
					byID[p.ID] = p
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Provider]{Error: err}
				} else if p, ok := byID[key]; ok {
					results[i] = &dataloader.Result[*entities.Provider]{Data: p}
				} else {
					results[i] = &dataloader.Result[*entities.Provider]{Error: apperrors.NewNotFoundError(fmt.Sprintf("provider %s not found", key))}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a new set of loaders to every request
func Middleware(providers ProviderBatchGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(providers))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
