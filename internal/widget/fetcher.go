package widget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Fetcher retrieves the raw value for one widget key from an external
// provider, using a tenant-scoped access token. Implementations may fail;
// the maturity calculator tolerates per-widget fetch errors.
type Fetcher interface {
	Fetch(ctx context.Context, tenantID uuid.UUID, token string) (any, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, tenantID uuid.UUID, token string) (any, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, tenantID uuid.UUID, token string) (any, error) {
	return f(ctx, tenantID, token)
}

// Registry maps widget keys to their fetchers. It is injected into the
// maturity calculator rather than held as package state, so tests can
// substitute fetchers per case.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register binds a fetcher to a widget key, replacing any previous binding.
func (r *Registry) Register(key string, f Fetcher) {
	r.fetchers[key] = f
}

// Lookup returns the fetcher for a widget key.
func (r *Registry) Lookup(key string) (Fetcher, error) {
	f, ok := r.fetchers[key]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for widget %q", key)
	}
	return f, nil
}
