// Package provider supplies tenant-scoped credentials for the external
// security APIs. The scoring core only consumes a valid token string;
// refresh-on-expiry is handled here.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource yields a valid access token for a tenant's provider APIs.
type TokenSource interface {
	Token(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// ClientCredentials identifies one tenant's app registration with the
// provider.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// CredentialLookup resolves a tenant's provider app registration.
type CredentialLookup func(ctx context.Context, tenantID uuid.UUID) (ClientCredentials, error)

// OAuthTokenSource implements TokenSource with the OAuth2 client-credentials
// grant. One oauth2.TokenSource is cached per tenant so the library reuses
// and refreshes tokens transparently.
type OAuthTokenSource struct {
	lookup CredentialLookup

	mu      sync.Mutex
	sources map[uuid.UUID]oauth2.TokenSource
}

// NewOAuthTokenSource creates an OAuthTokenSource.
func NewOAuthTokenSource(lookup CredentialLookup) *OAuthTokenSource {
	return &OAuthTokenSource{
		lookup:  lookup,
		sources: make(map[uuid.UUID]oauth2.TokenSource),
	}
}

// Token implements TokenSource.
func (s *OAuthTokenSource) Token(ctx context.Context, tenantID uuid.UUID) (string, error) {
	s.mu.Lock()
	src, ok := s.sources[tenantID]
	if !ok {
		creds, err := s.lookup(ctx, tenantID)
		if err != nil {
			s.mu.Unlock()
			return "", fmt.Errorf("lookup tenant credentials: %w", err)
		}
		cfg := &clientcredentials.Config{
			TokenURL:     creds.TokenURL,
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Scopes:       creds.Scopes,
		}
		src = cfg.TokenSource(context.Background())
		s.sources[tenantID] = src
	}
	s.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("provider token for tenant %s: %w", tenantID, err)
	}
	return tok.AccessToken, nil
}

// StaticTokenSource returns the same token for every tenant. Development and
// tests only.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context, uuid.UUID) (string, error) {
	return string(s), nil
}
