package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/snapshot"
)

// APIClient issues authenticated requests against the provider's REST API.
type APIClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewAPIClient creates an APIClient for the given provider base URL.
func NewAPIClient(baseURL string, tokens TokenSource) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WidgetFetcher returns a fetch function for one widget endpoint. The
// endpoint is expected to return {"value": <bool|number>} for the tenant.
func (c *APIClient) WidgetFetcher(path string) func(ctx context.Context, tenantID uuid.UUID, token string) (any, error) {
	return func(ctx context.Context, tenantID uuid.UUID, token string) (any, error) {
		var resp struct {
			Value any `json:"value"`
		}
		if err := c.get(ctx, path, tenantID, token, &resp); err != nil {
			return nil, err
		}
		return resp.Value, nil
	}
}

// Scores implements snapshot.SecureScoreFeed against the provider's
// aggregate score history endpoint.
func (c *APIClient) Scores(ctx context.Context, tenantID uuid.UUID) ([]snapshot.FeedEntry, error) {
	token, err := c.tokens.Token(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("secure score token: %w", err)
	}

	var resp struct {
		Scores []snapshot.FeedEntry `json:"scores"`
	}
	if err := c.get(ctx, "/v1/secure-scores", tenantID, token, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// Collect implements report.MetricsCollector against the provider's
// security-metrics endpoint. The caller freezes the payload into the report.
func (c *APIClient) Collect(ctx context.Context, tenantID uuid.UUID) (report.SecurityMetrics, error) {
	token, err := c.tokens.Token(ctx, tenantID)
	if err != nil {
		return report.SecurityMetrics{}, fmt.Errorf("security metrics token: %w", err)
	}

	var metrics report.SecurityMetrics
	if err := c.get(ctx, "/v1/security-metrics", tenantID, token, &metrics); err != nil {
		return report.SecurityMetrics{}, err
	}
	return metrics, nil
}

func (c *APIClient) get(ctx context.Context, path string, tenantID uuid.UUID, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", tenantID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
