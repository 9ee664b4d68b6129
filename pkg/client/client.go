// Package client provides a small Go SDK for the posture dashboard API:
// operator login, maturity and snapshot queries, and the report lifecycle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrConflict is returned when the server rejects a request because the
// resource already exists, e.g. a report for an already-generated period.
var ErrConflict = errors.New("conflict")

// Tenant is a managed client organization.
type Tenant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// MaturityResult is the live maturity calculation for a tenant.
type MaturityResult struct {
	TenantID   string  `json:"tenant_id"`
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
}

// Snapshot is one persisted daily score row.
type Snapshot struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Date          time.Time `json:"date"`
	Total         float64   `json:"total"`
	Max           float64   `json:"max"`
	Percent       float64   `json:"percent"`
	SecureScore   float64   `json:"secure_score"`
	SecurePercent float64   `json:"secure_percent"`
}

// Report is the quarterly risk report record.
type Report struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Quarter      int        `json:"quarter"`
	Year         int        `json:"year"`
	IdentityRisk int        `json:"identity_risk"`
	TrainingRisk int        `json:"training_risk"`
	DeviceRisk   int        `json:"device_risk"`
	CloudRisk    int        `json:"cloud_risk"`
	ThreatRisk   int        `json:"threat_risk"`
	OverallRisk  int        `json:"overall_risk"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at"`
}

// DistributionResult aggregates per-recipient outcomes of one distribution run.
type DistributionResult struct {
	ReportID string            `json:"report_id"`
	Sent     []string          `json:"sent"`
	Skipped  []string          `json:"skipped"`
	Failed   map[string]string `json:"failed"`
}

// Client is the dashboard SDK entry point.
type Client struct {
	base       string
	httpClient *http.Client
	token      string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a pre-obtained session token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client connected to base.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges operator credentials for a session token and attaches it
// to the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// ListTenants returns all active tenants.
func (c *Client) ListTenants(ctx context.Context) ([]Tenant, error) {
	var resp struct {
		Tenants []Tenant `json:"tenants"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tenants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tenants, nil
}

// GetMaturity runs the live maturity calculation for a tenant.
func (c *Client) GetMaturity(ctx context.Context, tenantID string) (*MaturityResult, error) {
	var resp struct {
		Maturity MaturityResult `json:"maturity"`
	}
	path := "/api/v1/tenants/" + tenantID + "/maturity"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Maturity, nil
}

// CaptureSnapshot captures today's score snapshot for a tenant.
func (c *Client) CaptureSnapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	var resp struct {
		Snapshot Snapshot `json:"snapshot"`
	}
	path := "/api/v1/tenants/" + tenantID + "/snapshots"
	if err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Snapshot, nil
}

// ListSnapshots returns snapshot history for a tenant.
func (c *Client) ListSnapshots(ctx context.Context, tenantID string) ([]Snapshot, error) {
	var resp struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	path := "/api/v1/tenants/" + tenantID + "/snapshots"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

// CreateReport generates the quarterly report for a tenant. force replaces
// an existing report for the same period.
func (c *Client) CreateReport(ctx context.Context, tenantID string, quarter, year int, force bool) (*Report, error) {
	var resp struct {
		Report Report `json:"report"`
	}
	path := fmt.Sprintf("/api/v1/tenants/%s/reports?force=%t", tenantID, force)
	body := map[string]int{"quarter": quarter, "year": year}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Report, nil
}

// ListReports returns all reports for a tenant.
func (c *Client) ListReports(ctx context.Context, tenantID string) ([]Report, error) {
	var resp struct {
		Reports []Report `json:"reports"`
	}
	path := "/api/v1/tenants/" + tenantID + "/reports"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

// Transition advances a report one step through the approval chain.
func (c *Client) Transition(ctx context.Context, reportID, target string) (*Report, error) {
	var resp struct {
		Report Report `json:"report"`
	}
	path := "/api/v1/reports/" + reportID + "/transition"
	body := map[string]string{"target": target}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Report, nil
}

// Distribute emails the rendered report to every pending recipient.
func (c *Client) Distribute(ctx context.Context, reportID string) (*DistributionResult, error) {
	var resp struct {
		Result DistributionResult `json:"result"`
	}
	path := "/api/v1/reports/" + reportID + "/distribute"
	if err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// DownloadPDF fetches the rendered report artifact.
func (c *Client) DownloadPDF(ctx context.Context, reportID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/reports/"+reportID+"/pdf", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

// doJSON executes a JSON request and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", req.URL.Path)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", ErrConflict, string(body))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
