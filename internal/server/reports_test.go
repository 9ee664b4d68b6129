package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/audit"
	"github.com/postureboard/postureboard/internal/distribution"
	"github.com/postureboard/postureboard/internal/email"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/server"
	"go.uber.org/zap"
)

// ── Stub report store ────────────────────────────────────────────────────

type stubReportStore struct {
	mu         sync.Mutex
	reports    map[uuid.UUID]*report.Report
	recipients map[uuid.UUID][]report.Recipient
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{
		reports:    make(map[uuid.UUID]*report.Report),
		recipients: make(map[uuid.UUID][]report.Recipient),
	}
}

func (s *stubReportStore) Create(_ context.Context, rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reports {
		if existing.TenantID == rep.TenantID && existing.Quarter == rep.Quarter && existing.Year == rep.Year {
			return report.ErrDuplicatePeriod
		}
	}
	rep.ID = uuid.New()
	cp := *rep
	s.reports[rep.ID] = &cp
	return nil
}

func (s *stubReportStore) GetByID(_ context.Context, id uuid.UUID) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (s *stubReportStore) GetByPeriod(_ context.Context, tenantID uuid.UUID, quarter, year int) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rep := range s.reports {
		if rep.TenantID == tenantID && rep.Quarter == quarter && rep.Year == year {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, report.ErrNotFound
}

func (s *stubReportStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []report.Report
	for _, rep := range s.reports {
		if rep.TenantID == tenantID {
			out = append(out, *rep)
		}
	}
	return out, nil
}

func (s *stubReportStore) UpdateFields(_ context.Context, rep *report.Report) error {
	return s.replace(rep)
}

func (s *stubReportStore) UpdateStatus(_ context.Context, rep *report.Report) error {
	return s.replace(rep)
}

func (s *stubReportStore) replace(rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[rep.ID]; !ok {
		return report.ErrNotFound
	}
	cp := *rep
	s.reports[rep.ID] = &cp
	return nil
}

func (s *stubReportStore) DeleteByPeriod(_ context.Context, tenantID uuid.UUID, quarter, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rep := range s.reports {
		if rep.TenantID == tenantID && rep.Quarter == quarter && rep.Year == year {
			delete(s.reports, id)
		}
	}
	return nil
}

func (s *stubReportStore) AddRecipient(_ context.Context, rec *report.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uuid.New()
	s.recipients[rec.ReportID] = append(s.recipients[rec.ReportID], *rec)
	return nil
}

func (s *stubReportStore) ListRecipients(_ context.Context, reportID uuid.UUID) ([]report.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Recipient(nil), s.recipients[reportID]...), nil
}

func (s *stubReportStore) MarkRecipientSent(_ context.Context, recipientID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for reportID, recs := range s.recipients {
		for i := range recs {
			if recs[i].ID == recipientID {
				t := at
				s.recipients[reportID][i].SentAt = &t
			}
		}
	}
	return nil
}

// ── Other stubs ──────────────────────────────────────────────────────────

type stubCollector struct{}

func (stubCollector) Collect(_ context.Context, _ uuid.UUID) (report.SecurityMetrics, error) {
	return report.SecurityMetrics{}, nil
}

type stubAuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *stubAuditLog) Record(_ context.Context, e audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *stubAuditLog) ListByReport(_ context.Context, reportID uuid.UUID) ([]audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Entry
	for _, e := range a.entries {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, to, _ string, _ string, _ ...email.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return nil
}

// ── Test harness ─────────────────────────────────────────────────────────

type reportHarness struct {
	router *gin.Engine
	store  *stubReportStore
	svc    *report.Service
	tokens *identity.TokenIssuer
	mailer *recordingSender
}

func setupReportRouter(t *testing.T) *reportHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newStubReportStore()
	audits := &stubAuditLog{}
	tokens := identity.NewTokenIssuer([]byte("test-secret"), "http://localhost:8080", time.Hour)
	svc := report.NewService(store, stubCollector{}, audits, zap.NewNop())
	mailer := &recordingSender{}
	dist := distribution.NewService(store, mailer, zap.NewNop())

	h := server.NewReportHandler(svc, dist, audits, tokens, zap.NewNop())
	router := gin.New()
	v1 := router.Group("/api/v1")
	h.Register(v1)

	return &reportHarness{router: router, store: store, svc: svc, tokens: tokens, mailer: mailer}
}

func (h *reportHarness) tokenFor(t *testing.T, role identity.Role) string {
	t.Helper()
	tok, err := h.tokens.Issue(uuid.New().String(), string(role)+"@example.com", role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (h *reportHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *reportHarness) seedReport(t *testing.T) *report.Report {
	t.Helper()
	rep, err := h.svc.CreateForPeriod(context.Background(), uuid.New(), 2, 2025, "seed", false)
	if err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return rep
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestTransitionRequiresAuth(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/transition", "",
		map[string]string{"target": "reviewed"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestTransitionForbiddenForViewer(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/transition",
		h.tokenFor(t, identity.RoleViewer),
		map[string]string{"target": "reviewed"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestTransitionAdvancesReport(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/transition",
		h.tokenFor(t, identity.RoleAnalyst),
		map[string]string{"target": "reviewed"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Report report.Report `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report.Status != report.StatusReviewed {
		t.Errorf("status = %s, want reviewed", resp.Report.Status)
	}
}

func TestTransitionSkipRejected(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/transition",
		h.tokenFor(t, identity.RoleAdmin),
		map[string]string{"target": "manager_ready"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestCreateReportDuplicateConflict(t *testing.T) {
	h := setupReportRouter(t)
	tenantID := uuid.New()
	token := h.tokenFor(t, identity.RoleAnalyst)
	body := map[string]int{"quarter": 3, "year": 2025}

	w := h.do(t, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/reports", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, want 201: %s", w.Code, w.Body.String())
	}
	w = h.do(t, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/reports", token, body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}
	w = h.do(t, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/reports?force=true", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("forced status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestAddRecipientAdminOnly(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)
	body := map[string]string{"email": "client@example.com", "name": "Client"}
	path := "/api/v1/reports/" + rep.ID.String() + "/recipients"

	w := h.do(t, http.MethodPost, path, h.tokenFor(t, identity.RoleAnalyst), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("analyst status = %d, want 403", w.Code)
	}
	w = h.do(t, http.MethodPost, path, h.tokenFor(t, identity.RoleAdmin), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestDistributeNotReady(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/distribute",
		h.tokenFor(t, identity.RoleManager), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestDistributeApprovedReport(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)
	ctx := context.Background()

	analyst := report.Actor{ID: uuid.New().String(), Role: identity.RoleAnalyst}
	manager := report.Actor{ID: uuid.New().String(), Role: identity.RoleManager}
	for _, step := range []struct {
		target report.Status
		actor  report.Actor
	}{
		{report.StatusReviewed, analyst},
		{report.StatusAnalystReady, analyst},
		{report.StatusManagerReady, manager},
	} {
		if _, err := h.svc.ApplyTransition(ctx, rep.ID, step.target, step.actor); err != nil {
			t.Fatalf("advance to %s: %v", step.target, err)
		}
	}
	if _, err := h.svc.AddRecipient(ctx, rep.ID, report.Actor{ID: "a", Role: identity.RoleAdmin}, "client@example.com", "Client"); err != nil {
		t.Fatalf("add recipient: %v", err)
	}

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/distribute",
		h.tokenFor(t, identity.RoleAdmin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	got, err := h.store.GetByID(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.Status != report.StatusSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
	if len(h.mailer.sent) != 1 || h.mailer.sent[0] != "client@example.com" {
		t.Errorf("sent = %v", h.mailer.sent)
	}
}

func TestAuditTrailExposed(t *testing.T) {
	h := setupReportRouter(t)
	rep := h.seedReport(t)

	w := h.do(t, http.MethodPost, "/api/v1/reports/"+rep.ID.String()+"/transition",
		h.tokenFor(t, identity.RoleAdmin),
		map[string]string{"target": "reviewed"})
	if w.Code != http.StatusOK {
		t.Fatalf("transition status = %d: %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/api/v1/reports/"+rep.ID.String()+"/audit",
		h.tokenFor(t, identity.RoleViewer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("audit entries = %d, want 1", resp.Count)
	}
}
