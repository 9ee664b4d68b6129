package widget_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/widget"
	"go.uber.org/zap"
)

// ── In-memory stub store ───────────────────────────────────────────────────

type stubStore struct {
	mu        sync.Mutex
	defs      []widget.Definition
	overrides map[string]*widget.Override // tenant:widget → override
	seeded    int
}

func newStubStore(defs ...widget.Definition) *stubStore {
	return &stubStore{defs: defs, overrides: make(map[string]*widget.Override)}
}

func ovKey(tenantID, widgetID uuid.UUID) string {
	return tenantID.String() + ":" + widgetID.String()
}

func (s *stubStore) ListDefinitions(_ context.Context) ([]widget.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]widget.Definition(nil), s.defs...), nil
}

func (s *stubStore) GetOverride(_ context.Context, tenantID, widgetID uuid.UUID) (*widget.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[ovKey(tenantID, widgetID)]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *stubStore) SeedOverride(_ context.Context, o *widget.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ovKey(o.TenantID, o.WidgetID)
	if _, exists := s.overrides[key]; exists {
		return nil
	}
	o.ID = uuid.New()
	cp := *o
	s.overrides[key] = &cp
	s.seeded++
	return nil
}

func (s *stubStore) setOverride(o widget.Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[ovKey(o.TenantID, o.WidgetID)] = &o
}

// ── Stub token source ──────────────────────────────────────────────────────

type stubTokens struct{ err error }

func (s stubTokens) Token(_ context.Context, _ uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "test-token", nil
}

// ── Helpers ────────────────────────────────────────────────────────────────

func yesNoDef(key string, points float64) widget.Definition {
	return widget.Definition{
		ID:              uuid.New(),
		Key:             key,
		ScoringType:     widget.ScoringYesNo,
		Config:          widget.ScoringConfig{YesPoints: points},
		PointsAvailable: points,
		Active:          true,
	}
}

func staticFetcher(v any) widget.Fetcher {
	return widget.FetcherFunc(func(context.Context, uuid.UUID, string) (any, error) {
		return v, nil
	})
}

func failingFetcher(err error) widget.Fetcher {
	return widget.FetcherFunc(func(context.Context, uuid.UUID, string) (any, error) {
		return nil, err
	})
}

// ── Tests ──────────────────────────────────────────────────────────────────

func TestCalculateSumsActiveWidgets(t *testing.T) {
	a := yesNoDef("mfa_enforced", 10)
	b := yesNoDef("disk_encryption", 15)
	store := newStubStore(a, b)

	reg := widget.NewRegistry()
	reg.Register("mfa_enforced", staticFetcher(true))
	reg.Register("disk_encryption", staticFetcher(false))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.TotalScore != 10 {
		t.Errorf("TotalScore = %v, want 10", res.TotalScore)
	}
	if res.MaxScore != 25 {
		t.Errorf("MaxScore = %v, want 25", res.MaxScore)
	}
	if res.TotalScore > res.MaxScore {
		t.Error("TotalScore must never exceed MaxScore")
	}
}

func TestCalculateSkipsInactiveWidgets(t *testing.T) {
	active := yesNoDef("mfa_enforced", 10)
	inactive := yesNoDef("legacy_signal", 50)
	inactive.Active = false
	store := newStubStore(active, inactive)

	reg := widget.NewRegistry()
	reg.Register("mfa_enforced", staticFetcher(true))
	reg.Register("legacy_signal", staticFetcher(true))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.MaxScore != 10 {
		t.Errorf("MaxScore = %v, want 10 (inactive widget excluded)", res.MaxScore)
	}
	if res.TotalScore != 10 {
		t.Errorf("TotalScore = %v, want 10", res.TotalScore)
	}
}

func TestCalculateSkipsDisabledOverride(t *testing.T) {
	def := yesNoDef("mfa_enforced", 10)
	store := newStubStore(def)
	tenantID := uuid.New()
	store.setOverride(widget.Override{TenantID: tenantID, WidgetID: def.ID, Enabled: false})

	reg := widget.NewRegistry()
	reg.Register("mfa_enforced", staticFetcher(true))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.TotalScore != 0 || res.MaxScore != 0 {
		t.Errorf("disabled widget must not count at all: got (%v, %v)", res.TotalScore, res.MaxScore)
	}
}

func TestCalculateFetchFailureCountsMaxOnly(t *testing.T) {
	ok := yesNoDef("mfa_enforced", 10)
	broken := yesNoDef("endpoint_defense", 20)
	store := newStubStore(ok, broken)

	reg := widget.NewRegistry()
	reg.Register("mfa_enforced", staticFetcher(true))
	reg.Register("endpoint_defense", failingFetcher(errors.New("provider 503")))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("fetch failure must not abort the run: %v", err)
	}
	if res.TotalScore != 10 {
		t.Errorf("TotalScore = %v, want 10 (broken widget scores zero)", res.TotalScore)
	}
	if res.MaxScore != 30 {
		t.Errorf("MaxScore = %v, want 30 (broken widget still counts toward max)", res.MaxScore)
	}
}

func TestCalculateFetchFailureIgnoresFallbackPoints(t *testing.T) {
	// Widgets whose strategies award points for absent or falsy values must
	// still contribute exactly zero when the fetch itself failed.
	ranged := widget.Definition{
		ID:              uuid.New(),
		Key:             "global_admin_count",
		ScoringType:     widget.ScoringBoundedRange,
		Config:          widget.ScoringConfig{Min: 2, Max: 4, InRangePoints: 6, FallbackPoints: 5},
		PointsAvailable: 6,
		Active:          true,
	}
	noPointed := yesNoDef("mail_filtering", 8)
	noPointed.Config.NoPoints = 3
	store := newStubStore(ranged, noPointed)

	reg := widget.NewRegistry()
	reg.Register("global_admin_count", failingFetcher(errors.New("provider 503")))
	reg.Register("mail_filtering", failingFetcher(errors.New("provider 503")))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.TotalScore != 0 {
		t.Errorf("TotalScore = %v, want 0 (no fallback or no-points awards on fetch failure)", res.TotalScore)
	}
	if res.MaxScore != 14 {
		t.Errorf("MaxScore = %v, want 14", res.MaxScore)
	}
}

func TestCalculateMissingFetcherScoresZero(t *testing.T) {
	def := yesNoDef("unregistered_signal", 10)
	store := newStubStore(def)

	calc := widget.NewMaturityCalculator(store, widget.NewRegistry(), stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.TotalScore != 0 || res.MaxScore != 10 {
		t.Errorf("got (%v, %v), want (0, 10)", res.TotalScore, res.MaxScore)
	}
}

func TestCalculateTokenFailureDegradesToZero(t *testing.T) {
	def := yesNoDef("mfa_enforced", 10)
	store := newStubStore(def)

	reg := widget.NewRegistry()
	reg.Register("mfa_enforced", staticFetcher(true))

	calc := widget.NewMaturityCalculator(store, reg, stubTokens{err: errors.New("auth down")}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("token failure must not abort the run: %v", err)
	}
	if res.TotalScore != 0 || res.MaxScore != 10 {
		t.Errorf("got (%v, %v), want (0, 10)", res.TotalScore, res.MaxScore)
	}
}

func TestCalculateManualWidgetUsesOverrideValue(t *testing.T) {
	def := yesNoDef("security_reviews_held", 10)
	def.Manual = true
	store := newStubStore(def)
	tenantID := uuid.New()
	v := 1.0
	store.setOverride(widget.Override{TenantID: tenantID, WidgetID: def.ID, Enabled: true, Manual: true, Value: &v})

	calc := widget.NewMaturityCalculator(store, widget.NewRegistry(), stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.TotalScore != 10 {
		t.Errorf("TotalScore = %v, want 10 (manual value 1 → yes)", res.TotalScore)
	}
}

func TestCalculateSeedsMissingManualOverride(t *testing.T) {
	def := yesNoDef("security_reviews_held", 10)
	def.Manual = true
	store := newStubStore(def)

	calc := widget.NewMaturityCalculator(store, widget.NewRegistry(), stubTokens{}, zap.NewNop())
	res, err := calc.Calculate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if store.seeded != 1 {
		t.Errorf("seeded = %d, want 1", store.seeded)
	}
	// The safe default carries no value yet, so it scores zero.
	if res.TotalScore != 0 || res.MaxScore != 10 {
		t.Errorf("got (%v, %v), want (0, 10)", res.TotalScore, res.MaxScore)
	}
}
