package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/snapshot"
	"github.com/postureboard/postureboard/internal/tenant"
	"go.uber.org/zap"
)

type stubTenantLister struct {
	tenants []tenant.Tenant
	err     error
}

func (s *stubTenantLister) ListActive(ctx context.Context) ([]tenant.Tenant, error) {
	return s.tenants, s.err
}

type stubSnapshotter struct {
	captured      map[uuid.UUID]int
	pruned        map[uuid.UUID]int
	alreadyDone   map[uuid.UUID]bool
	captureErrFor map[uuid.UUID]error
	pruneErr      error
}

func newStubSnapshotter() *stubSnapshotter {
	return &stubSnapshotter{
		captured:      make(map[uuid.UUID]int),
		pruned:        make(map[uuid.UUID]int),
		alreadyDone:   make(map[uuid.UUID]bool),
		captureErrFor: make(map[uuid.UUID]error),
	}
}

func (s *stubSnapshotter) Capture(ctx context.Context, tenantID uuid.UUID) (*snapshot.ScoreSnapshot, error) {
	if err := s.captureErrFor[tenantID]; err != nil {
		return nil, err
	}
	s.captured[tenantID]++
	return &snapshot.ScoreSnapshot{TenantID: tenantID}, nil
}

func (s *stubSnapshotter) CapturedThisMonth(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return s.alreadyDone[tenantID], nil
}

func (s *stubSnapshotter) Prune(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if s.pruneErr != nil {
		return 0, s.pruneErr
	}
	s.pruned[tenantID]++
	return 0, nil
}

type stubReportCreator struct {
	created      map[uuid.UUID]int
	duplicateFor map[uuid.UUID]bool
	errFor       map[uuid.UUID]error
	lastQuarter  int
	lastYear     int
}

func newStubReportCreator() *stubReportCreator {
	return &stubReportCreator{
		created:      make(map[uuid.UUID]int),
		duplicateFor: make(map[uuid.UUID]bool),
		errFor:       make(map[uuid.UUID]error),
	}
}

func (s *stubReportCreator) CreateForPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int, createdBy string, force bool) (*report.Report, error) {
	s.lastQuarter = quarter
	s.lastYear = year
	if err := s.errFor[tenantID]; err != nil {
		return nil, err
	}
	if s.duplicateFor[tenantID] && !force {
		return nil, report.ErrDuplicatePeriod
	}
	s.created[tenantID]++
	return &report.Report{ID: uuid.New(), TenantID: tenantID, Quarter: quarter, Year: year}, nil
}

func testTenants(n int) []tenant.Tenant {
	out := make([]tenant.Tenant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tenant.Tenant{ID: uuid.New(), Name: "tenant", Active: true})
	}
	return out
}

func TestSnapshotSweepCapturesAndPrunes(t *testing.T) {
	tenants := testTenants(3)
	lister := &stubTenantLister{tenants: tenants}
	snaps := newStubSnapshotter()
	s := New(lister, snaps, newStubReportCreator(), zap.NewNop())

	res, err := s.RunSnapshotSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSnapshotSweep: %v", err)
	}
	if res.Processed != 3 || res.Skipped != 0 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, tn := range tenants {
		if snaps.captured[tn.ID] != 1 {
			t.Errorf("tenant %s captured %d times", tn.ID, snaps.captured[tn.ID])
		}
		if snaps.pruned[tn.ID] != 1 {
			t.Errorf("tenant %s pruned %d times", tn.ID, snaps.pruned[tn.ID])
		}
	}
}

func TestSnapshotSweepSkipsCapturedTenants(t *testing.T) {
	tenants := testTenants(2)
	lister := &stubTenantLister{tenants: tenants}
	snaps := newStubSnapshotter()
	snaps.alreadyDone[tenants[0].ID] = true
	s := New(lister, snaps, newStubReportCreator(), zap.NewNop())

	res, err := s.RunSnapshotSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSnapshotSweep: %v", err)
	}
	if res.Processed != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if snaps.captured[tenants[0].ID] != 0 {
		t.Error("skipped tenant was captured")
	}
	if snaps.pruned[tenants[0].ID] != 1 {
		t.Error("skipped tenant was not pruned")
	}
}

func TestSnapshotSweepIsolatesTenantFailure(t *testing.T) {
	tenants := testTenants(3)
	lister := &stubTenantLister{tenants: tenants}
	snaps := newStubSnapshotter()
	snaps.captureErrFor[tenants[1].ID] = errors.New("provider down")
	s := New(lister, snaps, newStubReportCreator(), zap.NewNop())

	res, err := s.RunSnapshotSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSnapshotSweep: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("processed = %d, want 2", res.Processed)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(res.Failed))
	}
	if _, ok := res.Failed[tenants[1].ID]; !ok {
		t.Error("failed tenant not recorded")
	}
	if snaps.captured[tenants[2].ID] != 1 {
		t.Error("batch did not continue past the failed tenant")
	}
}

func TestSnapshotSweepStopsOnCancellation(t *testing.T) {
	tenants := testTenants(5)
	lister := &stubTenantLister{tenants: tenants}
	snaps := newStubSnapshotter()
	s := New(lister, snaps, newStubReportCreator(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.RunSnapshotSweep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Processed != 0 {
		t.Fatalf("processed = %d after cancellation", res.Processed)
	}
}

func TestQuarterlyReportsSkipsDuplicates(t *testing.T) {
	tenants := testTenants(2)
	lister := &stubTenantLister{tenants: tenants}
	reports := newStubReportCreator()
	reports.duplicateFor[tenants[0].ID] = true
	s := New(lister, newStubSnapshotter(), reports, zap.NewNop())

	res, err := s.RunQuarterlyReports(context.Background(), false)
	if err != nil {
		t.Fatalf("RunQuarterlyReports: %v", err)
	}
	if res.Processed != 1 || res.Skipped != 1 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQuarterlyReportsIsolatesFailure(t *testing.T) {
	tenants := testTenants(3)
	lister := &stubTenantLister{tenants: tenants}
	reports := newStubReportCreator()
	reports.errFor[tenants[0].ID] = errors.New("metrics unavailable")
	s := New(lister, newStubSnapshotter(), reports, zap.NewNop())

	res, err := s.RunQuarterlyReports(context.Background(), false)
	if err != nil {
		t.Fatalf("RunQuarterlyReports: %v", err)
	}
	if res.Processed != 2 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQuarterlyReportsTargetsPreviousQuarter(t *testing.T) {
	lister := &stubTenantLister{tenants: testTenants(1)}
	reports := newStubReportCreator()
	s := New(lister, newStubSnapshotter(), reports, zap.NewNop())
	s.SetClock(func() time.Time {
		return time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	})

	if _, err := s.RunQuarterlyReports(context.Background(), false); err != nil {
		t.Fatalf("RunQuarterlyReports: %v", err)
	}
	if reports.lastQuarter != 4 || reports.lastYear != 2024 {
		t.Fatalf("period = Q%d %d, want Q4 2024", reports.lastQuarter, reports.lastYear)
	}
}

func TestPreviousQuarter(t *testing.T) {
	cases := []struct {
		month  time.Month
		year   int
		wantQ  int
		wantYr int
	}{
		{time.January, 2025, 4, 2024},
		{time.March, 2025, 4, 2024},
		{time.April, 2025, 1, 2025},
		{time.July, 2025, 2, 2025},
		{time.October, 2025, 3, 2025},
		{time.December, 2025, 3, 2025},
	}
	for _, c := range cases {
		q, y := PreviousQuarter(time.Date(c.year, c.month, 15, 0, 0, 0, 0, time.UTC))
		if q != c.wantQ || y != c.wantYr {
			t.Errorf("PreviousQuarter(%s %d) = Q%d %d, want Q%d %d", c.month, c.year, q, y, c.wantQ, c.wantYr)
		}
	}
}

func TestStartRunsImmediately(t *testing.T) {
	tenantID := uuid.New()
	lister := &stubTenantLister{tenants: []tenant.Tenant{{ID: tenantID}}}
	snaps := newStubSnapshotter()
	reports := newStubReportCreator()
	s := New(lister, snaps, reports, zap.NewNop())

	// The check interval is far longer than the test: only the initial run
	// can account for any work observed before cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	s.Start(ctx, time.Hour)

	if snaps.captured[tenantID] != 1 {
		t.Errorf("captured = %d, want 1 from the initial run", snaps.captured[tenantID])
	}
	if reports.created[tenantID] != 1 {
		t.Errorf("reports created = %d, want 1 from the initial run", reports.created[tenantID])
	}
}
