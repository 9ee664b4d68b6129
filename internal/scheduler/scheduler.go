// Package scheduler drives the two periodic batches: quarterly report
// creation and the monthly snapshot capture plus retention sweep. Batches
// iterate tenants sequentially, isolate per-tenant failures, and honor
// context cancellation between tenants.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/snapshot"
	"github.com/postureboard/postureboard/internal/tenant"
	"go.uber.org/zap"
)

// tenantLister enumerates batch targets.
type tenantLister interface {
	ListActive(ctx context.Context) ([]tenant.Tenant, error)
}

// snapshotter captures and prunes score snapshots.
type snapshotter interface {
	Capture(ctx context.Context, tenantID uuid.UUID) (*snapshot.ScoreSnapshot, error)
	CapturedThisMonth(ctx context.Context, tenantID uuid.UUID) (bool, error)
	Prune(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// reportCreator creates quarterly reports.
type reportCreator interface {
	CreateForPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int, createdBy string, force bool) (*report.Report, error)
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    map[uuid.UUID]error
}

// Scheduler owns the periodic batch jobs.
type Scheduler struct {
	tenants   tenantLister
	snapshots snapshotter
	reports   reportCreator
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Scheduler.
func New(tenants tenantLister, snapshots snapshotter, reports reportCreator, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tenants:   tenants,
		snapshots: snapshots,
		reports:   reports,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock overrides the scheduler clock. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start launches both periodic loops and blocks until ctx is canceled.
// Both jobs are idempotent per period, so the check interval only bounds
// how quickly a missed window is caught up. One run fires immediately so
// a restarted server does not wait a full interval to catch up.
func (s *Scheduler) Start(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if res, err := s.RunSnapshotSweep(ctx); err != nil {
		s.logger.Error("snapshot sweep aborted", zap.Error(err))
	} else {
		s.logBatch("snapshot sweep", res)
	}
	if res, err := s.RunQuarterlyReports(ctx, false); err != nil {
		s.logger.Error("quarterly report batch aborted", zap.Error(err))
	} else {
		s.logBatch("quarterly reports", res)
	}
}

// RunSnapshotSweep captures one snapshot per tenant (skipping tenants that
// already have one this month) and then prunes expired history. A single
// tenant's failure is collected and the batch continues.
func (s *Scheduler) RunSnapshotSweep(ctx context.Context) (*BatchResult, error) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{Failed: make(map[uuid.UUID]error)}
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		done, err := s.snapshots.CapturedThisMonth(ctx, t.ID)
		if err != nil {
			s.failTenant(res, t.ID, "snapshot check", err)
			continue
		}
		if done {
			res.Skipped++
		} else {
			if _, err := s.snapshots.Capture(ctx, t.ID); err != nil {
				s.failTenant(res, t.ID, "snapshot capture", err)
				continue
			}
			res.Processed++
		}

		// Retention runs even for skipped tenants; its failure must not
		// shadow a successful capture.
		if _, err := s.snapshots.Prune(ctx, t.ID); err != nil {
			s.logger.Warn("retention sweep failed",
				zap.String("tenant_id", t.ID.String()),
				zap.Error(err),
			)
		}
	}
	return res, nil
}

// RunQuarterlyReports attempts report creation for the most recently ended
// quarter across all tenants, skipping silently where one already exists
// unless force is set.
func (s *Scheduler) RunQuarterlyReports(ctx context.Context, force bool) (*BatchResult, error) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	quarter, year := PreviousQuarter(s.now())
	res := &BatchResult{Failed: make(map[uuid.UUID]error)}
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, err := s.reports.CreateForPeriod(ctx, t.ID, quarter, year, "scheduler", force)
		if err != nil {
			if errors.Is(err, report.ErrDuplicatePeriod) {
				res.Skipped++
				continue
			}
			s.failTenant(res, t.ID, "report creation", err)
			continue
		}
		res.Processed++
	}
	return res, nil
}

// PreviousQuarter returns the most recently completed calendar quarter.
func PreviousQuarter(now time.Time) (quarter, year int) {
	now = now.UTC()
	quarter = (int(now.Month()) - 1) / 3 // 0-based current quarter
	year = now.Year()
	if quarter == 0 {
		return 4, year - 1
	}
	return quarter, year
}

func (s *Scheduler) failTenant(res *BatchResult, tenantID uuid.UUID, step string, err error) {
	res.Failed[tenantID] = err
	s.logger.Error("batch step failed for tenant",
		zap.String("tenant_id", tenantID.String()),
		zap.String("step", step),
		zap.Error(err),
	)
}

func (s *Scheduler) logBatch(job string, res *BatchResult) {
	s.logger.Info("batch finished",
		zap.String("job", job),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failed)),
	)
}
