// Package snapshot maintains the per-tenant time series of posture scores.
// Each capture combines the locally computed maturity score with the
// provider's aggregate secure score into one row per (tenant, calendar day),
// upserted so overlapping captures cannot duplicate rows. Rows older than
// the retention horizon are pruned on the monthly sweep.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/widget"
	"go.uber.org/zap"
)

// RetentionMonths is how long snapshot history is kept.
const RetentionMonths = 12

// feedLookback bounds how far back a secure-score feed entry may be and
// still count as current.
const feedLookback = 2 * 365 * 24 * time.Hour

// maturityCalculator computes a tenant's widget-based maturity score.
type maturityCalculator interface {
	Calculate(ctx context.Context, tenantID uuid.UUID) (widget.MaturityResult, error)
}

// snapshotStore is the storage interface consumed by Service.
type snapshotStore interface {
	Upsert(ctx context.Context, s *ScoreSnapshot) error
	ExistsForMonth(ctx context.Context, tenantID uuid.UUID, day time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error)
}

// Service captures and prunes score snapshots.
type Service struct {
	store    snapshotStore
	maturity maturityCalculator
	feed     SecureScoreFeed
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a snapshot Service. feed may be nil when no aggregate
// score provider is configured; snapshots then carry zero secure scores.
func NewService(store snapshotStore, maturity maturityCalculator, feed SecureScoreFeed, logger *zap.Logger) *Service {
	return &Service{store: store, maturity: maturity, feed: feed, now: time.Now, logger: logger}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Capture scores the tenant and upserts today's snapshot row. Capturing
// twice on the same day overwrites the earlier values in place.
func (s *Service) Capture(ctx context.Context, tenantID uuid.UUID) (*ScoreSnapshot, error) {
	res, err := s.maturity.Calculate(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("calculate maturity: %w", err)
	}

	snap := &ScoreSnapshot{
		TenantID: tenantID,
		Date:     dayOf(s.now()),
		Total:    res.TotalScore,
		Max:      res.MaxScore,
		Percent:  percentOf(res.TotalScore, res.MaxScore),
	}

	if s.feed != nil {
		entries, err := s.feed.Scores(ctx, tenantID)
		if err != nil {
			// Feed failures degrade to a zero secure score, not a failed capture.
			s.logger.Warn("secure score feed failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else if latest, ok := latestWithin(entries, s.now().Add(-feedLookback)); ok {
			snap.SecureScore = latest.Current
			snap.SecureMax = latest.Max
			snap.SecurePercent = percentOf(latest.Current, latest.Max)
		}
	}

	if err := s.store.Upsert(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// CapturedThisMonth reports whether the tenant already has a snapshot in
// the current calendar month.
func (s *Service) CapturedThisMonth(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return s.store.ExistsForMonth(ctx, tenantID, s.now())
}

// Prune deletes the tenant's snapshots older than the retention horizon.
func (s *Service) Prune(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	cutoff := s.now().AddDate(0, -RetentionMonths, 0)
	n, err := s.store.DeleteOlderThan(ctx, tenantID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned snapshots",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("deleted", n),
		)
	}
	return n, nil
}
