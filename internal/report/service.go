// Package report implements the quarterly risk report: its frozen metrics
// payload, the five-category risk decomposition, the role-gated lifecycle
// state machine, and persistence.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/audit"
	"github.com/postureboard/postureboard/internal/identity"
	"go.uber.org/zap"
)

// reportStore is the storage interface consumed by Service.
type reportStore interface {
	Create(ctx context.Context, rep *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int) (*Report, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Report, error)
	UpdateFields(ctx context.Context, rep *Report) error
	UpdateStatus(ctx context.Context, rep *Report) error
	DeleteByPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int) error
	AddRecipient(ctx context.Context, rec *Recipient) error
	ListRecipients(ctx context.Context, reportID uuid.UUID) ([]Recipient, error)
}

// MetricsCollector assembles the security-metrics payload for a tenant at
// report-creation time. The payload is frozen into the report.
type MetricsCollector interface {
	Collect(ctx context.Context, tenantID uuid.UUID) (SecurityMetrics, error)
}

// auditLog records lifecycle transitions. May be nil-free by using a noop in
// tests.
type auditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

// FieldUpdate carries an edit of the report's free-text fields. Nil means
// leave the field unchanged.
type FieldUpdate struct {
	Summary         *string
	Recommendations *string
	AnalystComments *string
}

// Service implements report creation, edits, and lifecycle transitions.
type Service struct {
	store   reportStore
	metrics MetricsCollector
	audits  auditLog
	logger  *zap.Logger
}

// NewService creates a report Service.
func NewService(store reportStore, metrics MetricsCollector, audits auditLog, logger *zap.Logger) *Service {
	return &Service{store: store, metrics: metrics, audits: audits, logger: logger}
}

// CreateForPeriod creates the tenant's report for a quarter. The metrics
// payload is collected once, frozen into the report, and scored. Returns
// ErrDuplicatePeriod when a report already exists and force is false; with
// force, an unsent report and its recipients are replaced. A sent report is
// immutable and force refresh fails with ErrSentImmutable.
func (s *Service) CreateForPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int, createdBy string, force bool) (*Report, error) {
	if quarter < 1 || quarter > 4 {
		return nil, fmt.Errorf("invalid quarter %d", quarter)
	}

	if force {
		existing, err := s.store.GetByPeriod(ctx, tenantID, quarter, year)
		switch {
		case errors.Is(err, ErrNotFound):
			// Nothing to replace.
		case err != nil:
			return nil, fmt.Errorf("force refresh: %w", err)
		case existing.Status == StatusSent:
			return nil, ErrSentImmutable
		default:
			if err := s.store.DeleteByPeriod(ctx, tenantID, quarter, year); err != nil {
				return nil, fmt.Errorf("force refresh: %w", err)
			}
		}
	}

	metrics, err := s.metrics.Collect(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	scores := DecomposeRisk(metrics)
	start, end := Period(quarter, year)

	rep := &Report{
		TenantID:     tenantID,
		Quarter:      quarter,
		Year:         year,
		PeriodStart:  start,
		PeriodEnd:    end,
		Metrics:      metrics,
		IdentityRisk: scores.Identity,
		TrainingRisk: scores.Training,
		DeviceRisk:   scores.Device,
		CloudRisk:    scores.Cloud,
		ThreatRisk:   scores.Threat,
		OverallRisk:  scores.Overall,
		Status:       StatusNew,
		CreatedBy:    createdBy,
	}

	if err := s.store.Create(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info("report created",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("quarter", quarter),
		zap.Int("year", year),
		zap.Int("overall_risk", rep.OverallRisk),
	)
	return rep, nil
}

// Get retrieves a report by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.store.GetByID(ctx, id)
}

// ListForTenant returns a tenant's reports.
func (s *Service) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]Report, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// ExistsForPeriod reports whether the tenant already has a report for the quarter.
func (s *Service) ExistsForPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int) (bool, error) {
	_, err := s.store.GetByPeriod(ctx, tenantID, quarter, year)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateFields edits the report's free-text fields. Allowed for admins and
// analysts regardless of status, and never changes the status.
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, actor Actor, upd FieldUpdate) (*Report, error) {
	if !CanEditFields(actor.Role) {
		return nil, ErrForbidden
	}

	rep, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Summary != nil {
		rep.Summary = *upd.Summary
	}
	if upd.Recommendations != nil {
		rep.Recommendations = *upd.Recommendations
	}
	if upd.AnalystComments != nil {
		rep.AnalystComments = *upd.AnalystComments
	}
	if err := s.store.UpdateFields(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// ApplyTransition advances a report through the lifecycle state machine and
// records the transition in the audit log.
func (s *Service) ApplyTransition(ctx context.Context, id uuid.UUID, target Status, actor Actor) (*Report, error) {
	rep, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := rep.Status
	if err := Transition(rep, target, actor); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, rep); err != nil {
		return nil, err
	}

	if err := s.audits.Record(ctx, audit.Entry{
		ReportID: rep.ID,
		Actor:    actor.ID,
		Role:     string(actor.Role),
		Action:   "transition",
		From:     string(from),
		To:       string(rep.Status),
	}); err != nil {
		// The transition is already durable; a failed audit write is logged,
		// not rolled back.
		s.logger.Error("audit record failed",
			zap.String("report_id", rep.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("report transitioned",
		zap.String("report_id", rep.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(rep.Status)),
		zap.String("actor", actor.ID),
	)
	return rep, nil
}

// AddRecipient attaches a distribution target to a report. Admin only.
func (s *Service) AddRecipient(ctx context.Context, reportID uuid.UUID, actor Actor, email, name string) (*Recipient, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	rec := &Recipient{ReportID: reportID, Email: email, Name: name}
	if err := s.store.AddRecipient(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Recipients returns a report's distribution targets.
func (s *Service) Recipients(ctx context.Context, reportID uuid.UUID) ([]Recipient, error) {
	return s.store.ListRecipients(ctx, reportID)
}
