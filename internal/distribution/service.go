// Package distribution sends the rendered report artifact to every
// registered recipient and moves the report to sent only when all of them
// succeeded.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/email"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/report/render"
	"go.uber.org/zap"
)

// ErrNotReady is returned when distribution is requested for a report that
// is not in manager_ready state.
var ErrNotReady = errors.New("report is not approved for distribution")

// ErrNoRecipients is returned when a report has no distribution targets.
var ErrNoRecipients = errors.New("report has no recipients")

// reportStore is the storage interface consumed by the distributor.
type reportStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error)
	ListRecipients(ctx context.Context, reportID uuid.UUID) ([]report.Recipient, error)
	MarkRecipientSent(ctx context.Context, recipientID uuid.UUID, at time.Time) error
	UpdateStatus(ctx context.Context, rep *report.Report) error
}

// Result aggregates per-recipient outcomes of one distribution run.
type Result struct {
	ReportID uuid.UUID         `json:"report_id"`
	Sent     []string          `json:"sent"`
	Skipped  []string          `json:"skipped"` // already sent in an earlier run
	Failed   map[string]string `json:"failed"`  // email → error
}

// Complete reports whether every recipient has now received the artifact.
func (r *Result) Complete() bool {
	return len(r.Failed) == 0
}

// Service distributes rendered report artifacts.
type Service struct {
	store  reportStore
	mailer email.Sender
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a distribution Service.
func NewService(store reportStore, mailer email.Sender, logger *zap.Logger) *Service {
	return &Service{store: store, mailer: mailer, now: time.Now, logger: logger}
}

// Distribute renders the report once and sends it to every recipient that
// has not already received it. Recipients that succeed are stamped even if
// others fail; the report reaches sent only when no recipient is left
// unsent. Re-invoking Distribute is the retry mechanism.
func (s *Service) Distribute(ctx context.Context, reportID uuid.UUID) (*Result, error) {
	rep, err := s.store.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Status != report.StatusManagerReady {
		return nil, fmt.Errorf("%w: status is %s", ErrNotReady, rep.Status)
	}

	recipients, err := s.store.ListRecipients(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	artifact, err := render.Render(rep)
	if err != nil {
		return nil, err
	}
	attachment := email.Attachment{
		Filename:    render.Filename(rep),
		ContentType: "application/pdf",
		Data:        artifact,
	}

	subject := fmt.Sprintf("Security Posture Report — Q%d %d", rep.Quarter, rep.Year)
	result := &Result{ReportID: reportID, Failed: make(map[string]string)}

	for _, rec := range recipients {
		if rec.SentAt != nil {
			result.Skipped = append(result.Skipped, rec.Email)
			continue
		}

		body := mailBody(rep, rec)
		if err := s.mailer.Send(ctx, rec.Email, subject, body, attachment); err != nil {
			s.logger.Warn("recipient send failed",
				zap.String("report_id", reportID.String()),
				zap.String("recipient", rec.Email),
				zap.Error(err),
			)
			result.Failed[rec.Email] = err.Error()
			continue
		}

		if err := s.store.MarkRecipientSent(ctx, rec.ID, s.now()); err != nil {
			// Delivery happened; a failed stamp only risks a duplicate send on retry.
			s.logger.Error("mark recipient sent failed",
				zap.String("recipient", rec.Email),
				zap.Error(err),
			)
		}
		result.Sent = append(result.Sent, rec.Email)
	}

	if result.Complete() {
		if err := report.MarkSent(rep, s.now()); err != nil {
			return result, err
		}
		if err := s.store.UpdateStatus(ctx, rep); err != nil {
			return result, fmt.Errorf("finalize sent status: %w", err)
		}
		s.logger.Info("report distributed",
			zap.String("report_id", reportID.String()),
			zap.Int("recipients", len(recipients)),
		)
	}

	return result, nil
}

func mailBody(rep *report.Report, rec report.Recipient) string {
	name := rec.Name
	if name == "" {
		name = rec.Email
	}
	return fmt.Sprintf(
		`<p>Hello %s,</p>
<p>Please find attached your security posture report for Q%d %d.</p>
<p>Overall risk score: <strong>%d (%s)</strong></p>`,
		name, rep.Quarter, rep.Year, rep.OverallRisk, report.BandOf(rep.OverallRisk),
	)
}
