package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides report and recipient storage against PostgreSQL.
// The reports table carries UNIQUE (tenant_id, quarter, year), which closes
// the duplicate-creation race under concurrent quarterly triggers.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new report. Sets ID and timestamps. Returns
// ErrDuplicatePeriod when a report already exists for the period.
func (r *Repository) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	now := time.Now().UTC()
	rep.CreatedAt = now
	rep.UpdatedAt = now

	metrics, err := json.Marshal(rep.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	q := `
		INSERT INTO reports
			(id, tenant_id, quarter, year, period_start, period_end, metrics,
			 identity_risk, training_risk, device_risk, cloud_risk, threat_risk, overall_risk,
			 summary, recommendations, analyst_comments,
			 status, created_by, approved_by, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err = r.db.Exec(ctx, q,
		rep.ID, rep.TenantID, rep.Quarter, rep.Year, rep.PeriodStart, rep.PeriodEnd, metrics,
		rep.IdentityRisk, rep.TrainingRisk, rep.DeviceRisk, rep.CloudRisk, rep.ThreatRisk, rep.OverallRisk,
		rep.Summary, rep.Recommendations, rep.AnalystComments,
		rep.Status, rep.CreatedBy, rep.ApprovedBy, rep.SentAt, rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePeriod
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	row := r.db.QueryRow(ctx, selectReport+` WHERE id = $1`, id)
	return scanReport(row)
}

// GetByPeriod retrieves the tenant's report for a quarter.
func (r *Repository) GetByPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int) (*Report, error) {
	row := r.db.QueryRow(ctx, selectReport+`
		WHERE tenant_id = $1 AND quarter = $2 AND year = $3`, tenantID, quarter, year)
	return scanReport(row)
}

// ListByTenant returns a tenant's reports, newest period first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Report, error) {
	rows, err := r.db.Query(ctx, selectReport+`
		WHERE tenant_id = $1 ORDER BY year DESC, quarter DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

// UpdateFields persists the free-text fields.
func (r *Repository) UpdateFields(ctx context.Context, rep *Report) error {
	q := `
		UPDATE reports
		SET summary = $2, recommendations = $3, analyst_comments = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, rep.ID, rep.Summary, rep.Recommendations, rep.AnalystComments, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus persists the lifecycle fields after an in-memory transition.
func (r *Repository) UpdateStatus(ctx context.Context, rep *Report) error {
	q := `
		UPDATE reports
		SET status = $2, approved_by = $3, sent_at = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, rep.ID, rep.Status, rep.ApprovedBy, rep.SentAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPeriod removes the tenant's unsent report for a quarter along with
// its recipients (cascade). Used only by force refresh; sent rows are never
// matched so distributed history cannot be deleted.
func (r *Repository) DeleteByPeriod(ctx context.Context, tenantID uuid.UUID, quarter, year int) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM reports
		WHERE tenant_id = $1 AND quarter = $2 AND year = $3 AND status <> $4`,
		tenantID, quarter, year, StatusSent)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// AddRecipient attaches a distribution target to a report.
func (r *Repository) AddRecipient(ctx context.Context, rec *Recipient) error {
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now().UTC()

	q := `
		INSERT INTO report_recipients (id, report_id, email, name, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, q, rec.ID, rec.ReportID, rec.Email, rec.Name, rec.SentAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}
	return nil
}

// ListRecipients returns a report's recipients.
func (r *Repository) ListRecipients(ctx context.Context, reportID uuid.UUID) ([]Recipient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, report_id, email, name, sent_at, created_at
		FROM report_recipients WHERE report_id = $1 ORDER BY email`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.ID, &rec.ReportID, &rec.Email, &rec.Name, &rec.SentAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkRecipientSent stamps a recipient's successful individual send.
func (r *Repository) MarkRecipientSent(ctx context.Context, recipientID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE report_recipients SET sent_at = $2 WHERE id = $1`, recipientID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark recipient sent: %w", err)
	}
	return nil
}

const selectReport = `
	SELECT id, tenant_id, quarter, year, period_start, period_end, metrics,
	       identity_risk, training_risk, device_risk, cloud_risk, threat_risk, overall_risk,
	       summary, recommendations, analyst_comments,
	       status, created_by, approved_by, sent_at, created_at, updated_at
	FROM reports`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	var metrics []byte
	err := row.Scan(&rep.ID, &rep.TenantID, &rep.Quarter, &rep.Year, &rep.PeriodStart, &rep.PeriodEnd, &metrics,
		&rep.IdentityRisk, &rep.TrainingRisk, &rep.DeviceRisk, &rep.CloudRisk, &rep.ThreatRisk, &rep.OverallRisk,
		&rep.Summary, &rep.Recommendations, &rep.AnalystComments,
		&rep.Status, &rep.CreatedBy, &rep.ApprovedBy, &rep.SentAt, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &rep.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	return &rep, nil
}
