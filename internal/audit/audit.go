// Package audit records who performed which report lifecycle transition.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one append-only audit record.
type Entry struct {
	ID       uuid.UUID `json:"id"        db:"id"`
	ReportID uuid.UUID `json:"report_id" db:"report_id"`
	Actor    string    `json:"actor"     db:"actor"`
	Role     string    `json:"role"      db:"role"`
	Action   string    `json:"action"    db:"action"`
	From     string    `json:"from"      db:"from_status"`
	To       string    `json:"to"        db:"to_status"`
	At       time.Time `json:"at"        db:"occurred_at"`
}

// Repository persists audit entries against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record appends one audit entry.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	e.ID = uuid.New()
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	q := `
		INSERT INTO audit_log (id, report_id, actor, role, action, from_status, to_status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q, e.ID, e.ReportID, e.Actor, e.Role, e.Action, e.From, e.To, e.At)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListByReport returns a report's audit trail, oldest first.
func (r *Repository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, report_id, actor, role, action, from_status, to_status, occurred_at
		FROM audit_log WHERE report_id = $1 ORDER BY occurred_at`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ReportID, &e.Actor, &e.Role, &e.Action, &e.From, &e.To, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
