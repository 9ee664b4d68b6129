package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a snapshot lookup finds no record.
var ErrNotFound = errors.New("snapshot not found")

// Repository provides snapshot storage against PostgreSQL. The
// score_snapshots table carries UNIQUE (tenant_id, snapshot_date), which is
// the correctness mechanism for overlapping captures on the same day.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert writes a snapshot row, updating in place when one already exists
// for the (tenant, date) pair.
func (r *Repository) Upsert(ctx context.Context, s *ScoreSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	q := `
		INSERT INTO score_snapshots
			(id, tenant_id, snapshot_date, total_score, max_score, percent,
			 secure_score, secure_max, secure_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, snapshot_date) DO UPDATE
		SET total_score = EXCLUDED.total_score,
		    max_score = EXCLUDED.max_score,
		    percent = EXCLUDED.percent,
		    secure_score = EXCLUDED.secure_score,
		    secure_max = EXCLUDED.secure_max,
		    secure_percent = EXCLUDED.secure_percent,
		    updated_at = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, q,
		s.ID, s.TenantID, s.Date, s.Total, s.Max, s.Percent,
		s.SecureScore, s.SecureMax, s.SecurePercent, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// GetByDay retrieves the snapshot for a tenant on a calendar day.
func (r *Repository) GetByDay(ctx context.Context, tenantID uuid.UUID, day time.Time) (*ScoreSnapshot, error) {
	row := r.db.QueryRow(ctx, selectCols+`
		WHERE tenant_id = $1 AND snapshot_date = $2`, tenantID, dayOf(day))
	return scanSnapshot(row)
}

// ListRange returns a tenant's snapshots within [from, to], oldest first.
func (r *Repository) ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ScoreSnapshot, error) {
	rows, err := r.db.Query(ctx, selectCols+`
		WHERE tenant_id = $1 AND snapshot_date BETWEEN $2 AND $3
		ORDER BY snapshot_date`, tenantID, dayOf(from), dayOf(to))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []ScoreSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ExistsForMonth reports whether the tenant already has a snapshot in the
// calendar month containing day.
func (r *Repository) ExistsForMonth(ctx context.Context, tenantID uuid.UUID, day time.Time) (bool, error) {
	y, m, _ := day.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM score_snapshots
			WHERE tenant_id = $1 AND snapshot_date >= $2 AND snapshot_date < $3
		)`, tenantID, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check month snapshot: %w", err)
	}
	return exists, nil
}

// DeleteOlderThan removes a tenant's snapshots dated before cutoff and
// returns the number deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM score_snapshots WHERE tenant_id = $1 AND snapshot_date < $2`,
		tenantID, dayOf(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectCols = `
	SELECT id, tenant_id, snapshot_date, total_score, max_score, percent,
	       secure_score, secure_max, secure_percent, created_at, updated_at
	FROM score_snapshots`

func scanSnapshot(row pgx.Row) (*ScoreSnapshot, error) {
	var s ScoreSnapshot
	err := row.Scan(&s.ID, &s.TenantID, &s.Date, &s.Total, &s.Max, &s.Percent,
		&s.SecureScore, &s.SecureMax, &s.SecurePercent, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &s, nil
}
