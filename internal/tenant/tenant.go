// Package tenant holds the minimal client-organization records the scoring
// engine needs to enumerate batch targets. Full tenant management lives in
// the surrounding dashboard, not here.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a tenant lookup finds no record.
var ErrNotFound = errors.New("tenant not found")

// Tenant is one client organization.
type Tenant struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	Active    bool      `json:"active"     db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Repository provides tenant storage against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a tenant. Sets ID and timestamps.
func (r *Repository) Create(ctx context.Context, t *Tenant) error {
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	q := `INSERT INTO tenants (id, name, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, q, t.ID, t.Name, t.Active, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.db.QueryRow(ctx, `
		SELECT id, name, active, created_at, updated_at FROM tenants WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// ListActive returns every active tenant ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Tenant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, active, created_at, updated_at FROM tenants WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
