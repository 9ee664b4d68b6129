package widget

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

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ErrNotFound is returned when a widget or override lookup finds no record.
var ErrNotFound = errors.New("widget not found")

// ErrDuplicateKey is returned when a definition insert reuses an existing key.
var ErrDuplicateKey = errors.New("widget key already exists")

// Repository provides CRUD for widget definitions and tenant overrides
// against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateDefinition inserts a new widget definition. Sets ID and timestamps.
func (r *Repository) CreateDefinition(ctx context.Context, d *Definition) error {
	d.ID = uuid.New()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	cfg, err := json.Marshal(d.Config)
	if err != nil {
		return fmt.Errorf("marshal scoring config: %w", err)
	}

	q := `
		INSERT INTO widget_definitions
			(id, key, title, scoring_type, config, points_available, manual, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.db.Exec(ctx, q,
		d.ID, d.Key, d.Title, d.ScoringType, cfg,
		d.PointsAvailable, d.Manual, d.Active, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create widget definition: %w", err)
	}
	return nil
}

// UpdateDefinition updates the editable fields of a widget definition.
func (r *Repository) UpdateDefinition(ctx context.Context, d *Definition) error {
	cfg, err := json.Marshal(d.Config)
	if err != nil {
		return fmt.Errorf("marshal scoring config: %w", err)
	}

	q := `
		UPDATE widget_definitions
		SET title = $2, scoring_type = $3, config = $4, points_available = $5,
		    manual = $6, active = $7, updated_at = $8
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q,
		d.ID, d.Title, d.ScoringType, cfg, d.PointsAvailable, d.Manual, d.Active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update widget definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDefinition retrieves a widget definition by ID.
func (r *Repository) GetDefinition(ctx context.Context, id uuid.UUID) (*Definition, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, key, title, scoring_type, config, points_available, manual, active, created_at, updated_at
		FROM widget_definitions WHERE id = $1`, id)
	return scanDefinition(row)
}

// ListDefinitions returns every widget definition ordered by key.
func (r *Repository) ListDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, key, title, scoring_type, config, points_available, manual, active, created_at, updated_at
		FROM widget_definitions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list widget definitions: %w", err)
	}
	defer rows.Close()

	var out []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetOverride retrieves the override for a (tenant, widget) pair, or nil
// when none exists.
func (r *Repository) GetOverride(ctx context.Context, tenantID, widgetID uuid.UUID) (*Override, error) {
	var o Override
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, widget_id, enabled, value, manual, created_at, updated_at
		FROM tenant_widget_overrides
		WHERE tenant_id = $1 AND widget_id = $2`, tenantID, widgetID).
		Scan(&o.ID, &o.TenantID, &o.WidgetID, &o.Enabled, &o.Value, &o.Manual, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get override: %w", err)
	}
	return &o, nil
}

// SeedOverride lazily creates an override row, ignoring a concurrent insert
// for the same (tenant, widget) pair.
func (r *Repository) SeedOverride(ctx context.Context, o *Override) error {
	o.ID = uuid.New()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	q := `
		INSERT INTO tenant_widget_overrides (id, tenant_id, widget_id, enabled, value, manual, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, widget_id) DO NOTHING`
	_, err := r.db.Exec(ctx, q, o.ID, o.TenantID, o.WidgetID, o.Enabled, o.Value, o.Manual, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("seed override: %w", err)
	}
	return nil
}

// UpsertOverride writes an administrator's override, replacing any existing
// row for the (tenant, widget) pair.
func (r *Repository) UpsertOverride(ctx context.Context, o *Override) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	q := `
		INSERT INTO tenant_widget_overrides (id, tenant_id, widget_id, enabled, value, manual, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, widget_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, value = EXCLUDED.value,
		    manual = EXCLUDED.manual, updated_at = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, q, o.ID, o.TenantID, o.WidgetID, o.Enabled, o.Value, o.Manual, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// ListOverrides returns every override for a tenant.
func (r *Repository) ListOverrides(ctx context.Context, tenantID uuid.UUID) ([]Override, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, widget_id, enabled, value, manual, created_at, updated_at
		FROM tenant_widget_overrides WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ID, &o.TenantID, &o.WidgetID, &o.Enabled, &o.Value, &o.Manual, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanDefinition(row pgx.Row) (*Definition, error) {
	var d Definition
	var cfg []byte
	err := row.Scan(&d.ID, &d.Key, &d.Title, &d.ScoringType, &cfg,
		&d.PointsAvailable, &d.Manual, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan widget definition: %w", err)
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &d.Config); err != nil {
			return nil, fmt.Errorf("unmarshal scoring config: %w", err)
		}
	}
	return &d, nil
}
