package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/postureboard/postureboard/internal/identity"
)

// ErrNotFound is returned when an operator lookup finds no matching record.
var ErrNotFound = errors.New("operator not found")

// ErrDuplicateEmail is returned when a create attempts to reuse a registered email.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository provides CRUD operations for operators against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new operator record. Sets ID, CreatedAt, UpdatedAt on the operator.
func (r *Repository) Create(ctx context.Context, op *Operator) error {
	op.ID = uuid.New()
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	q := `
		INSERT INTO operators (id, email, password_hash, display_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q,
		op.ID, op.Email, op.PasswordHash, op.DisplayName, op.Role,
		op.Active, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create operator: %w", err)
	}
	return nil
}

// GetByID retrieves an operator by their internal UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Operator, error) {
	return r.scanOne(ctx, `SELECT id, email, password_hash, display_name, role, active, created_at, updated_at FROM operators WHERE id = $1`, id)
}

// GetByEmail retrieves an operator by their email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Operator, error) {
	return r.scanOne(ctx, `SELECT id, email, password_hash, display_name, role, active, created_at, updated_at FROM operators WHERE email = $1`, email)
}

// List returns all operators ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Operator, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, email, password_hash, display_name, role, active, created_at, updated_at FROM operators ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var out []Operator
	for rows.Next() {
		var op Operator
		if err := rows.Scan(
			&op.ID, &op.Email, &op.PasswordHash, &op.DisplayName,
			&op.Role, &op.Active, &op.CreatedAt, &op.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// SetPasswordHash updates an operator's password hash.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	q := `UPDATE operators SET password_hash = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, hash, time.Now().UTC())
	return err
}

// SetRole updates an operator's role.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role identity.Role) error {
	q := `UPDATE operators SET role = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, role, time.Now().UTC())
	return err
}

// SetActive enables or disables an operator account.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	q := `UPDATE operators SET active = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, q, id, active, time.Now().UTC())
	return err
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*Operator, error) {
	var op Operator
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&op.ID, &op.Email, &op.PasswordHash, &op.DisplayName,
		&op.Role, &op.Active, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	return &op, nil
}
