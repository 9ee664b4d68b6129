package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for bad email/password pairs and
// disabled accounts alike, so login failures are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// operatorRepo is the storage interface consumed by Service.
type operatorRepo interface {
	Create(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*Operator, error)
	GetByEmail(ctx context.Context, email string) (*Operator, error)
	List(ctx context.Context) ([]Operator, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetRole(ctx context.Context, id uuid.UUID, role identity.Role) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// Service implements business logic for operator account management.
type Service struct {
	repo   operatorRepo
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(repo operatorRepo, tokens *identity.TokenIssuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Create registers a new operator account with the given role.
func (s *Service) Create(ctx context.Context, email, password, displayName string, role identity.Role) (*Operator, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if displayName == "" {
		displayName = email
	}

	op := &Operator{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, op); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create operator: %w", err)
	}

	s.logger.Info("operator created",
		zap.String("operator_id", op.ID.String()),
		zap.String("role", string(op.Role)),
	)
	return op, nil
}

// Login verifies email/password credentials and returns the operator plus a
// signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Operator, string, error) {
	op, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup operator: %w", err)
	}

	if !op.Active {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(op.ID.String(), op.Email, op.Role)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return op, token, nil
}

// ChangePassword verifies the current password and sets a new one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	op, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get operator: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("operator password changed", zap.String("operator_id", id.String()))
	return nil
}

// SetRole changes an operator's role.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role identity.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.repo.SetRole(ctx, id, role)
}

// SetActive enables or disables an operator account.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// GetByID retrieves an operator by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Operator, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all operator accounts.
func (s *Service) List(ctx context.Context) ([]Operator, error) {
	return s.repo.List(ctx)
}
