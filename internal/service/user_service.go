package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordLength = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleNotAllowed     = fmt.Errorf("%w: only buyer and seller accounts can be registered", domain.ErrInvalidArgument)
)

type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

type UserService struct {
	users UserRepository
	log   *zap.Logger
	cost  int
}

func NewUserService(users UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log, cost: bcrypt.DefaultCost}
}

// SetCost changes the bcrypt work factor used for new password hashes.
func (s *UserService) SetCost(cost int) {
	s.cost = cost
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrUserPasswordTooWeak
	}
	if len(req.Password) > maxPasswordLength {
		return nil, domain.ErrUserPasswordTooLong
	}
	role := domain.RoleBuyer
	if req.Role != "" {
		if role, err = domain.ParseRole(req.Role); err != nil {
			return nil, err
		}
	}
	if role == domain.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}

	u := &domain.User{
		ID:        email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("user_registered", zap.String("role", string(role)))
	return created, nil
}

func (s *UserService) GetUser(ctx context.Context, email string) (*domain.User, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.users.GetByEmail(ctx, normalized)
}

// VerifyCredentials returns the user when password matches. Unknown users and wrong
// passwords produce the same error.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.GetUser(ctx, email)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
