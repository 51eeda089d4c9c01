package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

var bcryptCost = bcrypt.DefaultCost

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      domain.Identity `json:"user"`
}

type AuthService struct {
	db     port.DatabaseRepository
	tokens port.TokenIssuer
	logger *slog.Logger
}

func NewAuthService(db port.DatabaseRepository, tokens port.TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{db: db, tokens: tokens, logger: logger}
}

// Authenticate resolves the identity behind a bearer token. Deactivated
// accounts fail with ErrAccountDisabled even when the token is valid.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	identity := user.Identity()
	return &identity, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.db.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("update last login", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Identity()}, nil
}

// EnsureOwner creates an active owner account when no user holds email.
// An existing user is left untouched. It reports whether a user was created.
func (s *AuthService) EnsureOwner(ctx context.Context, email, password, fullName string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("get user by email: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if fullName == "" {
		fullName = "Owner"
	}

	id, err := s.db.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         domain.RoleOwner,
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("create owner: %w", err)
	}

	s.logger.Info("owner account created", "user_id", id, "email", email)
	return true, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.NewValidationError("password", "is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
