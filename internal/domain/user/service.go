// internal/domain/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrTermsNotAccepted   = errors.New("terms and conditions must be accepted")
	ErrEmailTaken         = errors.New("an account with this email already exists")
)

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateAccessToken(userID uint, email string, isAdmin bool) (string, time.Time, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) error
}

// Service handles account sign-up and authentication
type Service struct {
	repo      Repository
	tokens    TokenIssuer
	passwords PasswordHasher
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewService creates a new user service
func NewService(repo Repository, tokens TokenIssuer, passwords PasswordHasher, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a buyer account and signs it in
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if !req.AcceptTerms {
		return nil, ErrTermsNotAccepted
	}

	_, err := s.repo.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", u.ID).Info("Account registered")
	return s.signIn(ctx, u)
}

// Login authenticates an account and returns an access token
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := s.passwords.VerifyPassword(req.Password, u.PasswordHash); err != nil {
		s.logger.WithField("user_id", u.ID).Warn("Failed login")
		return nil, ErrInvalidCredentials
	}

	return s.signIn(ctx, u)
}

func (s *Service) signIn(ctx context.Context, u *User) (*AuthResponse, error) {
	now := s.now().UTC()
	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID, u.Email, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.WithError(err).Warn("Failed to record last login")
	}
	u.LastLoginAt = &now

	return &AuthResponse{
		User:        u,
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
	}, nil
}

// GetByID returns an account
func (s *Service) GetByID(ctx context.Context, id uint) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return err
	}

	u := &User{Email: normalizeEmail(email), PasswordHash: hash, IsAdmin: true, IsActive: true}
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}

	s.logger.WithField("email", u.Email).Info("Bootstrap admin created")
	return nil
}
