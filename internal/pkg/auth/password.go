// internal/pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/your-org/storefront-backend/internal/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything after 72 bytes
	maxPasswordLength = 72
)

var ErrWeakPassword = errors.New("weak password")

// PasswordManager hashes and checks admin passwords
type PasswordManager struct {
	cost int
}

// NewPasswordManager creates a password manager with the configured bcrypt cost
func NewPasswordManager(cfg *config.Config) *PasswordManager {
	cost := cfg.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordManager{cost: cost}
}

// HashPassword validates strength and returns the bcrypt hash
func (p *PasswordManager) HashPassword(password string) (string, error) {
	if err := p.ValidatePassword(password); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashed), nil
}

// VerifyPassword compares a password with a stored hash
func (p *PasswordManager) VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePassword enforces length and character class rules.
// Failures wrap ErrWeakPassword.
func (p *PasswordManager) ValidatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return fmt.Errorf("%w: length must be between %d and %d bytes", ErrWeakPassword, minPasswordLength, maxPasswordLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
		digit = digit || unicode.IsDigit(r)
	}

	if !upper || !lower || !digit {
		return fmt.Errorf("%w: needs upper case, lower case and a digit", ErrWeakPassword)
	}
	return nil
}
