package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by a [Store] when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned by [Store.Create] when the email is already taken.
	ErrDuplicateEmail = errors.New("account email already exists")
	// ErrDisabled is returned by token stores that refuse to install a token for a
	// disabled account.
	ErrDisabled = errors.New("account disabled")
)

// DefaultRole is assigned to accounts created without an explicit role.
const DefaultRole = "USER"

// Account is the persisted account record.
//
// TwoFactorCode and ResetTokenHash are empty when no challenge is outstanding.
type Account struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Role              string
	Enabled           bool
	TwoFactorEnabled  bool
	TwoFactorCode     string
	TwoFactorIssuedAt time.Time
	ResetTokenHash    string
	ResetIssuedAt     time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasTwoFactorChallenge reports whether a code is waiting to be verified.
func (a Account) HasTwoFactorChallenge() bool {
	return a.TwoFactorCode != ""
}

// HasResetChallenge reports whether a password reset token is outstanding.
func (a Account) HasResetChallenge() bool {
	return a.ResetTokenHash != ""
}

// ClearTwoFactorChallenge drops the outstanding code.
func (a *Account) ClearTwoFactorChallenge() {
	a.TwoFactorCode = ""
	a.TwoFactorIssuedAt = time.Time{}
}

// ClearResetChallenge drops the outstanding reset token.
func (a *Account) ClearResetChallenge() {
	a.ResetTokenHash = ""
	a.ResetIssuedAt = time.Time{}
}

// Principal returns the immutable view of the account exposed after authentication.
func (a Account) Principal() Principal {
	return Principal{
		AccountID:        a.ID,
		Email:            a.Email,
		Name:             a.Name,
		Role:             a.Role,
		TwoFactorEnabled: a.TwoFactorEnabled,
	}
}

// Principal is the authenticated identity. It carries no credentials or challenges.
type Principal struct {
	AccountID        string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	Role             string `json:"role"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store persists accounts.
//
// Update must apply mutate as an atomic read-modify-write scoped to one account: no
// concurrent Update for the same id may observe or overwrite an intermediate state.
// If mutate returns an error the account is left unchanged and that error is returned.
type Store interface {
	Create(ctx context.Context, acc Account) (Account, error)
	ByID(ctx context.Context, id string) (Account, error)
	ByEmail(ctx context.Context, email string) (Account, error)
	ByResetTokenHash(ctx context.Context, hash string) (Account, error)
	Update(ctx context.Context, id string, mutate func(*Account) error) (Account, error)
	Delete(ctx context.Context, id string) error
}
