package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound is returned when no record matches a token hash.
	ErrTokenNotFound = errors.New("session token not found")
	// ErrStoreUnavailable wraps backend failures of a token store.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// TokenType classifies a stored token. Bearer is the only variant.
type TokenType string

// TokenTypeBearer marks a bearer session token.
const TokenTypeBearer TokenType = "BEARER"

// Token is the server-side record of one issued session token.
type Token struct {
	ID        string
	AccountID string
	ValueHash string
	Type      TokenType
	Revoked   bool
	Expired   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Active reports whether the token is neither revoked, marked expired, nor past its
// expiry at now.
func (t Token) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired && now.Before(t.ExpiresAt)
}

// HashValue returns the hex SHA-256 of a signed token value.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewBearer builds the record for a freshly signed token.
func NewBearer(id, accountID, value string, issuedAt, expiresAt time.Time) Token {
	return Token{
		ID:        id,
		AccountID: accountID,
		ValueHash: HashValue(value),
		Type:      TokenTypeBearer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
}
