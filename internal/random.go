package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const (
	twoFactorCodeMin = 100000
	twoFactorCodeMax = 999999
)

// NewTwoFactorCode returns a code drawn uniformly from [100000, 999999].
func NewTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(twoFactorCodeMax-twoFactorCodeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+twoFactorCodeMin, 10), nil
}

// NewResetToken returns an opaque, URL-safe password reset token.
func NewResetToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// HashSecret returns the hex SHA-256 of a secret so only the digest is persisted.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
