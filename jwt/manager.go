package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

const minHMACSecret = 32

// ErrInvalidToken is returned for any token that fails signature, algorithm, issuer,
// or expiry validation.
var ErrInvalidToken = errors.New("invalid session token")

// Config configures a [Manager]. Lifetime is fixed per manager.
type Config struct {
	Lifetime      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	// Clock, when set, replaces time.Now for expiry checks in Parse.
	Clock func() time.Time
}

// SessionClaims is the claim set of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Email returns the subject the token was issued for.
func (c *SessionClaims) Email() string {
	return c.Subject
}

// Manager signs and verifies session tokens.
type Manager struct {
	config  Config
	signKey any
	verify  any
}

// NewManager validates cfg and prepares signing keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Lifetime <= 0 {
		return nil, errors.New("token lifetime must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token leeway must be within [0, 2m]")
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecret {
			return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minHMACSecret)
		}
		m.signKey = cfg.PrivateKey
		m.verify = cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires a public key")
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.verify = pub
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return m, nil
}

// Lifetime returns the validity window of every issued token.
func (m *Manager) Lifetime() time.Duration {
	return m.config.Lifetime
}

// Issue signs a token for subject, valid from now for the configured lifetime.
func (m *Manager) Issue(subject string, now time.Time) (string, *SessionClaims, error) {
	if m.signKey == nil {
		return "", nil, errors.New("manager has no signing key")
	}
	if subject == "" {
		return "", nil, errors.New("token subject is empty")
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(m.method(), claims).SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies token and returns its claims. Every failure wraps [ErrInvalidToken].
func (m *Manager) Parse(token string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Clock != nil {
		options = append(options, jwt.WithTimeFunc(m.config.Clock))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &SessionClaims{}, func(*jwt.Token) (any, error) {
		return m.verify, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
