package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T, lifetime time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{Lifetime: lifetime, SigningMethod: MethodHS256, PrivateKey: testSecret, Issuer: "sessiontrust"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newHSManager(t, 24*time.Hour)
	now := time.Now()

	token, issued, err := m.Issue("a@x.io", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email() != "a@x.io" {
		t.Fatalf("unexpected subject %q", claims.Email())
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected stable jti, got %q vs %q", claims.ID, issued.ID)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 24*time.Hour {
		t.Fatalf("expected exp-iat == lifetime, got %v", got)
	}
}

func TestIssueProducesDistinctIDs(t *testing.T) {
	m := newHSManager(t, time.Hour)
	now := time.Now()
	a, _, _ := m.Issue("a@x.io", now)
	b, _, _ := m.Issue("a@x.io", now)
	if a == b {
		t.Fatal("expected two issuances in the same second to differ")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHSManager(t, time.Minute)
	token, _, err := m.Issue("a@x.io", time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := newHSManager(t, time.Hour)
	token, _, _ := m.Issue("a@x.io", time.Now())

	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for bad signature, got %v", err)
	}
	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{Lifetime: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ID:        "id",
		Subject:   "a@x.io",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected algorithm confusion to be rejected, got %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{Lifetime: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := m.Issue("a@x.io", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Lifetime: 0, SigningMethod: MethodHS256, PrivateKey: testSecret}); err == nil {
		t.Fatal("expected zero lifetime to fail")
	}
	if _, err := NewManager(Config{Lifetime: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if _, err := NewManager(Config{Lifetime: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
}
