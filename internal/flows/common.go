package flows

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessiontrust/account"
)

// Errors carries the host sentinel errors returned by flows.
type Errors struct {
	EngineNotReady         error
	InvalidCredentials     error
	AccountDisabled        error
	AccountNotFound        error
	AccountExists          error
	InvalidEmail           error
	InvalidTwoFactorCode   error
	InvalidResetToken      error
	PasswordPolicy         error
	PasswordMismatch       error
	PasswordReuse          error
	InvalidCurrentPassword error
	InvalidToken           error
	TokenRevoked           error
	LoginRateLimited       error
	NotificationDelivery   error
}

// Events carries the audit action names emitted by flows.
type Events struct {
	LoginSucceeded       string
	LoginFailed          string
	LoginRateLimited     string
	TwoFactorChallenged  string
	TwoFactorVerified    string
	TwoFactorFailed      string
	ResetRequested       string
	ResetCompleted       string
	ResetFailed          string
	PasswordChanged      string
	AccountCreated       string
	AccountEnabled       string
	AccountDisabled      string
	AccountDeleted       string
	TwoFactorEnabled     string
	TwoFactorDisabled    string
	SessionTokensRevoked string
	Logout               string
}

// Outcome labels passed to Observe.
const (
	OutcomeSuccess         = "success"
	OutcomeFailure         = "failure"
	OutcomeChallenged      = "challenged"
	OutcomeRateLimited     = "rate_limited"
	OutcomeDeliveryFailure = "delivery_failure"
)

// Common holds the dependencies every flow shares.
type Common struct {
	Now      func() time.Time
	ClientIP func(context.Context) string
	Logger   logrus.FieldLogger

	FindByEmail   func(context.Context, string) (account.Account, error)
	FindByID      func(context.Context, string) (account.Account, error)
	UpdateAccount func(context.Context, string, func(*account.Account) error) (account.Account, error)
	// MapStoreError converts store failures into host errors. Host sentinels pass through.
	MapStoreError func(error) error

	EmitAudit func(ctx context.Context, action string, success bool, actorID string, err error, meta func() map[string]string)
	Observe   func(op, outcome string)

	Events Events
	Errors Errors
}

func (c *Common) normalize() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.ClientIP == nil {
		c.ClientIP = func(context.Context) string { return "" }
	}
	if c.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		c.Logger = discard
	}
	if c.MapStoreError == nil {
		c.MapStoreError = func(err error) error { return err }
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if c.Observe == nil {
		c.Observe = func(string, string) {}
	}
	if c.Errors.EngineNotReady == nil {
		c.Errors.EngineNotReady = errors.New("engine not initialized")
	}
}

func (c *Common) ready() bool {
	return c.FindByEmail != nil && c.FindByID != nil && c.UpdateAccount != nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// expired reports whether a challenge issued at issuedAt is older than ttl. A zero
// ttl never expires.
func expired(now, issuedAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(issuedAt) > ttl
}

func emailMeta(email string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"email": email}
	}
}

func revokedMeta(n int, reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n), "reason": reason}
	}
}
