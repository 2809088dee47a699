package sessiontrust

import (
	"context"
	"time"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/session"
)

// Account is the persisted account record.
type Account = account.Account

// Principal is the immutable authenticated view of an account.
type Principal = account.Principal

// AccountStore persists accounts. See [account.Store] for the atomicity contract.
type AccountStore = account.Store

// SessionToken is the stored record of an issued session token.
type SessionToken = session.Token

// TokenStore records issued session tokens and revokes them.
//
// Rotate must revoke the account's active tokens and save the new one as a single
// atomic unit with respect to other Rotate and RevokeAll calls for that account.
// A store that shares a lock with the account store may refuse to rotate for a
// disabled or deleted account with account.ErrDisabled or account.ErrNotFound.
type TokenStore interface {
	Save(ctx context.Context, token session.Token) error
	RevokeAll(ctx context.Context, accountID string) (int, error)
	Rotate(ctx context.Context, token session.Token) (int, error)
	ByHash(ctx context.Context, valueHash string) (session.Token, error)
	Active(ctx context.Context, accountID string) ([]session.Token, error)
}

// Notifier delivers the out-of-band messages of the login and reset flows.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, link string) error
	SendPasswordChanged(ctx context.Context, email string) error
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifyTwoFactor].
//
// When RequiresTwoFactor is true no token was minted and Token is empty; the caller
// must complete the login with [Engine.VerifyTwoFactor]. DeliveryErr is set when the
// two-factor code could not be sent; the challenge is stored regardless.
type LoginResult struct {
	RequiresTwoFactor bool
	Message           string
	Token             string
	ExpiresAt         time.Time
	Principal         Principal
	DeliveryErr       error
}

// ResetResult is returned by the password reset operations. The state change has
// been committed even when DeliveryErr is set.
type ResetResult struct {
	Message     string
	DeliveryErr error
}

// RegisterRequest describes a new account.
type RegisterRequest struct {
	Email            string
	Name             string
	Password         string
	Role             string
	TwoFactorEnabled bool
}

// User-facing result messages.
const (
	MessageLoginSucceeded     = "Login successful"
	MessageTwoFactorSent      = "A verification code has been sent to your email"
	MessageResetRequested     = "If the email exists, a recovery link will be sent"
	MessagePasswordChanged    = "Password changed successfully"
	MessageTwoFactorActivated = "Two-factor authentication activated"
	MessageTwoFactorRemoved   = "Two-factor authentication deactivated"
	deliveryFailurePrefix     = "Error sending email: "
)

// deliveryFailureMessage reports the notifier's own error. DeliveryErr joins
// ErrNotificationDelivery with that cause; only the cause is shown.
func deliveryFailureMessage(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if parts := joined.Unwrap(); len(parts) > 0 {
			err = parts[len(parts)-1]
		}
	}
	return deliveryFailurePrefix + err.Error()
}
