package sessiontrust

import (
	"context"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/internal"
	"github.com/MrEthical07/sessiontrust/internal/flows"
)

// RequestPasswordReset stores a new single-use reset token for the account behind
// email and mails a link carrying it. Any earlier token of the account stops
// working.
//
// An unknown email fails with [ErrAccountNotFound]; HTTP handlers answer it with
// the same generic message as a success so the endpoint does not reveal which
// emails exist. A delivery failure is reported in result.DeliveryErr with the
// token already stored.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (res ResetResult, err error) {
	if e == nil {
		return ResetResult{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "request_password_reset")
	defer func() { done(err) }()

	out, err := flows.RunRequestPasswordReset(ctx, account.NormalizeEmail(email), e.passwordResetDeps())
	if err != nil {
		return ResetResult{}, err
	}
	return resetResult(out, MessageResetRequested), nil
}

// ResetPassword consumes a reset token and sets a new password. Checks run in a
// fixed order and the first failure wins: [ErrInvalidResetToken],
// [ErrPasswordPolicy], [ErrPasswordMismatch], [ErrPasswordReuse].
//
// Active sessions survive a reset unless PasswordReset.RevokeSessionsOnReset is set.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (res ResetResult, err error) {
	if e == nil {
		return ResetResult{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "reset_password")
	defer func() { done(err) }()

	out, err := flows.RunResetPassword(ctx, token, newPassword, confirmPassword, e.passwordResetDeps())
	if err != nil {
		return ResetResult{}, err
	}
	return resetResult(out, MessagePasswordChanged), nil
}

func resetResult(out flows.ResetOutcome, message string) ResetResult {
	res := ResetResult{Message: message, DeliveryErr: out.DeliveryErr}
	if out.DeliveryErr != nil {
		res.Message = deliveryFailureMessage(out.DeliveryErr)
	}
	return res
}

func (e *Engine) passwordResetDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		Common:               e.commonDeps(),
		TokenTTL:             e.config.PasswordReset.TokenTTL,
		LinkBaseURL:          e.config.PasswordReset.LinkBaseURL,
		RevokeSessions:       e.config.PasswordReset.RevokeSessionsOnReset,
		FindByResetTokenHash: e.accounts.ByResetTokenHash,
		NewResetToken:        internal.NewResetToken,
		HashSecret:           internal.HashSecret,
		CheckPolicy:          e.policy.Check,
		VerifyPassword:       e.hasher.Verify,
		HashPassword:         e.hasher.Hash,
		RevokeAll:            e.tokens.RevokeAll,
		SendResetLink:        e.notifier.SendPasswordResetLink,
		SendPasswordChanged:  e.notifier.SendPasswordChanged,
	}
}
