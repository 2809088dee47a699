package flows

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/sessiontrust/account"
)

// ResetOutcome is the flow-level result of a reset step. The state change is
// committed even when DeliveryErr is set.
type ResetOutcome struct {
	AccountID   string
	DeliveryErr error
}

// PasswordResetDeps are the dependencies of the reset flows.
type PasswordResetDeps struct {
	Common

	TokenTTL       time.Duration
	LinkBaseURL    string
	RevokeSessions bool

	FindByResetTokenHash func(context.Context, string) (account.Account, error)
	NewResetToken        func() (string, error)
	HashSecret           func(string) string

	CheckPolicy    func(string) error
	VerifyPassword func(plain, encoded string) (bool, error)
	HashPassword   func(string) (string, error)
	RevokeAll      func(ctx context.Context, accountID string) (int, error)

	SendResetLink       func(ctx context.Context, email, link string) error
	SendPasswordChanged func(ctx context.Context, email string) error
}

func (deps *PasswordResetDeps) ready() bool {
	return deps.Common.ready() &&
		deps.FindByResetTokenHash != nil &&
		deps.NewResetToken != nil &&
		deps.HashSecret != nil &&
		deps.CheckPolicy != nil &&
		deps.VerifyPassword != nil &&
		deps.HashPassword != nil &&
		deps.SendResetLink != nil &&
		deps.SendPasswordChanged != nil
}

// ResetLink appends the token as the "token" query parameter of base.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RunRequestPasswordReset stores a fresh reset token for the account behind email
// and mails the link. An unknown email fails with AccountNotFound; transports that
// must not reveal account existence hide that error themselves.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (ResetOutcome, error) {
	deps.Common.normalize()
	if !deps.ready() {
		return ResetOutcome{}, deps.Errors.EngineNotReady
	}

	acc, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			err = deps.Errors.AccountNotFound
		} else {
			err = deps.MapStoreError(err)
		}
		deps.Observe("password_reset_request", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.ResetRequested, false, "", err, emailMeta(email))
		return ResetOutcome{}, err
	}

	token, err := deps.NewResetToken()
	if err != nil {
		return ResetOutcome{}, err
	}
	link, err := ResetLink(deps.LinkBaseURL, token)
	if err != nil {
		return ResetOutcome{}, err
	}

	now := deps.Now()
	hash := deps.HashSecret(token)
	if _, err := deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
		a.ResetTokenHash = hash
		a.ResetIssuedAt = now
		return nil
	}); err != nil {
		return ResetOutcome{}, deps.MapStoreError(err)
	}

	out := ResetOutcome{AccountID: acc.ID}
	if err := deps.SendResetLink(ctx, acc.Email, link); err != nil {
		out.DeliveryErr = errors.Join(deps.Errors.NotificationDelivery, err)
		deps.Observe("password_reset_delivery", OutcomeDeliveryFailure)
		deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: reset link delivery failed")
	}

	deps.Observe("password_reset_request", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetRequested, true, acc.ID, out.DeliveryErr, nil)
	return out, nil
}

// RunResetPassword completes a reset. Checks run in a fixed order: token, policy,
// confirmation match, reuse of the current password.
func RunResetPassword(ctx context.Context, token, newPassword, confirmPassword string, deps PasswordResetDeps) (ResetOutcome, error) {
	deps.Common.normalize()
	if !deps.ready() {
		return ResetOutcome{}, deps.Errors.EngineNotReady
	}

	fail := func(actorID string, err error) (ResetOutcome, error) {
		deps.Observe("password_reset", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.ResetFailed, false, actorID, err, nil)
		return ResetOutcome{}, err
	}

	if token == "" {
		return fail("", deps.Errors.InvalidResetToken)
	}
	hash := deps.HashSecret(token)
	acc, err := deps.FindByResetTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fail("", deps.Errors.InvalidResetToken)
		}
		return fail("", deps.MapStoreError(err))
	}
	if expired(deps.Now(), acc.ResetIssuedAt, deps.TokenTTL) {
		return fail(acc.ID, deps.Errors.InvalidResetToken)
	}

	if err := deps.CheckPolicy(newPassword); err != nil {
		return fail(acc.ID, errors.Join(deps.Errors.PasswordPolicy, err))
	}
	if newPassword != confirmPassword {
		return fail(acc.ID, deps.Errors.PasswordMismatch)
	}
	if same, err := deps.VerifyPassword(newPassword, acc.PasswordHash); err == nil && same {
		return fail(acc.ID, deps.Errors.PasswordReuse)
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(acc.ID, err)
	}

	if _, err := deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
		if a.ResetTokenHash != hash {
			return deps.Errors.InvalidResetToken
		}
		a.PasswordHash = newHash
		a.ClearResetChallenge()
		return nil
	}); err != nil {
		return fail(acc.ID, deps.MapStoreError(err))
	}

	if deps.RevokeSessions && deps.RevokeAll != nil {
		if n, err := deps.RevokeAll(ctx, acc.ID); err != nil {
			deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: revoke sessions after reset failed")
		} else {
			deps.EmitAudit(ctx, deps.Events.SessionTokensRevoked, true, acc.ID, nil, revokedMeta(n, "password_reset"))
		}
	}

	out := ResetOutcome{AccountID: acc.ID}
	if err := deps.SendPasswordChanged(ctx, acc.Email); err != nil {
		out.DeliveryErr = errors.Join(deps.Errors.NotificationDelivery, err)
		deps.Observe("password_changed_delivery", OutcomeDeliveryFailure)
		deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: password changed notice delivery failed")
	}

	deps.Observe("password_reset", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.ResetCompleted, true, acc.ID, out.DeliveryErr, nil)
	return out, nil
}
