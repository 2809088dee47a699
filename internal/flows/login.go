package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/sessiontrust/account"
)

// SessionGrant is a freshly minted session token.
type SessionGrant struct {
	Token     string
	ExpiresAt time.Time
	Revoked   int
}

// LoginOutcome is the flow-level result of a login step.
type LoginOutcome struct {
	Account           account.Account
	RequiresTwoFactor bool
	Session           SessionGrant
	DeliveryErr       error
}

// LoginDeps are the dependencies of RunLogin and RunVerifyTwoFactor.
type LoginDeps struct {
	Common

	UpgradeOnLogin bool
	TwoFactorTTL   time.Duration

	CheckThrottle func(ctx context.Context, email, ip string) error
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetThrottle func(ctx context.Context, email, ip string) error

	VerifyPassword func(plain, encoded string) (bool, error)
	NeedsUpgrade   func(encoded string) (bool, error)
	HashPassword   func(string) (string, error)

	NewTwoFactorCode  func() (string, error)
	SendTwoFactorCode func(ctx context.Context, email, code string) error

	// EstablishSession mints a token for acc and rotates it in as the account's only
	// active token.
	EstablishSession func(ctx context.Context, acc account.Account) (SessionGrant, error)
}

func normalizeLoginDeps(deps *LoginDeps) {
	deps.Common.normalize()
	noop := func(context.Context, string, string) error { return nil }
	if deps.CheckThrottle == nil {
		deps.CheckThrottle = noop
	}
	if deps.RecordFailure == nil {
		deps.RecordFailure = noop
	}
	if deps.ResetThrottle == nil {
		deps.ResetThrottle = noop
	}
	if deps.NeedsUpgrade == nil {
		deps.NeedsUpgrade = func(string) (bool, error) { return false, nil }
	}
}

func (deps *LoginDeps) ready() bool {
	return deps.Common.ready() &&
		deps.VerifyPassword != nil &&
		deps.NewTwoFactorCode != nil &&
		deps.SendTwoFactorCode != nil &&
		deps.EstablishSession != nil
}

// RunLogin verifies credentials and either pauses the login behind a two-factor
// challenge or establishes the session.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (LoginOutcome, error) {
	normalizeLoginDeps(&deps)
	if !deps.ready() {
		return LoginOutcome{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIP(ctx)
	if err := deps.CheckThrottle(ctx, email, ip); err != nil {
		if errors.Is(err, deps.Errors.LoginRateLimited) {
			deps.Observe("login", OutcomeRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", err, emailMeta(email))
		}
		return LoginOutcome{}, err
	}

	acc, err := verifyCredentials(ctx, email, password, &deps)
	if err != nil {
		deps.Observe("login", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailed, false, acc.ID, err, emailMeta(email))
		if errors.Is(err, deps.Errors.InvalidCredentials) {
			if rerr := deps.RecordFailure(ctx, email, ip); rerr != nil {
				deps.Logger.WithError(rerr).Warn("sessiontrust: record login failure")
			}
		}
		return LoginOutcome{}, err
	}

	if rerr := deps.ResetThrottle(ctx, email, ip); rerr != nil {
		deps.Logger.WithError(rerr).Warn("sessiontrust: reset login throttle")
	}

	if acc.TwoFactorEnabled {
		return issueTwoFactorChallenge(ctx, acc, &deps)
	}

	grant, err := deps.EstablishSession(ctx, acc)
	if err != nil {
		deps.Observe("login", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailed, false, acc.ID, err, emailMeta(acc.Email))
		return LoginOutcome{}, err
	}

	deps.Observe("login", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSucceeded, true, acc.ID, nil, nil)
	return LoginOutcome{Account: acc, Session: grant}, nil
}

// verifyCredentials checks the password before the enabled flag so a disabled
// account is only revealed to a caller holding the right password.
func verifyCredentials(ctx context.Context, email, password string, deps *LoginDeps) (account.Account, error) {
	if email == "" || password == "" {
		return account.Account{}, deps.Errors.InvalidCredentials
	}

	acc, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, deps.Errors.InvalidCredentials
		}
		return account.Account{}, deps.MapStoreError(err)
	}

	ok, err := deps.VerifyPassword(password, acc.PasswordHash)
	if err != nil {
		deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: unreadable password hash")
		return acc, deps.Errors.InvalidCredentials
	}
	if !ok {
		return acc, deps.Errors.InvalidCredentials
	}
	if !acc.Enabled {
		return acc, deps.Errors.AccountDisabled
	}

	if deps.UpgradeOnLogin && deps.HashPassword != nil {
		upgradeHash(ctx, acc, password, deps)
	}
	return acc, nil
}

func upgradeHash(ctx context.Context, acc account.Account, password string, deps *LoginDeps) {
	needs, err := deps.NeedsUpgrade(acc.PasswordHash)
	if err != nil || !needs {
		return
	}
	rehashed, err := deps.HashPassword(password)
	if err == nil {
		_, err = deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
			if a.PasswordHash == acc.PasswordHash {
				a.PasswordHash = rehashed
			}
			return nil
		})
	}
	if err != nil {
		deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: password hash upgrade failed")
	}
}

func issueTwoFactorChallenge(ctx context.Context, acc account.Account, deps *LoginDeps) (LoginOutcome, error) {
	code, err := deps.NewTwoFactorCode()
	if err != nil {
		return LoginOutcome{}, err
	}

	now := deps.Now()
	acc, err = deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
		a.TwoFactorCode = code
		a.TwoFactorIssuedAt = now
		return nil
	})
	if err != nil {
		return LoginOutcome{}, deps.MapStoreError(err)
	}

	out := LoginOutcome{Account: acc, RequiresTwoFactor: true}
	if err := deps.SendTwoFactorCode(ctx, acc.Email, code); err != nil {
		out.DeliveryErr = errors.Join(deps.Errors.NotificationDelivery, err)
		deps.Observe("two_factor_delivery", OutcomeDeliveryFailure)
		deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: two-factor code delivery failed")
	}

	deps.Observe("login", OutcomeChallenged)
	deps.EmitAudit(ctx, deps.Events.TwoFactorChallenged, true, acc.ID, out.DeliveryErr, nil)
	return out, nil
}

// RunVerifyTwoFactor consumes the outstanding code of the account behind email and
// establishes the session. The code is consumed inside the account update, so two
// concurrent submissions of the same code cannot both succeed. If the session
// cannot be established the code is put back, unless a newer challenge replaced it.
func RunVerifyTwoFactor(ctx context.Context, email, code string, deps LoginDeps) (LoginOutcome, error) {
	normalizeLoginDeps(&deps)
	if !deps.ready() {
		return LoginOutcome{}, deps.Errors.EngineNotReady
	}

	fail := func(actorID string, err error) (LoginOutcome, error) {
		deps.Observe("two_factor", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorFailed, false, actorID, err, emailMeta(email))
		return LoginOutcome{}, err
	}

	acc, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fail("", deps.Errors.AccountNotFound)
		}
		return fail("", deps.MapStoreError(err))
	}

	now := deps.Now()
	var issuedAt time.Time
	updated, err := deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
		if !a.HasTwoFactorChallenge() || code == "" {
			return deps.Errors.InvalidTwoFactorCode
		}
		if subtle.ConstantTimeCompare([]byte(a.TwoFactorCode), []byte(code)) != 1 {
			return deps.Errors.InvalidTwoFactorCode
		}
		if expired(now, a.TwoFactorIssuedAt, deps.TwoFactorTTL) {
			return deps.Errors.InvalidTwoFactorCode
		}
		if !a.Enabled {
			return deps.Errors.AccountDisabled
		}
		issuedAt = a.TwoFactorIssuedAt
		a.ClearTwoFactorChallenge()
		return nil
	})
	if err != nil {
		return fail(acc.ID, deps.MapStoreError(err))
	}

	grant, err := deps.EstablishSession(ctx, updated)
	if err != nil {
		restoreTwoFactorCode(ctx, acc.ID, code, issuedAt, &deps)
		return fail(acc.ID, err)
	}

	deps.Observe("two_factor", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.TwoFactorVerified, true, acc.ID, nil, nil)
	deps.EmitAudit(ctx, deps.Events.LoginSucceeded, true, acc.ID, nil, func() map[string]string {
		return map[string]string{"second_factor": "email_code"}
	})
	return LoginOutcome{Account: updated, Session: grant}, nil
}

func restoreTwoFactorCode(ctx context.Context, accountID, code string, issuedAt time.Time, deps *LoginDeps) {
	_, err := deps.UpdateAccount(ctx, accountID, func(a *account.Account) error {
		if !a.HasTwoFactorChallenge() {
			a.TwoFactorCode = code
			a.TwoFactorIssuedAt = issuedAt
		}
		return nil
	})
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		deps.Logger.WithError(err).WithField("account_id", accountID).Warn("sessiontrust: restore two-factor code")
	}
}
