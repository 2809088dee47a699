package sessiontrust

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/internal"
	"github.com/MrEthical07/sessiontrust/internal/flows"
	"github.com/MrEthical07/sessiontrust/internal/rate"
	"github.com/MrEthical07/sessiontrust/session"
)

// Login verifies email and password.
//
// For an account without two-factor authentication a session token is minted and
// every previously active token of the account is revoked in the same step; the
// caller attaches result.Token with [session.CookieManager.Attach]. For an account
// with two-factor authentication a code is mailed, result.RequiresTwoFactor is set
// and no token is minted; finish with [Engine.VerifyTwoFactor].
//
// Unknown emails and wrong passwords both fail with [ErrInvalidCredentials]. A
// disabled account fails with [ErrAccountDisabled] once the password matched.
func (e *Engine) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "login")
	defer func() { done(err) }()

	out, err := flows.RunLogin(ctx, account.NormalizeEmail(email), password, e.loginDeps())
	if err != nil {
		return LoginResult{}, err
	}
	return loginResult(out), nil
}

// VerifyTwoFactor completes a login paused by [Engine.Login]. A matching code is
// consumed and the session is established as for a login without two-factor
// authentication. A wrong code fails with [ErrInvalidTwoFactorCode] and leaves the
// outstanding code in place.
func (e *Engine) VerifyTwoFactor(ctx context.Context, email, code string) (res LoginResult, err error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "verify_two_factor")
	defer func() { done(err) }()

	out, err := flows.RunVerifyTwoFactor(ctx, account.NormalizeEmail(email), code, e.loginDeps())
	if err != nil {
		return LoginResult{}, err
	}
	return loginResult(out), nil
}

func loginResult(out flows.LoginOutcome) LoginResult {
	res := LoginResult{
		RequiresTwoFactor: out.RequiresTwoFactor,
		Token:             out.Session.Token,
		ExpiresAt:         out.Session.ExpiresAt,
		Principal:         out.Account.Principal(),
		DeliveryErr:       out.DeliveryErr,
	}
	switch {
	case out.DeliveryErr != nil:
		res.Message = deliveryFailureMessage(out.DeliveryErr)
	case out.RequiresTwoFactor:
		res.Message = MessageTwoFactorSent
	default:
		res.Message = MessageLoginSucceeded
	}
	return res
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Common:            e.commonDeps(),
		UpgradeOnLogin:    e.config.Password.UpgradeOnLogin,
		TwoFactorTTL:      e.config.TwoFactor.CodeTTL,
		CheckThrottle:     e.checkThrottle,
		RecordFailure:     e.limiter.RecordFailure,
		ResetThrottle:     e.limiter.Reset,
		VerifyPassword:    e.hasher.Verify,
		NeedsUpgrade:      e.hasher.NeedsUpgrade,
		HashPassword:      e.hasher.Hash,
		NewTwoFactorCode:  internal.NewTwoFactorCode,
		SendTwoFactorCode: e.notifier.SendTwoFactorCode,
		EstablishSession:  e.establishSession,
	}
}

func (e *Engine) checkThrottle(ctx context.Context, email, ip string) error {
	err := e.limiter.CheckLogin(ctx, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrLoginRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// establishSession mints a token for acc and rotates it in as the account's only
// active token. The account is read again after the rotation: disabling and
// deleting revoke after their write, so a token rotated in before that write is
// caught by their revoke, and one rotated in after it is revoked here.
func (e *Engine) establishSession(ctx context.Context, acc account.Account) (flows.SessionGrant, error) {
	signed, claims, err := e.jwt.Issue(acc.Email, e.now())
	if err != nil {
		return flows.SessionGrant{}, err
	}

	record := session.NewBearer(claims.ID, acc.ID, signed, claims.IssuedAt.Time, claims.ExpiresAt.Time)
	revoked, err := e.tokens.Rotate(ctx, record)
	if errors.Is(err, account.ErrNotFound) {
		return flows.SessionGrant{}, ErrInvalidCredentials
	}
	if err != nil {
		return flows.SessionGrant{}, mapStoreError(err)
	}

	cur, err := e.accounts.ByID(ctx, acc.ID)
	if err != nil || !cur.Enabled {
		if _, rerr := e.tokens.RevokeAll(ctx, acc.ID); rerr != nil {
			e.logger.WithError(rerr).WithField("account_id", acc.ID).Error("sessiontrust: revoke token of unavailable account")
		}
		switch {
		case err == nil:
			return flows.SessionGrant{}, ErrAccountDisabled
		case errors.Is(err, account.ErrNotFound):
			return flows.SessionGrant{}, ErrInvalidCredentials
		default:
			return flows.SessionGrant{}, mapStoreError(err)
		}
	}

	return flows.SessionGrant{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
		Revoked:   revoked,
	}, nil
}
