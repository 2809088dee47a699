package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/session"
)

// SessionDeps are the dependencies of session lookup and logout.
type SessionDeps struct {
	Common

	RevocationAware bool

	// ParseToken validates the signed value and returns the subject email.
	ParseToken  func(string) (string, error)
	TokenByHash func(context.Context, string) (session.Token, error)
	HashValue   func(string) string
	RevokeAll   func(ctx context.Context, accountID string) (int, error)
}

func (deps *SessionDeps) ready() bool {
	return deps.Common.ready() && deps.ParseToken != nil
}

// RunResolveSession maps a presented session token to its account. Signature and
// expiry are always checked. When RevocationAware is set the revocation record is
// checked too, and a token of a disabled account, or one whose record belongs to
// another account, fails as revoked.
func RunResolveSession(ctx context.Context, token string, deps SessionDeps) (account.Account, error) {
	deps.Common.normalize()
	if !deps.ready() {
		return account.Account{}, deps.Errors.EngineNotReady
	}
	if token == "" {
		return account.Account{}, deps.Errors.InvalidToken
	}

	email, err := deps.ParseToken(token)
	if err != nil {
		deps.Observe("resolve_session", OutcomeFailure)
		return account.Account{}, errors.Join(deps.Errors.InvalidToken, err)
	}

	var rec session.Token
	if deps.RevocationAware {
		if deps.TokenByHash == nil || deps.HashValue == nil {
			return account.Account{}, deps.Errors.EngineNotReady
		}
		rec, err = deps.TokenByHash(ctx, deps.HashValue(token))
		switch {
		case errors.Is(err, session.ErrTokenNotFound):
			deps.Observe("resolve_session", OutcomeFailure)
			return account.Account{}, deps.Errors.TokenRevoked
		case err != nil:
			return account.Account{}, deps.MapStoreError(err)
		case !rec.Active(deps.Now()):
			deps.Observe("resolve_session", OutcomeFailure)
			return account.Account{}, deps.Errors.TokenRevoked
		}
	}

	acc, err := deps.FindByEmail(ctx, email)
	if err != nil {
		deps.Observe("resolve_session", OutcomeFailure)
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, deps.Errors.InvalidToken
		}
		return account.Account{}, deps.MapStoreError(err)
	}
	if deps.RevocationAware && (!acc.Enabled || rec.AccountID != acc.ID) {
		deps.Observe("resolve_session", OutcomeFailure)
		return account.Account{}, deps.Errors.TokenRevoked
	}

	deps.Observe("resolve_session", OutcomeSuccess)
	return acc, nil
}

// RunLogout revokes every active token of the account behind the presented token.
// A token that no longer parses has nothing left to revoke.
func RunLogout(ctx context.Context, token string, deps SessionDeps) error {
	deps.Common.normalize()
	if !deps.ready() || deps.RevokeAll == nil {
		return deps.Errors.EngineNotReady
	}
	if token == "" {
		return nil
	}

	email, err := deps.ParseToken(token)
	if err != nil {
		return nil
	}
	acc, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil
		}
		return deps.MapStoreError(err)
	}

	n, err := deps.RevokeAll(ctx, acc.ID)
	if err != nil {
		err = deps.MapStoreError(err)
		deps.Observe("logout", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.Logout, false, acc.ID, err, nil)
		return err
	}

	deps.Observe("logout", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.Logout, true, acc.ID, nil, revokedMeta(n, "logout"))
	return nil
}
