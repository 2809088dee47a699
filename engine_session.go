package sessiontrust

import (
	"context"

	"github.com/MrEthical07/sessiontrust/internal/flows"
	"github.com/MrEthical07/sessiontrust/session"
)

// ResolveSession maps a session token to the principal it was issued for.
//
// The signature and expiry are always verified ([ErrInvalidToken]). Everything else
// depends on Session.RevocationAwareLookup. When it is unset no token record and no
// account flag is consulted: a revoked or superseded token still resolves, and so
// does a token of a disabled account. When it is set, revoked or superseded tokens
// and tokens of disabled accounts fail with [ErrTokenRevoked].
func (e *Engine) ResolveSession(ctx context.Context, token string) (p Principal, err error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "resolve_session")
	defer func() { done(err) }()

	acc, err := flows.RunResolveSession(ctx, token, e.sessionDeps())
	if err != nil {
		return Principal{}, err
	}
	return acc.Principal(), nil
}

// Logout revokes every active token of the account the token belongs to. A token
// that no longer verifies is ignored.
func (e *Engine) Logout(ctx context.Context, token string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "logout")
	defer func() { done(err) }()

	return flows.RunLogout(ctx, token, e.sessionDeps())
}

func (e *Engine) sessionDeps() flows.SessionDeps {
	return flows.SessionDeps{
		Common:          e.commonDeps(),
		RevocationAware: e.config.Session.RevocationAwareLookup,
		ParseToken:      e.parseToken,
		TokenByHash:     e.tokens.ByHash,
		HashValue:       session.HashValue,
		RevokeAll:       e.tokens.RevokeAll,
	}
}

func (e *Engine) parseToken(token string) (string, error) {
	claims, err := e.jwt.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Email(), nil
}
