// Package sessiontrust authenticates users and manages server-side session trust:
// password login with an optional emailed two-factor code, revocable signed bearer
// tokens carried in a session cookie, and a single-use password reset flow.
//
// The package is the public surface. It exposes [Engine], [Builder], [Config],
// the store and notifier interfaces, and result types. Flow orchestration, audit
// dispatch, and login throttling live under internal/.
//
// # Sessions
//
// A completed login mints one token and revokes every other active token of the
// account in the same store operation, so an account has at most one active token
// after any login. Tokens are also revoked on logout, when the account is disabled
// or deleted, and, if configured, after a password reset.
//
// # Stores
//
// Accounts live behind [AccountStore] (storage/memory, storage/postgres). Token
// records live behind [TokenStore] (storage/memory, storage/postgres,
// session.RedisStore). Both must make their per-account mutations atomic; the
// engine holds no locks of its own.
package sessiontrust
