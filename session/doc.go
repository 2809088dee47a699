// Package session owns the server-side record of every issued session token, the
// Redis-backed revocation store, and the session cookie.
//
// # Revocation model
//
// Tokens are stored by the hex SHA-256 of their signed value, never the value itself.
// Each account has an index of its token hashes. [RedisStore.Rotate] revokes every
// active token of an account and records the new one inside one Lua script, so two
// concurrent logins for the same account always leave exactly one active token.
//
// # Architecture boundaries
//
// This package does not parse or sign tokens and imports no other sessiontrust package.
package session
