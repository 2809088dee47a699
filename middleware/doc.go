// Package middleware guards HTTP handlers with the session cookie.
//
// [RequireSession] resolves the cookie (or an Authorization bearer header) through
// the engine and stores the principal in the request context, where handlers read
// it with sessiontrust.PrincipalFromContext. [RequireRole] additionally restricts a
// route to principals with one of the given roles.
//
// This package translates HTTP semantics into Engine calls. Token parsing and
// revocation checks stay in the engine.
package middleware
