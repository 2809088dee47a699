// Package jwt issues and parses the signed session tokens carried in the session
// cookie. Tokens bind the account email as subject, carry issued-at and expiry, and a
// unique id so the revocation store can track each issuance separately.
package jwt
