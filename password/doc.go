// Package password hashes and verifies account passwords and checks them against the
// complexity policy.
//
// New hashes are Argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hashes written by older deployments with bcrypt ($2a$, $2b$, $2y$) still verify and
// always report [Argon2.NeedsUpgrade] so the caller can re-encode them after the next
// successful login.
//
// This package never stores passwords and never logs plaintext or hash parameters.
package password
