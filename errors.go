package sessiontrust

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when a disabled account tries to authenticate.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is returned when an operation names an account that does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by Register when the email is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidEmail is returned by Register for a malformed email.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidTwoFactorCode is returned when a submitted code does not match the outstanding one.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrInvalidResetToken is returned for an unknown, consumed, or expired reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrPasswordPolicy is returned when a new password fails the complexity policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordMismatch is returned when the new password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
	// ErrInvalidCurrentPassword is returned by ChangePassword when the current password is wrong.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrInvalidToken is returned for a session token that fails signature or expiry checks.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenRevoked is returned by revocation-aware session lookups for a revoked token.
	ErrTokenRevoked = errors.New("session token revoked")
	// ErrLoginRateLimited is returned when the optional login throttle trips.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrNotificationDelivery wraps notifier failures reported in result DeliveryErr fields.
	ErrNotificationDelivery = errors.New("notification delivery failed")
	// ErrStoreUnavailable wraps account or token store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when the engine was not built through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
