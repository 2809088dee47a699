package sessiontrust

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/internal/audit"
	"github.com/MrEthical07/sessiontrust/internal/flows"
	"github.com/MrEthical07/sessiontrust/session"
)

// Audit actions. The names follow the activity log vocabulary of the user
// management service this engine backs.
const (
	AuditLoginSucceeded       = "LOGIN"
	AuditLoginFailed          = "LOGIN_FAILED"
	AuditLoginRateLimited     = "LOGIN_RATE_LIMITED"
	AuditTwoFactorChallenged  = "2FA_CODE_SENT"
	AuditTwoFactorVerified    = "2FA_VERIFIED"
	AuditTwoFactorFailed      = "2FA_FAILED"
	AuditResetRequested       = "FORGOT_PASSWORD"
	AuditResetCompleted       = "RESET_PASSWORD"
	AuditResetFailed          = "RESET_PASSWORD_FAILED"
	AuditPasswordChanged      = "CHANGE_PASSWORD"
	AuditAccountCreated       = "USER_CREATED"
	AuditAccountEnabled       = "USER_ENABLED"
	AuditAccountDisabled      = "USER_DISABLED"
	AuditAccountDeleted       = "USER_DELETED"
	AuditTwoFactorEnabled     = "2FA_ENABLED"
	AuditTwoFactorDisabled    = "2FA_DISABLED"
	AuditSessionTokensRevoked = "TOKENS_REVOKED"
	AuditLogout               = "LOGOUT"
)

var auditDescriptions = map[string]string{
	AuditLoginSucceeded:       "user logged in",
	AuditLoginFailed:          "login attempt failed",
	AuditLoginRateLimited:     "login attempt throttled",
	AuditTwoFactorChallenged:  "two-factor code issued",
	AuditTwoFactorVerified:    "two-factor code accepted",
	AuditTwoFactorFailed:      "two-factor code rejected",
	AuditResetRequested:       "password recovery requested",
	AuditResetCompleted:       "password reset completed",
	AuditResetFailed:          "password reset rejected",
	AuditPasswordChanged:      "password changed",
	AuditAccountCreated:       "user registered",
	AuditAccountEnabled:       "user enabled",
	AuditAccountDisabled:      "user disabled",
	AuditAccountDeleted:       "user deleted",
	AuditTwoFactorEnabled:     "two-factor authentication enabled",
	AuditTwoFactorDisabled:    "two-factor authentication disabled",
	AuditSessionTokensRevoked: "session tokens revoked",
	AuditLogout:               "user logged out",
}

func flowEvents() flows.Events {
	return flows.Events{
		LoginSucceeded:       AuditLoginSucceeded,
		LoginFailed:          AuditLoginFailed,
		LoginRateLimited:     AuditLoginRateLimited,
		TwoFactorChallenged:  AuditTwoFactorChallenged,
		TwoFactorVerified:    AuditTwoFactorVerified,
		TwoFactorFailed:      AuditTwoFactorFailed,
		ResetRequested:       AuditResetRequested,
		ResetCompleted:       AuditResetCompleted,
		ResetFailed:          AuditResetFailed,
		PasswordChanged:      AuditPasswordChanged,
		AccountCreated:       AuditAccountCreated,
		AccountEnabled:       AuditAccountEnabled,
		AccountDisabled:      AuditAccountDisabled,
		AccountDeleted:       AuditAccountDeleted,
		TwoFactorEnabled:     AuditTwoFactorEnabled,
		TwoFactorDisabled:    AuditTwoFactorDisabled,
		SessionTokensRevoked: AuditSessionTokensRevoked,
		Logout:               AuditLogout,
	}
}

func flowErrors() flows.Errors {
	return flows.Errors{
		EngineNotReady:         ErrEngineNotReady,
		InvalidCredentials:     ErrInvalidCredentials,
		AccountDisabled:        ErrAccountDisabled,
		AccountNotFound:        ErrAccountNotFound,
		AccountExists:          ErrAccountExists,
		InvalidEmail:           ErrInvalidEmail,
		InvalidTwoFactorCode:   ErrInvalidTwoFactorCode,
		InvalidResetToken:      ErrInvalidResetToken,
		PasswordPolicy:         ErrPasswordPolicy,
		PasswordMismatch:       ErrPasswordMismatch,
		PasswordReuse:          ErrPasswordReuse,
		InvalidCurrentPassword: ErrInvalidCurrentPassword,
		InvalidToken:           ErrInvalidToken,
		TokenRevoked:           ErrTokenRevoked,
		LoginRateLimited:       ErrLoginRateLimited,
		NotificationDelivery:   ErrNotificationDelivery,
	}
}

var hostErrors = []error{
	ErrInvalidCredentials,
	ErrAccountDisabled,
	ErrAccountNotFound,
	ErrAccountExists,
	ErrInvalidEmail,
	ErrInvalidTwoFactorCode,
	ErrInvalidResetToken,
	ErrPasswordPolicy,
	ErrPasswordMismatch,
	ErrPasswordReuse,
	ErrInvalidCurrentPassword,
	ErrInvalidToken,
	ErrTokenRevoked,
	ErrLoginRateLimited,
	ErrStoreUnavailable,
	ErrEngineNotReady,
}

// mapStoreError converts an account or token store failure into an engine error.
// Engine sentinels returned from inside an Update mutation pass through unchanged.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range hostErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, account.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, account.ErrDuplicateEmail):
		return ErrAccountExists
	case errors.Is(err, account.ErrDisabled):
		return ErrAccountDisabled
	case errors.Is(err, session.ErrTokenNotFound):
		return ErrInvalidToken
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	success bool,
	actorID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp:   e.now().UTC(),
		Action:      action,
		ActorID:     actorID,
		Description: auditDescriptions[action],
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}
