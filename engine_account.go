package sessiontrust

import (
	"context"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/internal/flows"
)

// Register creates an enabled account with the default role when req.Role is empty.
// Checks run in order: [ErrInvalidEmail], [ErrAccountExists], [ErrPasswordPolicy].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (p Principal, err error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "register")
	defer func() { done(err) }()

	acc, err := flows.RunRegister(ctx, flows.RegisterInput{
		Email:            account.NormalizeEmail(req.Email),
		Name:             req.Name,
		Password:         req.Password,
		Role:             req.Role,
		TwoFactorEnabled: req.TwoFactorEnabled,
	}, e.accountDeps())
	if err != nil {
		return Principal{}, err
	}
	return acc.Principal(), nil
}

// ChangePassword replaces the password of accountID after checking the current one.
// Checks run in order: [ErrInvalidCurrentPassword], [ErrPasswordReuse],
// [ErrPasswordPolicy].
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "change_password")
	defer func() { done(err) }()

	return flows.RunChangePassword(ctx, accountID, currentPassword, newPassword, e.accountDeps())
}

// ToggleTwoFactor flips two-factor authentication for accountID and returns the
// user-facing status message.
func (e *Engine) ToggleTwoFactor(ctx context.Context, accountID string) (msg string, err error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "toggle_two_factor")
	defer func() { done(err) }()

	enabled, err := flows.RunToggleTwoFactor(ctx, accountID, e.accountDeps())
	if err != nil {
		return "", err
	}
	if enabled {
		return MessageTwoFactorActivated, nil
	}
	return MessageTwoFactorRemoved, nil
}

// SetAccountEnabled enables or disables accountID. Disabling revokes every active
// session token of the account.
func (e *Engine) SetAccountEnabled(ctx context.Context, accountID string, enabled bool) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "set_account_enabled")
	defer func() { done(err) }()

	return flows.RunSetEnabled(ctx, accountID, enabled, e.accountDeps())
}

// DeleteAccount revokes the session tokens of accountID and removes the account.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) (err error) {
	if e == nil {
		return ErrEngineNotReady
	}
	ctx, done := e.span(ctx, "delete_account")
	defer func() { done(err) }()

	return flows.RunDeleteAccount(ctx, accountID, e.accountDeps())
}

// Account returns the stored account. It fails with [ErrAccountNotFound].
func (e *Engine) Account(ctx context.Context, accountID string) (Account, error) {
	if e == nil {
		return Account{}, ErrEngineNotReady
	}
	acc, err := e.accounts.ByID(ctx, accountID)
	if err != nil {
		return Account{}, mapStoreError(err)
	}
	return acc, nil
}

// ActiveSessions lists the unrevoked, unexpired tokens of accountID.
func (e *Engine) ActiveSessions(ctx context.Context, accountID string) ([]SessionToken, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	tokens, err := e.tokens.Active(ctx, accountID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tokens, nil
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Common:              e.commonDeps(),
		CreateAccount:       e.accounts.Create,
		DeleteAccount:       e.accounts.Delete,
		RevokeAll:           e.tokens.RevokeAll,
		CheckPolicy:         e.policy.Check,
		VerifyPassword:      e.hasher.Verify,
		HashPassword:        e.hasher.Hash,
		SendPasswordChanged: e.notifier.SendPasswordChanged,
	}
}
