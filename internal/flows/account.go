package flows

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/MrEthical07/sessiontrust/account"
)

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)

// ValidEmail reports whether email has the accepted address shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// AccountDeps are the dependencies of the account management flows.
type AccountDeps struct {
	Common

	CreateAccount func(context.Context, account.Account) (account.Account, error)
	DeleteAccount func(context.Context, string) error
	RevokeAll     func(ctx context.Context, accountID string) (int, error)

	CheckPolicy    func(string) error
	VerifyPassword func(plain, encoded string) (bool, error)
	HashPassword   func(string) (string, error)

	SendPasswordChanged func(ctx context.Context, email string) error
}

func (deps *AccountDeps) ready() bool {
	return deps.Common.ready() && deps.RevokeAll != nil
}

func (deps *AccountDeps) lookupErr(err error) error {
	if errors.Is(err, account.ErrNotFound) {
		return deps.Errors.AccountNotFound
	}
	return deps.MapStoreError(err)
}

// RegisterInput is the validated shape of a new account.
type RegisterInput struct {
	Email            string
	Name             string
	Password         string
	Role             string
	TwoFactorEnabled bool
}

// RunRegister creates an enabled account. Checks run in order: email format,
// uniqueness, password policy.
func RunRegister(ctx context.Context, in RegisterInput, deps AccountDeps) (account.Account, error) {
	deps.Common.normalize()
	if !deps.ready() || deps.CreateAccount == nil || deps.CheckPolicy == nil || deps.HashPassword == nil {
		return account.Account{}, deps.Errors.EngineNotReady
	}

	fail := func(err error) (account.Account, error) {
		deps.Observe("register", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.AccountCreated, false, "", err, emailMeta(in.Email))
		return account.Account{}, err
	}

	if !ValidEmail(in.Email) {
		return fail(deps.Errors.InvalidEmail)
	}
	if _, err := deps.FindByEmail(ctx, in.Email); err == nil {
		return fail(deps.Errors.AccountExists)
	} else if !errors.Is(err, account.ErrNotFound) {
		return fail(deps.MapStoreError(err))
	}
	if err := deps.CheckPolicy(in.Password); err != nil {
		return fail(errors.Join(deps.Errors.PasswordPolicy, err))
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return fail(err)
	}

	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = account.DefaultRole
	}
	now := deps.Now()
	acc := account.Account{
		Email:            in.Email,
		Name:             strings.TrimSpace(in.Name),
		PasswordHash:     hash,
		Role:             role,
		Enabled:          true,
		TwoFactorEnabled: in.TwoFactorEnabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := deps.CreateAccount(ctx, acc)
	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			return fail(deps.Errors.AccountExists)
		}
		return fail(deps.MapStoreError(err))
	}

	deps.Observe("register", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, created.ID, nil, nil)
	return created, nil
}

// RunChangePassword replaces the password of an authenticated account. Checks run
// in order: current password, reuse, policy.
func RunChangePassword(ctx context.Context, accountID, current, next string, deps AccountDeps) error {
	deps.Common.normalize()
	if !deps.ready() || deps.CheckPolicy == nil || deps.VerifyPassword == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(err error) error {
		deps.Observe("change_password", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChanged, false, accountID, err, nil)
		return err
	}

	acc, err := deps.FindByID(ctx, accountID)
	if err != nil {
		return fail(deps.lookupErr(err))
	}
	if ok, err := deps.VerifyPassword(current, acc.PasswordHash); err != nil || !ok {
		return fail(deps.Errors.InvalidCurrentPassword)
	}
	if current == next {
		return fail(deps.Errors.PasswordReuse)
	}
	if err := deps.CheckPolicy(next); err != nil {
		return fail(errors.Join(deps.Errors.PasswordPolicy, err))
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return fail(err)
	}
	if _, err := deps.UpdateAccount(ctx, acc.ID, func(a *account.Account) error {
		if a.PasswordHash != acc.PasswordHash {
			return deps.Errors.InvalidCurrentPassword
		}
		a.PasswordHash = hash
		return nil
	}); err != nil {
		return fail(deps.MapStoreError(err))
	}

	if deps.SendPasswordChanged != nil {
		if err := deps.SendPasswordChanged(ctx, acc.Email); err != nil {
			deps.Logger.WithError(err).WithField("account_id", acc.ID).Warn("sessiontrust: password changed notice delivery failed")
		}
	}

	deps.Observe("change_password", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChanged, true, acc.ID, nil, nil)
	return nil
}

// RunToggleTwoFactor flips the two-factor flag and reports the new state.
// Turning it off also drops any outstanding code.
func RunToggleTwoFactor(ctx context.Context, accountID string, deps AccountDeps) (bool, error) {
	deps.Common.normalize()
	if !deps.ready() {
		return false, deps.Errors.EngineNotReady
	}

	updated, err := deps.UpdateAccount(ctx, accountID, func(a *account.Account) error {
		a.TwoFactorEnabled = !a.TwoFactorEnabled
		if !a.TwoFactorEnabled {
			a.ClearTwoFactorChallenge()
		}
		return nil
	})
	if err != nil {
		err = deps.lookupErr(err)
		deps.Observe("toggle_two_factor", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, false, accountID, err, nil)
		return false, err
	}

	action := deps.Events.TwoFactorDisabled
	if updated.TwoFactorEnabled {
		action = deps.Events.TwoFactorEnabled
	}
	deps.Observe("toggle_two_factor", OutcomeSuccess)
	deps.EmitAudit(ctx, action, true, accountID, nil, nil)
	return updated.TwoFactorEnabled, nil
}

// RunSetEnabled enables or disables an account. Disabling revokes every active
// session token of the account; if that revoke fails the account is enabled again
// and the error returned, so a disabled account never keeps a live token.
func RunSetEnabled(ctx context.Context, accountID string, enabled bool, deps AccountDeps) error {
	deps.Common.normalize()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	action := deps.Events.AccountEnabled
	if !enabled {
		action = deps.Events.AccountDisabled
	}

	if _, err := deps.UpdateAccount(ctx, accountID, func(a *account.Account) error {
		a.Enabled = enabled
		return nil
	}); err != nil {
		err = deps.lookupErr(err)
		deps.Observe("set_enabled", OutcomeFailure)
		deps.EmitAudit(ctx, action, false, accountID, err, nil)
		return err
	}

	if !enabled {
		n, err := deps.RevokeAll(ctx, accountID)
		if err != nil {
			err = deps.MapStoreError(err)
			if _, uerr := deps.UpdateAccount(ctx, accountID, func(a *account.Account) error {
				a.Enabled = true
				return nil
			}); uerr != nil {
				deps.Logger.WithError(uerr).WithField("account_id", accountID).Error("sessiontrust: re-enable after failed revoke")
			}
			deps.Observe("set_enabled", OutcomeFailure)
			deps.EmitAudit(ctx, action, false, accountID, err, nil)
			return err
		}
		deps.EmitAudit(ctx, deps.Events.SessionTokensRevoked, true, accountID, nil, revokedMeta(n, "disabled"))
	}

	deps.Observe("set_enabled", OutcomeSuccess)
	deps.EmitAudit(ctx, action, true, accountID, nil, nil)
	return nil
}

// RunDeleteAccount revokes the account's tokens and removes the account. A second
// revoke after the delete catches a token rotated in by a login racing the first.
func RunDeleteAccount(ctx context.Context, accountID string, deps AccountDeps) error {
	deps.Common.normalize()
	if !deps.ready() || deps.DeleteAccount == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(err error) error {
		deps.Observe("delete_account", OutcomeFailure)
		deps.EmitAudit(ctx, deps.Events.AccountDeleted, false, accountID, err, nil)
		return err
	}

	if _, err := deps.FindByID(ctx, accountID); err != nil {
		return fail(deps.lookupErr(err))
	}
	n, err := deps.RevokeAll(ctx, accountID)
	if err != nil {
		return fail(deps.MapStoreError(err))
	}
	if err := deps.DeleteAccount(ctx, accountID); err != nil {
		return fail(deps.lookupErr(err))
	}
	if late, err := deps.RevokeAll(ctx, accountID); err != nil {
		deps.Logger.WithError(err).WithField("account_id", accountID).Warn("sessiontrust: revoke after delete")
	} else {
		n += late
	}

	deps.EmitAudit(ctx, deps.Events.SessionTokensRevoked, true, accountID, nil, revokedMeta(n, "deleted"))
	deps.Observe("delete_account", OutcomeSuccess)
	deps.EmitAudit(ctx, deps.Events.AccountDeleted, true, accountID, nil, nil)
	return nil
}
