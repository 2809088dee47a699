package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessiontrust/account"
)

const accountColumns = `id, email, name, password_hash, role, enabled, two_factor_enabled,
	two_factor_code, two_factor_issued_at, reset_token_hash, reset_issued_at, created_at, updated_at`

func scanAccount(row *sql.Row) (account.Account, error) {
	var (
		acc                       account.Account
		code, resetHash           sql.NullString
		codeIssuedAt, resetIssued sql.NullTime
	)
	err := row.Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Role, &acc.Enabled, &acc.TwoFactorEnabled,
		&code, &codeIssuedAt, &resetHash, &resetIssued, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("db error: %w", err)
	}
	acc.TwoFactorCode = code.String
	acc.TwoFactorIssuedAt = codeIssuedAt.Time
	acc.ResetTokenHash = resetHash.String
	acc.ResetIssuedAt = resetIssued.Time
	return acc, nil
}

// Create inserts acc, assigning an id when empty.
func (s *Store) Create(ctx context.Context, acc account.Account) (account.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.Email = account.NormalizeEmail(acc.Email)
	now := s.now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		acc.ID, acc.Email, acc.Name, acc.PasswordHash, acc.Role, acc.Enabled, acc.TwoFactorEnabled,
		nullString(acc.TwoFactorCode), nullTime(acc.TwoFactorIssuedAt),
		nullString(acc.ResetTokenHash), nullTime(acc.ResetIssuedAt),
		acc.CreatedAt, acc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return account.Account{}, account.ErrDuplicateEmail
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (s *Store) ByID(ctx context.Context, id string) (account.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return account.Account{}, account.ErrNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *Store) ByEmail(ctx context.Context, email string) (account.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, account.NormalizeEmail(email)))
}

func (s *Store) ByResetTokenHash(ctx context.Context, hash string) (account.Account, error) {
	if hash == "" {
		return account.Account{}, account.ErrNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = $1`, hash))
}

// Update locks the account row, applies mutate, and writes the result back in the
// same transaction.
func (s *Store) Update(ctx context.Context, id string, mutate func(*account.Account) error) (account.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return account.Account{}, account.ErrNotFound
	}

	var out account.Account
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		current, err := scanAccount(tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID, next.Email, next.CreatedAt = current.ID, current.Email, current.CreatedAt
		next.UpdatedAt = s.now().UTC()

		_, err = tx.ExecContext(ctx, `UPDATE accounts SET
			name = $2, password_hash = $3, role = $4, enabled = $5, two_factor_enabled = $6,
			two_factor_code = $7, two_factor_issued_at = $8, reset_token_hash = $9, reset_issued_at = $10,
			updated_at = $11
			WHERE id = $1`,
			next.ID, next.Name, next.PasswordHash, next.Role, next.Enabled, next.TwoFactorEnabled,
			nullString(next.TwoFactorCode), nullTime(next.TwoFactorIssuedAt),
			nullString(next.ResetTokenHash), nullTime(next.ResetIssuedAt),
			next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return account.Account{}, err
	}
	return out, nil
}

// Delete removes the account; its token rows go with it by cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return account.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}
	return nil
}
