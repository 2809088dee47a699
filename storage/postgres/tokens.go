package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/session"
)

const tokenColumns = `id, account_id, value_hash, token_type, revoked, expired, issued_at, expires_at`

func insertToken(ctx context.Context, db DBTX, token session.Token) error {
	kind := token.Type
	if kind == "" {
		kind = session.TokenTypeBearer
	}
	_, err := db.ExecContext(ctx, `INSERT INTO session_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, FALSE, FALSE, $5, $6)`,
		token.ID, token.AccountID, token.ValueHash, string(kind), token.IssuedAt.UTC(), token.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func revokeActive(ctx context.Context, db DBTX, accountID string, now time.Time) (int, error) {
	res, err := db.ExecContext(ctx, `UPDATE session_tokens SET revoked = TRUE, expired = TRUE
		WHERE account_id = $1 AND NOT revoked AND NOT expired AND expires_at > $2`,
		accountID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

func (s *Store) Save(ctx context.Context, token session.Token) error {
	return insertToken(ctx, s.db, token)
}

func (s *Store) RevokeAll(ctx context.Context, accountID string) (int, error) {
	return revokeActive(ctx, s.db, accountID, s.now().UTC())
}

// Rotate locks the owning account row, revokes its active tokens, and inserts token
// in one transaction. A disabled account fails with account.ErrDisabled; the row
// lock orders this check against Update, which takes the same lock.
func (s *Store) Rotate(ctx context.Context, token session.Token) (int, error) {
	var revoked int
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		var enabled bool
		err := tx.QueryRowContext(ctx, `SELECT enabled FROM accounts WHERE id = $1 FOR UPDATE`, token.AccountID).Scan(&enabled)
		if errors.Is(err, sql.ErrNoRows) {
			return account.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !enabled {
			return account.ErrDisabled
		}

		revoked, err = revokeActive(ctx, tx, token.AccountID, s.now().UTC())
		if err != nil {
			return err
		}
		return insertToken(ctx, tx, token)
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

func scanToken(scan func(dest ...any) error) (session.Token, error) {
	var (
		token session.Token
		kind  string
	)
	if err := scan(&token.ID, &token.AccountID, &token.ValueHash, &kind, &token.Revoked, &token.Expired, &token.IssuedAt, &token.ExpiresAt); err != nil {
		return session.Token{}, err
	}
	token.Type = session.TokenType(kind)
	return token, nil
}

func (s *Store) ByHash(ctx context.Context, hash string) (session.Token, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM session_tokens WHERE value_hash = $1`, hash)
	token, err := scanToken(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Token{}, session.ErrTokenNotFound
	}
	if err != nil {
		return session.Token{}, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (s *Store) Active(ctx context.Context, accountID string) ([]session.Token, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tokenColumns+` FROM session_tokens
		WHERE account_id = $1 AND NOT revoked AND NOT expired AND expires_at > $2
		ORDER BY issued_at`, accountID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []session.Token
	for rows.Next() {
		token, err := scanToken(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
