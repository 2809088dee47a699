// Package memory implements the account and token stores in process memory.
//
// A single mutex serializes every mutation, which makes [Store.Update] and
// [Store.Rotate] trivially atomic per account. Intended for tests, development, and
// single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessiontrust/account"
	"github.com/MrEthical07/sessiontrust/session"
)

// Store holds accounts and token records.
type Store struct {
	mu       sync.Mutex
	accounts map[string]account.Account
	byEmail  map[string]string
	tokens   map[string]session.Token
	byOwner  map[string]map[string]struct{}
	now      func() time.Time

	// sweepAt is the token count that triggers a sweep of expired records.
	sweepAt int
}

const minSweep = 1024

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: map[string]account.Account{},
		byEmail:  map[string]string{},
		tokens:   map[string]session.Token{},
		byOwner:  map[string]map[string]struct{}{},
		now:      time.Now,
		sweepAt:  minSweep,
	}
}

// Create inserts acc, assigning an id when empty.
func (s *Store) Create(_ context.Context, acc account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := account.NormalizeEmail(acc.Email)
	if _, taken := s.byEmail[email]; taken {
		return account.Account{}, account.ErrDuplicateEmail
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := s.now()
	acc.Email = email
	acc.CreatedAt, acc.UpdatedAt = now, now

	s.accounts[acc.ID] = acc
	s.byEmail[email] = acc.ID
	return acc, nil
}

func (s *Store) ByID(_ context.Context, id string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

func (s *Store) ByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) ByResetTokenHash(_ context.Context, hash string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash == "" {
		return account.Account{}, account.ErrNotFound
	}
	for _, acc := range s.accounts {
		if acc.ResetTokenHash == hash {
			return acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

// Update applies mutate to a copy and stores it only when mutate succeeds.
func (s *Store) Update(_ context.Context, id string, mutate func(*account.Account) error) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	next := acc
	if err := mutate(&next); err != nil {
		return account.Account{}, err
	}
	next.ID = acc.ID
	next.Email = acc.Email
	next.UpdatedAt = s.now()
	s.accounts[id] = next
	return next, nil
}

// Delete removes the account and its token records.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, acc.Email)
	for hash := range s.byOwner[id] {
		delete(s.tokens, hash)
	}
	delete(s.byOwner, id)
	return nil
}

func (s *Store) Save(_ context.Context, token session.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveLocked(token)
	return nil
}

func (s *Store) RevokeAll(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeLocked(accountID), nil
}

// Rotate revokes the account's active tokens and saves token under one lock. It
// fails with account.ErrNotFound or account.ErrDisabled when the owning account is
// gone or disabled, so a token never outlives a concurrent delete or disable.
func (s *Store) Rotate(_ context.Context, token session.Token) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[token.AccountID]
	if !ok {
		return 0, account.ErrNotFound
	}
	if !acc.Enabled {
		return 0, account.ErrDisabled
	}

	n := s.revokeLocked(token.AccountID)
	s.saveLocked(token)
	return n, nil
}

func (s *Store) ByHash(_ context.Context, hash string) (session.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[hash]
	if !ok {
		return session.Token{}, session.ErrTokenNotFound
	}
	return token, nil
}

func (s *Store) Active(_ context.Context, accountID string) ([]session.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var active []session.Token
	for hash := range s.byOwner[accountID] {
		if token := s.tokens[hash]; token.Active(now) {
			active = append(active, token)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].IssuedAt.Before(active[j].IssuedAt) })
	return active, nil
}

func (s *Store) saveLocked(token session.Token) {
	if len(s.tokens) >= s.sweepAt {
		s.sweepLocked(s.now())
		s.sweepAt = max(2*len(s.tokens), minSweep)
	}
	if token.Type == "" {
		token.Type = session.TokenTypeBearer
	}
	s.tokens[token.ValueHash] = token
	owned, ok := s.byOwner[token.AccountID]
	if !ok {
		owned = map[string]struct{}{}
		s.byOwner[token.AccountID] = owned
	}
	owned[token.ValueHash] = struct{}{}
}

// revokeLocked revokes the account's active tokens. Records past their expiry are
// dropped; revoked ones are kept until then so lookups still see them as revoked.
func (s *Store) revokeLocked(accountID string) int {
	now := s.now()
	revoked := 0
	for hash := range s.byOwner[accountID] {
		token := s.tokens[hash]
		if !now.Before(token.ExpiresAt) {
			s.dropLocked(hash, accountID)
			continue
		}
		if !token.Active(now) {
			continue
		}
		token.Revoked, token.Expired = true, true
		s.tokens[hash] = token
		revoked++
	}
	return revoked
}

func (s *Store) sweepLocked(now time.Time) {
	for hash, token := range s.tokens {
		if !now.Before(token.ExpiresAt) {
			s.dropLocked(hash, token.AccountID)
		}
	}
}

func (s *Store) dropLocked(hash, accountID string) {
	delete(s.tokens, hash)
	owned := s.byOwner[accountID]
	delete(owned, hash)
	if len(owned) == 0 {
		delete(s.byOwner, accountID)
	}
}
