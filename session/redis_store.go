package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokeAllFunc marks every active token in an account index revoked and expired and
// prunes index entries whose record already expired out of Redis.
const revokeAllFunc = `
local function revoke_all(index_key, token_prefix, now_ms)
  local revoked = 0
  local members = redis.call("SMEMBERS", index_key)
  for _, member in ipairs(members) do
    local token_key = token_prefix .. member
    local state = redis.call("HMGET", token_key, "revoked", "expired", "exp")
    if not state[1] then
      redis.call("SREM", index_key, member)
    elseif state[1] == "0" and state[2] == "0" and state[3] and tonumber(state[3]) > now_ms then
      redis.call("HSET", token_key, "revoked", "1", "expired", "1")
      revoked = revoked + 1
    end
  end
  return revoked
end
`

const saveFunc = `
local function save(index_key, token_key, id, account, hash, kind, iat, exp)
  redis.call("HSET", token_key, "id", id, "account", account, "hash", hash, "type", kind,
    "revoked", "0", "expired", "0", "iat", iat, "exp", exp)
  redis.call("PEXPIREAT", token_key, exp)
  redis.call("SADD", index_key, hash)
end
`

var (
	revokeAllLua = redis.NewScript(revokeAllFunc + `
return revoke_all(KEYS[1], ARGV[1], tonumber(ARGV[2]))
`)
	rotateLua = redis.NewScript(revokeAllFunc + saveFunc + `
local revoked = revoke_all(KEYS[1], ARGV[1], tonumber(ARGV[2]))
save(KEYS[1], KEYS[2], ARGV[3], ARGV[4], ARGV[5], ARGV[6], ARGV[7], ARGV[8])
return revoked
`)
	saveLua = redis.NewScript(saveFunc + `
save(KEYS[1], KEYS[2], ARGV[1], ARGV[2], ARGV[3], ARGV[4], ARGV[5], ARGV[6])
return 1
`)
)

// RedisStore keeps token records in Redis hashes with a per-account index set.
//
// The Lua scripts build token keys at runtime, so the store expects a single Redis
// node (or a proxy that routes every key of the prefix to one node).
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store rooted at prefix (default "st").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "st"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) tokenPrefix() string {
	return s.prefix + ":tok:"
}

func (s *RedisStore) tokenKey(hash string) string {
	return s.tokenPrefix() + hash
}

func (s *RedisStore) indexKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Save records token without touching the account's other tokens.
func (s *RedisStore) Save(ctx context.Context, token Token) error {
	if err := validate(token); err != nil {
		return err
	}
	err := saveLua.Run(ctx, s.redis,
		[]string{s.indexKey(token.AccountID), s.tokenKey(token.ValueHash)},
		saveArgs(token)...,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAll marks every active token of accountID revoked and expired and returns how
// many were affected.
func (s *RedisStore) RevokeAll(ctx context.Context, accountID string) (int, error) {
	n, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.indexKey(accountID)},
		s.tokenPrefix(), s.now().UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Rotate revokes every active token of token.AccountID and records token, atomically.
// It returns how many tokens were revoked.
func (s *RedisStore) Rotate(ctx context.Context, token Token) (int, error) {
	if err := validate(token); err != nil {
		return 0, err
	}
	args := append([]any{s.tokenPrefix(), s.now().UnixMilli()}, saveArgs(token)...)
	n, err := rotateLua.Run(ctx, s.redis,
		[]string{s.indexKey(token.AccountID), s.tokenKey(token.ValueHash)},
		args...,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ByHash returns the record for a token hash.
func (s *RedisStore) ByHash(ctx context.Context, hash string) (Token, error) {
	fields, err := s.redis.HGetAll(ctx, s.tokenKey(hash)).Result()
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Token{}, ErrTokenNotFound
	}
	return decode(fields)
}

// Active lists the account's tokens that are currently active.
func (s *RedisStore) Active(ctx context.Context, accountID string) ([]Token, error) {
	members, err := s.redis.SMembers(ctx, s.indexKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, s.tokenKey(member))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	var active []Token
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		token, err := decode(fields)
		if err != nil {
			return nil, err
		}
		if token.Active(now) {
			active = append(active, token)
		}
	}
	return active, nil
}

func validate(token Token) error {
	if token.AccountID == "" || token.ValueHash == "" || token.ExpiresAt.IsZero() {
		return errors.New("session token record is incomplete")
	}
	return nil
}

func saveArgs(token Token) []any {
	kind := token.Type
	if kind == "" {
		kind = TokenTypeBearer
	}
	return []any{
		token.ID,
		token.AccountID,
		token.ValueHash,
		string(kind),
		token.IssuedAt.UnixMilli(),
		token.ExpiresAt.UnixMilli(),
	}
}

func decode(fields map[string]string) (Token, error) {
	iat, err := strconv.ParseInt(fields["iat"], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: corrupt iat", ErrStoreUnavailable)
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: corrupt exp", ErrStoreUnavailable)
	}
	return Token{
		ID:        fields["id"],
		AccountID: fields["account"],
		ValueHash: fields["hash"],
		Type:      TokenType(fields["type"]),
		Revoked:   fields["revoked"] == "1",
		Expired:   fields["expired"] == "1",
		IssuedAt:  time.UnixMilli(iat),
		ExpiresAt: time.UnixMilli(exp),
	}, nil
}
