package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared Store implementation for multi-instance
// deployments. Records live in one hash per token with a TTL at the token's
// natural expiry, so a revoked record stays visible for reuse detection
// exactly as long as the token could still be presented. Per-user and
// per-family index sets drive the bulk revocations.
//
// Rotate and the revocations run as Lua scripts so the revoked check and
// the flip are one atomic step on the server.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

const (
	rotateStatusNotFound       int64 = 0
	rotateStatusAlreadyRevoked int64 = 1
	rotateStatusDuplicate      int64 = 2
	rotateStatusRotated        int64 = 3
)

const (
	revokeStatusNotFound       int64 = 0
	revokeStatusAlreadyRevoked int64 = 1
	revokeStatusRevoked        int64 = 2
)

const saveTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "token", ARGV[1],
  "family", ARGV[2],
  "user", ARGV[3],
  "exp", ARGV[4],
  "revoked", "0",
  "ip", ARGV[5],
  "ua", ARGV[6],
  "created", ARGV[7])
redis.call("PEXPIREAT", KEYS[1], ARGV[4])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
return 1
`

var saveTokenLua = redis.NewScript(saveTokenScript)

const rotateTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("HSET", KEYS[1],
  "revoked", "1",
  "revoked_at", ARGV[8],
  "reason", ARGV[9],
  "replaced_by", ARGV[1])
redis.call("HSET", KEYS[2],
  "token", ARGV[1],
  "family", ARGV[2],
  "user", ARGV[3],
  "exp", ARGV[4],
  "revoked", "0",
  "ip", ARGV[5],
  "ua", ARGV[6],
  "created", ARGV[7])
redis.call("PEXPIREAT", KEYS[2], ARGV[4])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[1])
return 3
`

var rotateTokenLua = redis.NewScript(rotateTokenScript)

const revokeTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", "1", "revoked_at", ARGV[1], "reason", ARGV[2])
return 2
`

var revokeTokenLua = redis.NewScript(revokeTokenScript)

// NewRedisStore returns a RedisStore on client. keyPrefix namespaces every
// key; empty defaults to "hmsauth".
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "hmsauth"
	}

	return &RedisStore{client: client, prefix: keyPrefix, now: time.Now}
}

func (s *RedisStore) tokenKey(token string) string     { return s.prefix + ":rt:" + token }
func (s *RedisStore) userKey(userID string) string     { return s.prefix + ":rtu:" + userID }
func (s *RedisStore) familyKey(familyID string) string { return s.prefix + ":rtf:" + familyID }

// Save inserts token. The token string must be unused.
func (s *RedisStore) Save(ctx context.Context, token *Token) error {
	status, err := saveTokenLua.Run(ctx, s.client,
		[]string{s.tokenKey(token.Token), s.userKey(token.UserID), s.familyKey(token.FamilyID)},
		saveArgs(token)...,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis save refresh token: %w", err)
	}
	if status == 0 {
		return ErrDuplicateToken
	}

	return nil
}

// FindByToken loads the record for the given token string.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (*Token, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeToken(fields), nil
}

// Rotate atomically revokes oldToken with the rotation reason and inserts
// replacement. Exactly one of any concurrent rotations of the same token
// succeeds.
func (s *RedisStore) Rotate(ctx context.Context, oldToken string, replacement *Token) error {
	args := saveArgs(replacement)
	args = append(args,
		strconv.FormatInt(s.now().UnixMilli(), 10),
		ReasonRotation,
	)

	status, err := rotateTokenLua.Run(ctx, s.client,
		[]string{
			s.tokenKey(oldToken),
			s.tokenKey(replacement.Token),
			s.userKey(replacement.UserID),
			s.familyKey(replacement.FamilyID),
		},
		args...,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis rotate refresh token: %w", err)
	}

	switch status {
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusAlreadyRevoked:
		return ErrAlreadyRevoked
	case rotateStatusDuplicate:
		return ErrDuplicateToken
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("redis rotate refresh token: unexpected status %d", status)
	}
}

// RevokeByToken revokes the token with the given reason. Revoking an
// already revoked token is a no-op that keeps the original reason.
func (s *RedisStore) RevokeByToken(ctx context.Context, token, reason string) error {
	status, err := s.revokeOne(ctx, token, reason)
	if err != nil {
		return err
	}
	if status == revokeStatusNotFound {
		return ErrNotFound
	}

	return nil
}

// RevokeAllByUser revokes every active token of userID.
func (s *RedisStore) RevokeAllByUser(ctx context.Context, userID, reason string) (int, error) {
	return s.revokeMembers(ctx, s.userKey(userID), reason)
}

// RevokeAllByFamily revokes every active token of the rotation family.
func (s *RedisStore) RevokeAllByFamily(ctx context.Context, familyID, reason string) (int, error) {
	return s.revokeMembers(ctx, s.familyKey(familyID), reason)
}

// CountActiveByUser counts the user's unrevoked, unexpired tokens.
func (s *RedisStore) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count refresh tokens: %w", err)
	}

	now := s.now()
	count := 0
	for _, member := range members {
		t, err := s.FindByToken(ctx, member)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if t.ActiveAt(now) {
			count++
		}
	}

	return count, nil
}

// DeleteExpiredBefore prunes index-set members whose token hash already
// expired. Token hashes themselves expire server-side, so only the set
// members need collecting; cutoff is accepted for Store compatibility but
// the server's own expiry is authoritative.
func (s *RedisStore) DeleteExpiredBefore(ctx context.Context, _ time.Time) (int, error) {
	removed := 0
	for _, pattern := range []string{s.prefix + ":rtu:*", s.prefix + ":rtf:*"} {
		var cursor uint64
		for {
			keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return removed, fmt.Errorf("redis scan refresh indexes: %w", err)
			}

			for _, key := range keys {
				n, err := s.pruneSet(ctx, key)
				if err != nil {
					return removed, err
				}
				removed += n
			}

			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	return removed, nil
}

func (s *RedisStore) pruneSet(ctx context.Context, key string) (int, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis prune refresh index: %w", err)
	}

	removed := 0
	for _, member := range members {
		exists, err := s.client.Exists(ctx, s.tokenKey(member)).Result()
		if err != nil {
			return removed, fmt.Errorf("redis prune refresh index: %w", err)
		}
		if exists == 0 {
			if err := s.client.SRem(ctx, key, member).Err(); err != nil {
				return removed, fmt.Errorf("redis prune refresh index: %w", err)
			}
			removed++
		}
	}

	return removed, nil
}

func (s *RedisStore) revokeMembers(ctx context.Context, setKey, reason string) (int, error) {
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis revoke refresh tokens: %w", err)
	}

	revoked := 0
	for _, member := range members {
		status, err := s.revokeOne(ctx, member, reason)
		if err != nil {
			return revoked, err
		}
		if status == revokeStatusRevoked {
			revoked++
		}
	}

	return revoked, nil
}

func (s *RedisStore) revokeOne(ctx context.Context, token, reason string) (int64, error) {
	status, err := revokeTokenLua.Run(ctx, s.client,
		[]string{s.tokenKey(token)},
		strconv.FormatInt(s.now().UnixMilli(), 10),
		reason,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis revoke refresh token: %w", err)
	}

	return status, nil
}

func saveArgs(t *Token) []interface{} {
	return []interface{}{
		t.Token,
		t.FamilyID,
		t.UserID,
		strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10),
		t.IPAddress,
		t.UserAgent,
		strconv.FormatInt(t.CreatedAt.UnixMilli(), 10),
	}
}

func decodeToken(fields map[string]string) *Token {
	t := &Token{
		Token:           fields["token"],
		FamilyID:        fields["family"],
		UserID:          fields["user"],
		Revoked:         fields["revoked"] == "1",
		RevokedReason:   fields["reason"],
		ReplacedByToken: fields["replaced_by"],
		IPAddress:       fields["ip"],
		UserAgent:       fields["ua"],
	}

	if ms, err := strconv.ParseInt(fields["exp"], 10, 64); err == nil {
		t.ExpiresAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
		t.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["revoked_at"], 10, 64); err == nil {
		t.RevokedAt = time.UnixMilli(ms)
	}

	return t
}
