package verification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared Store implementation. Token hashes carry a TTL
// at their expiry, so an expired challenge reads as ErrNotFound rather than
// ErrExpired; both fail the consume, so callers see the same outcome.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

const (
	consumeStatusNotFound int64 = 0
	consumeStatusUsed     int64 = 1
	consumeStatusConsumed int64 = 2
)

const consumeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "used") == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "used", "1", "used_at", ARGV[1])
return 2
`

var consumeLua = redis.NewScript(consumeScript)

// NewRedisStore returns a RedisStore on client. keyPrefix namespaces every
// key; empty defaults to "hmsauth".
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "hmsauth"
	}

	return &RedisStore{client: client, prefix: keyPrefix, now: time.Now}
}

func (s *RedisStore) tokenKey(purpose Purpose, token string) string {
	return s.prefix + ":vt:" + string(purpose) + ":" + token
}

func (s *RedisStore) userKey(purpose Purpose, userID string) string {
	return s.prefix + ":vtu:" + string(purpose) + ":" + userID
}

// Save stores token with a TTL at its expiry and indexes it by user.
func (s *RedisStore) Save(ctx context.Context, token *Token) error {
	key := s.tokenKey(token.Purpose, token.Token)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"token", token.Token,
		"user", token.UserID,
		"exp", strconv.FormatInt(token.ExpiresAt.UnixMilli(), 10),
		"created", strconv.FormatInt(token.CreatedAt.UnixMilli(), 10),
		"used", "0",
	)
	pipe.PExpireAt(ctx, key, token.ExpiresAt)
	pipe.SAdd(ctx, s.userKey(token.Purpose, token.UserID), token.Token)
	pipe.PExpireAt(ctx, s.userKey(token.Purpose, token.UserID), token.ExpiresAt)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save verification token: %w", err)
	}

	return nil
}

// Consume atomically marks the token used and returns it.
func (s *RedisStore) Consume(ctx context.Context, token string, purpose Purpose) (*Token, error) {
	key := s.tokenKey(purpose, token)

	status, err := consumeLua.Run(ctx, s.client,
		[]string{key},
		strconv.FormatInt(s.now().UnixMilli(), 10),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis consume verification token: %w", err)
	}

	switch status {
	case consumeStatusNotFound:
		return nil, ErrNotFound
	case consumeStatusUsed:
		return nil, ErrUsed
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis consume verification token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	t := &Token{
		Token:   fields["token"],
		UserID:  fields["user"],
		Purpose: purpose,
		Used:    true,
	}
	if ms, err := strconv.ParseInt(fields["exp"], 10, 64); err == nil {
		t.ExpiresAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
		t.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["used_at"], 10, 64); err == nil {
		t.UsedAt = time.UnixMilli(ms)
	}

	return t, nil
}

// InvalidateAllByUser deletes every pending token of the user for the
// purpose.
func (s *RedisStore) InvalidateAllByUser(ctx context.Context, userID string, purpose Purpose) error {
	setKey := s.userKey(purpose, userID)

	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("redis invalidate verification tokens: %w", err)
	}

	for _, member := range members {
		if err := s.client.Del(ctx, s.tokenKey(purpose, member)).Err(); err != nil {
			return fmt.Errorf("redis invalidate verification tokens: %w", err)
		}
	}
	if err := s.client.Del(ctx, setKey).Err(); err != nil {
		return fmt.Errorf("redis invalidate verification tokens: %w", err)
	}

	return nil
}
