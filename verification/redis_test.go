package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test"), mr
}

func TestRedisConsumeOnce(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Consume(ctx, "vt-1", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.UserID != "user-1" || !got.Used {
		t.Fatalf("consumed record = %+v", got)
	}

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrUsed) {
		t.Fatalf("second Consume = %v, want ErrUsed", err)
	}
}

func TestRedisConsumeUnknown(t *testing.T) {
	s, _ := newTestRedisStore(t)

	if _, err := s.Consume(context.Background(), "nope", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Consume(unknown) = %v, want ErrNotFound", err)
	}
}

func TestRedisConsumeWrongPurpose(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposePasswordReset, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Keys are namespaced by purpose, so the wrong path sees nothing.
	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-purpose Consume = %v, want ErrNotFound", err)
	}
	if _, err := s.Consume(ctx, "vt-1", PurposePasswordReset); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
}

func TestRedisExpiredTokenReadsAsNotFound(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Consume(expired) = %v, want ErrNotFound", err)
	}
}

func TestRedisInvalidateAllByUser(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, testChallenge("vt-2", "user-1", PurposePasswordReset, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.InvalidateAllByUser(ctx, "user-1", PurposeEmailVerification); err != nil {
		t.Fatalf("InvalidateAllByUser failed: %v", err)
	}

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalidated token = %v, want ErrNotFound", err)
	}
	if _, err := s.Consume(ctx, "vt-2", PurposePasswordReset); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
}
