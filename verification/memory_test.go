package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testChallenge(token, user string, purpose Purpose, expiresAt time.Time) *Token {
	return &Token{
		Token:     token,
		UserID:    user,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestMemoryConsumeOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Consume(ctx, "vt-1", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.UserID != "user-1" || !got.Used || got.UsedAt.IsZero() {
		t.Fatalf("consumed record = %+v", got)
	}

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrUsed) {
		t.Fatalf("second Consume = %v, want ErrUsed", err)
	}
}

func TestMemoryConsumeUnknown(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Consume(context.Background(), "nope", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Consume(unknown) = %v, want ErrNotFound", err)
	}
}

func TestMemoryConsumeWrongPurpose(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposePasswordReset, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A reset token presented on the verification path reads as unknown.
	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-purpose Consume = %v, want ErrNotFound", err)
	}

	// It remains consumable for its own purpose.
	if _, err := s.Consume(ctx, "vt-1", PurposePasswordReset); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
}

func TestMemoryConsumeExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, now.Add(time.Minute))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrExpired) {
		t.Fatalf("Consume(expired) = %v, want ErrExpired", err)
	}
}

func TestMemoryConsumeSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposePasswordReset, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, "vt-1", PurposePasswordReset)
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case errors.Is(err, ErrUsed):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestMemoryInvalidateAllByUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := s.Save(ctx, testChallenge("vt-1", "user-1", PurposeEmailVerification, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, testChallenge("vt-2", "user-1", PurposePasswordReset, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, testChallenge("vt-3", "user-2", PurposeEmailVerification, expiry)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.InvalidateAllByUser(ctx, "user-1", PurposeEmailVerification); err != nil {
		t.Fatalf("InvalidateAllByUser failed: %v", err)
	}

	if _, err := s.Consume(ctx, "vt-1", PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalidated token = %v, want ErrNotFound", err)
	}

	// Other purpose and other user are untouched.
	if _, err := s.Consume(ctx, "vt-2", PurposePasswordReset); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if _, err := s.Consume(ctx, "vt-3", PurposeEmailVerification); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
}
