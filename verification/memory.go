package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local Store implementation and the Builder
// default. One mutex guards the consume transition, making it one-shot.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*Token),
		now:    time.Now,
	}
}

// Save stores token, overwriting any previous record under the same string.
func (s *MemoryStore) Save(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *token
	s.tokens[clone.Token] = &clone

	return nil
}

// Consume atomically marks the token used and returns it. Purpose mismatch
// reads as not found so a reset token leaks nothing on the verification
// path.
func (s *MemoryStore) Consume(_ context.Context, token string, purpose Purpose) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.Purpose != purpose {
		return nil, ErrNotFound
	}
	if t.Used {
		return nil, ErrUsed
	}
	if !t.ExpiresAt.After(s.now()) {
		return nil, ErrExpired
	}

	t.Used = true
	t.UsedAt = s.now()

	clone := *t
	return &clone, nil
}

// InvalidateAllByUser drops every pending token of the user for the given
// purpose, used before issuing a replacement challenge.
func (s *MemoryStore) InvalidateAllByUser(_ context.Context, userID string, purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.tokens {
		if t.UserID == userID && t.Purpose == purpose && !t.Used {
			delete(s.tokens, key)
		}
	}

	return nil
}
