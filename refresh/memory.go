package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local Store implementation. A single mutex
// guards every transition, which is what makes Rotate single-winner: the
// revoked check and the flip happen under one critical section.
type MemoryStore struct {
	mu       sync.Mutex
	tokens   map[string]*Token
	byUser   map[string]map[string]struct{}
	byFamily map[string]map[string]struct{}
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:   make(map[string]*Token),
		byUser:   make(map[string]map[string]struct{}),
		byFamily: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Save inserts token. The token string must be unused.
func (s *MemoryStore) Save(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(token)
}

// FindByToken returns a copy of the record for the given token string.
func (s *MemoryStore) FindByToken(_ context.Context, token string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *t
	return &clone, nil
}

// Rotate atomically revokes oldToken with the rotation reason and inserts
// replacement. Exactly one of any concurrent rotations of the same token
// succeeds.
func (s *MemoryStore) Rotate(_ context.Context, oldToken string, replacement *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[oldToken]
	if !ok {
		return ErrNotFound
	}
	if old.Revoked {
		return ErrAlreadyRevoked
	}
	if err := s.insert(replacement); err != nil {
		return err
	}

	old.Revoked = true
	old.RevokedAt = s.now()
	old.RevokedReason = ReasonRotation
	old.ReplacedByToken = replacement.Token

	return nil
}

// RevokeByToken revokes the token with the given reason. Revoking an
// already revoked token is a no-op that keeps the original reason.
func (s *MemoryStore) RevokeByToken(_ context.Context, token, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return ErrNotFound
	}

	s.revoke(t, reason)
	return nil
}

// RevokeAllByUser revokes every active token of userID and returns how many
// were flipped.
func (s *MemoryStore) RevokeAllByUser(_ context.Context, userID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeSet(s.byUser[userID], reason), nil
}

// RevokeAllByFamily revokes every active token of the rotation family and
// returns how many were flipped.
func (s *MemoryStore) RevokeAllByFamily(_ context.Context, familyID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeSet(s.byFamily[familyID], reason), nil
}

// CountActiveByUser counts the user's unrevoked, unexpired tokens.
func (s *MemoryStore) CountActiveByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for token := range s.byUser[userID] {
		if t, ok := s.tokens[token]; ok && t.ActiveAt(now) {
			count++
		}
	}

	return count, nil
}

// DeleteExpiredBefore removes records whose expiry precedes cutoff,
// regardless of revocation state, and returns how many were deleted.
func (s *MemoryStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for token, t := range s.tokens {
		if t.ExpiresAt.Before(cutoff) {
			s.unindex(token, t)
			deleted++
		}
	}

	return deleted, nil
}

// insert assumes s.mu is held.
func (s *MemoryStore) insert(token *Token) error {
	if _, exists := s.tokens[token.Token]; exists {
		return ErrDuplicateToken
	}

	clone := *token
	s.tokens[clone.Token] = &clone

	if s.byUser[clone.UserID] == nil {
		s.byUser[clone.UserID] = make(map[string]struct{})
	}
	s.byUser[clone.UserID][clone.Token] = struct{}{}

	if s.byFamily[clone.FamilyID] == nil {
		s.byFamily[clone.FamilyID] = make(map[string]struct{})
	}
	s.byFamily[clone.FamilyID][clone.Token] = struct{}{}

	return nil
}

// revoke assumes s.mu is held.
func (s *MemoryStore) revoke(t *Token, reason string) bool {
	if t.Revoked {
		return false
	}

	t.Revoked = true
	t.RevokedAt = s.now()
	t.RevokedReason = reason

	return true
}

// revokeSet assumes s.mu is held.
func (s *MemoryStore) revokeSet(tokens map[string]struct{}, reason string) int {
	revoked := 0
	for token := range tokens {
		if t, ok := s.tokens[token]; ok && s.revoke(t, reason) {
			revoked++
		}
	}

	return revoked
}

// unindex assumes s.mu is held.
func (s *MemoryStore) unindex(token string, t *Token) {
	delete(s.tokens, token)

	if set := s.byUser[t.UserID]; set != nil {
		delete(set, token)
		if len(set) == 0 {
			delete(s.byUser, t.UserID)
		}
	}
	if set := s.byFamily[t.FamilyID]; set != nil {
		delete(set, token)
		if len(set) == 0 {
			delete(s.byFamily, t.FamilyID)
		}
	}
}
