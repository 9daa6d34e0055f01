// Package refresh implements refresh-token rotation state: the token
// record, its revocation reasons, and the Store port with in-memory and
// Redis-backed implementations.
//
// A token moves through one of three outcomes. It is rotated exactly once
// (revoked with the rotation reason and a pointer to its replacement),
// revoked for an administrative or security reason, or it simply expires.
// Expiry is computed from ExpiresAt, never stored. Rotation is a
// single-winner transition: of any number of concurrent attempts to rotate
// the same token, exactly one succeeds and the rest observe
// ErrAlreadyRevoked.
package refresh

import (
	"context"
	"errors"
	"time"
)

// Revocation reasons recorded on tokens. ReasonReuseDetected marks tokens
// revoked in a family-wide cascade after a revoked token was presented.
const (
	ReasonRotation       = "token rotation"
	ReasonLogout         = "user logout"
	ReasonLogoutAll      = "logout all devices"
	ReasonPasswordChange = "password changed"
	ReasonReuseDetected  = "token reuse detected"
	ReasonAdmin          = "revoked by administrator"
)

var (
	// ErrNotFound means the token string is unknown to the store.
	ErrNotFound = errors.New("refresh token not found")
	// ErrAlreadyRevoked means a state transition lost: the token was
	// revoked before this operation could claim it.
	ErrAlreadyRevoked = errors.New("refresh token already revoked")
	// ErrDuplicateToken means Save collided on the token string.
	ErrDuplicateToken = errors.New("refresh token already exists")
)

// Token is one refresh token record. FamilyID ties together the rotation
// chain descending from a single login; IPAddress and UserAgent record the
// issuing client for audit.
type Token struct {
	Token           string
	FamilyID        string
	UserID          string
	ExpiresAt       time.Time
	Revoked         bool
	RevokedAt       time.Time
	RevokedReason   string
	ReplacedByToken string
	IPAddress       string
	UserAgent       string
	CreatedAt       time.Time
}

// ExpiredAt reports whether the token is past its expiry at the given
// instant.
func (t *Token) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ActiveAt reports whether the token is usable at the given instant:
// neither revoked nor expired.
func (t *Token) ActiveAt(now time.Time) bool {
	return !t.Revoked && !t.ExpiredAt(now)
}

// Store is the refresh-token persistence port.
//
// Rotate is the critical operation: it atomically revokes oldToken with the
// rotation reason, points it at replacement, and saves replacement. If
// oldToken is already revoked it returns ErrAlreadyRevoked without side
// effects, which is how a losing racer learns it must treat the
// presentation as reuse. Revocation operations are idempotent on already
// revoked tokens and preserve the original reason.
type Store interface {
	Save(ctx context.Context, token *Token) error
	FindByToken(ctx context.Context, token string) (*Token, error)
	Rotate(ctx context.Context, oldToken string, replacement *Token) error
	RevokeByToken(ctx context.Context, token, reason string) error
	RevokeAllByUser(ctx context.Context, userID, reason string) (int, error)
	RevokeAllByFamily(ctx context.Context, familyID, reason string) (int, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}
