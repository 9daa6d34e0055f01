// Package verification implements one-shot tokens for email verification
// and password reset: opaque strings that can be consumed exactly once
// before their expiry.
package verification

import (
	"context"
	"errors"
	"time"
)

// Purpose separates verification tokens from reset tokens; a token saved
// for one purpose can never be consumed for the other.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

var (
	// ErrNotFound means the token string is unknown for the purpose.
	ErrNotFound = errors.New("verification token not found")
	// ErrExpired means the token exists but its validity window passed.
	ErrExpired = errors.New("verification token expired")
	// ErrUsed means the token was already consumed.
	ErrUsed = errors.New("verification token already used")
)

// Token is one challenge: an opaque secret bound to a user and purpose.
type Token struct {
	Token     string
	UserID    string
	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
	UsedAt    time.Time
}

// Store is the one-shot token port. Consume is atomic: of any number of
// concurrent consumers of the same token, exactly one receives the record
// and the rest get ErrUsed.
type Store interface {
	Save(ctx context.Context, token *Token) error
	Consume(ctx context.Context, token string, purpose Purpose) (*Token, error)
	InvalidateAllByUser(ctx context.Context, userID string, purpose Purpose) error
}
