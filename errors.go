package hmsAuth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies every failure the engine can produce. Each kind maps
// to exactly one HTTP status and machine code, so boundary layers can switch
// on the kind without string matching.
type ErrorKind uint8

const (
	// KindInternal covers port failures and other conditions the caller
	// cannot repair.
	KindInternal ErrorKind = iota
	// KindInvalidCredentials is returned for unknown identifiers and bad
	// passwords alike, so responses never reveal which one it was.
	KindInvalidCredentials
	// KindAccountLocked means the account is locked; UnlockAt carries the
	// lock expiry when known.
	KindAccountLocked
	// KindAccountDisabled means the account exists but is disabled.
	KindAccountDisabled
	// KindEmailNotVerified means credentials were correct but the email
	// address has not been verified yet.
	KindEmailNotVerified
	// KindRateLimitExceeded means the source exhausted its request budget
	// or is blocked after repeated failures; RetryAfter carries the wait.
	KindRateLimitExceeded
	// KindTokenExpired means the token was well-formed and authentic but
	// past its expiry.
	KindTokenExpired
	// KindTokenInvalid means the token is malformed, carries a bad
	// signature, has the wrong type claim, or is unknown to the store.
	KindTokenInvalid
	// KindTokenRevoked means the token was explicitly revoked, including
	// revocation triggered by reuse detection.
	KindTokenRevoked
	// KindUserNotFound means the referenced user does not exist.
	KindUserNotFound
	// KindUserAlreadyExists means a registration collided on email or
	// username.
	KindUserAlreadyExists
	// KindPasswordValidation means the candidate password violated the
	// strength policy; Violations lists every violated rule.
	KindPasswordValidation
)

// Kind sentinels. errors.Is(err, ErrTokenRevoked) matches any *AuthError of
// that kind, so callers can branch without unpacking the struct.
var (
	ErrInternal             = &AuthError{Kind: KindInternal, Message: "internal authentication error"}
	ErrInvalidCredentials   = &AuthError{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountLocked        = &AuthError{Kind: KindAccountLocked, Message: "account locked"}
	ErrAccountDisabled      = &AuthError{Kind: KindAccountDisabled, Message: "account disabled"}
	ErrEmailNotVerified     = &AuthError{Kind: KindEmailNotVerified, Message: "email address not verified"}
	ErrRateLimitExceeded    = &AuthError{Kind: KindRateLimitExceeded, Message: "too many attempts"}
	ErrTokenExpired         = &AuthError{Kind: KindTokenExpired, Message: "token expired"}
	ErrTokenInvalid         = &AuthError{Kind: KindTokenInvalid, Message: "invalid token"}
	ErrTokenRevoked         = &AuthError{Kind: KindTokenRevoked, Message: "token revoked"}
	ErrUserNotFound         = &AuthError{Kind: KindUserNotFound, Message: "user not found"}
	ErrUserAlreadyExists    = &AuthError{Kind: KindUserAlreadyExists, Message: "user already exists"}
	ErrPasswordValidation   = &AuthError{Kind: KindPasswordValidation, Message: "password does not meet requirements"}
	ErrEngineNotInitialized = &AuthError{Kind: KindInternal, Message: "engine not initialized"}
)

// AuthError is the single error type every Engine method returns. The Kind
// selects which payload fields are meaningful: RetryAfter for rate limits,
// UnlockAt for locks, Violations for password policy failures.
type AuthError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	UnlockAt   time.Time
	Violations []string

	cause error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == KindPasswordValidation && len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Is reports kind equality, so every *AuthError matches its kind sentinel.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus maps the kind to the status a boundary layer should respond
// with.
func (e *AuthError) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	switch e.Kind {
	case KindInvalidCredentials, KindTokenExpired, KindTokenInvalid, KindTokenRevoked:
		return http.StatusUnauthorized
	case KindAccountLocked, KindAccountDisabled, KindEmailNotVerified:
		return http.StatusForbidden
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindUserNotFound:
		return http.StatusNotFound
	case KindUserAlreadyExists:
		return http.StatusConflict
	case KindPasswordValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable machine-readable identifier for the kind.
func (e *AuthError) Code() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindAccountLocked:
		return "ACCOUNT_LOCKED"
	case KindAccountDisabled:
		return "ACCOUNT_DISABLED"
	case KindEmailNotVerified:
		return "EMAIL_NOT_VERIFIED"
	case KindRateLimitExceeded:
		return "RATE_LIMIT_EXCEEDED"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenInvalid:
		return "TOKEN_INVALID"
	case KindTokenRevoked:
		return "TOKEN_REVOKED"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindUserAlreadyExists:
		return "USER_ALREADY_EXISTS"
	case KindPasswordValidation:
		return "PASSWORD_VALIDATION_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}

func errInternal(cause error) *AuthError {
	return &AuthError{Kind: KindInternal, Message: "internal authentication error", cause: cause}
}

func errRateLimited(retryAfter time.Duration) *AuthError {
	return &AuthError{
		Kind:       KindRateLimitExceeded,
		Message:    "too many attempts, please try again later",
		RetryAfter: retryAfter,
	}
}

func errSourceBlocked(unlockAt time.Time, retryAfter time.Duration) *AuthError {
	return &AuthError{
		Kind:       KindRateLimitExceeded,
		Message:    "too many failed attempts, source temporarily blocked",
		RetryAfter: retryAfter,
		UnlockAt:   unlockAt,
	}
}

func errAccountLocked(unlockAt time.Time) *AuthError {
	return &AuthError{
		Kind:     KindAccountLocked,
		Message:  "account locked due to repeated failures",
		UnlockAt: unlockAt,
	}
}

func errPasswordValidation(violations []string) *AuthError {
	return &AuthError{
		Kind:       KindPasswordValidation,
		Message:    "password does not meet requirements",
		Violations: violations,
	}
}

func errUserExists(field string) *AuthError {
	return &AuthError{
		Kind:    KindUserAlreadyExists,
		Message: fmt.Sprintf("user with this %s already exists", field),
	}
}
