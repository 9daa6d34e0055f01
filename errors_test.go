package hmsAuth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAuthErrorKindMatching(t *testing.T) {
	err := errAccountLocked(time.Now().Add(15 * time.Minute))
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("instance must match its kind sentinel")
	}
	if errors.Is(err, ErrTokenRevoked) {
		t.Fatal("instance must not match other kinds")
	}

	// Wrapping preserves kind matching.
	wrapped := fmt.Errorf("handler: %w", err)
	if !errors.Is(wrapped, ErrAccountLocked) {
		t.Fatal("wrapped instance must still match")
	}
}

func TestAuthErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := errInternal(cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("Error() = %q, want cause included", err.Error())
	}
}

func TestAuthErrorHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *AuthError
		want int
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrTokenRevoked, http.StatusUnauthorized},
		{ErrAccountLocked, http.StatusForbidden},
		{ErrAccountDisabled, http.StatusForbidden},
		{ErrEmailNotVerified, http.StatusForbidden},
		{ErrRateLimitExceeded, http.StatusTooManyRequests},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrUserAlreadyExists, http.StatusConflict},
		{ErrPasswordValidation, http.StatusBadRequest},
		{ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("%s: HTTPStatus = %d, want %d", tc.err.Code(), got, tc.want)
		}
	}
}

func TestAuthErrorCodeIsStable(t *testing.T) {
	if got := ErrInvalidCredentials.Code(); got != "INVALID_CREDENTIALS" {
		t.Fatalf("Code = %q", got)
	}
	if got := ErrRateLimitExceeded.Code(); got != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("Code = %q", got)
	}
	if got := errInternal(nil).Code(); got != "INTERNAL_ERROR" {
		t.Fatalf("Code = %q", got)
	}
}

func TestPasswordValidationErrorListsViolations(t *testing.T) {
	err := errPasswordValidation([]string{"too short", "needs a digit"})

	msg := err.Error()
	if !strings.Contains(msg, "too short") || !strings.Contains(msg, "needs a digit") {
		t.Fatalf("Error() = %q, want every violation listed", msg)
	}
}
