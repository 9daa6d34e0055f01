package hmsAuth

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/hmsAuth/internal"
	"github.com/MrEthical07/hmsAuth/refresh"
	"github.com/MrEthical07/hmsAuth/verification"
)

// ChangePassword replaces the caller's password after verifying the
// current one. All of the user's refresh tokens are revoked with the
// password-change reason; every device must log in again with the new
// password.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	result, err := e.Validate(ctx, accessToken)
	if err != nil {
		return err
	}

	if violations := e.policy.Validate(newPassword); len(violations) > 0 {
		return errPasswordValidation(violations)
	}
	if newPassword == currentPassword {
		return errPasswordValidation([]string{"must be different from the current password"})
	}

	user, err := e.users.FindByID(ctx, result.UserID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		e.emit(ctx, "change_password", user.ID, false, "invalid current password")
		return ErrInvalidCredentials
	}

	if err := e.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emit(ctx, "change_password", user.ID, true, "")

	return nil
}

// RequestPasswordReset issues a reset challenge for the account behind
// email. It always succeeds from the caller's perspective, whether or not
// the account exists, so the endpoint cannot be used to enumerate users.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	e.metrics.Inc(MetricPasswordResetRequest)

	user, err := e.users.FindByIdentifier(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user == nil {
		e.emit(ctx, "password_reset_request", "", false, "unknown account")
		return nil
	}

	if err := e.verifications.InvalidateAllByUser(ctx, user.ID, verification.PurposePasswordReset); err != nil {
		return errInternal(err)
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return errInternal(err)
	}

	err = e.verifications.Save(ctx, &verification.Token{
		Token:     token,
		UserID:    user.ID,
		Purpose:   verification.PurposePasswordReset,
		ExpiresAt: e.now().Add(e.config.Verification.ResetTokenTTL),
		CreatedAt: e.now(),
	})
	if err != nil {
		return errInternal(err)
	}

	if err := e.emailSender.SendPasswordReset(ctx, user.Email, displayName(user), token); err != nil {
		log.Printf("hmsAuth: failed to send password reset email to user %s: %v", user.ID, err)
	}

	e.emit(ctx, "password_reset_request", user.ID, true, "")

	return nil
}

// ConfirmPasswordReset consumes a reset challenge and installs the new
// password. The same session cascade as ChangePassword applies: every
// refresh token is revoked, since a reset usually means the old credential
// was compromised.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	if violations := e.policy.Validate(newPassword); len(violations) > 0 {
		return errPasswordValidation(violations)
	}

	challenge, err := e.verifications.Consume(ctx, token, verification.PurposePasswordReset)
	if err != nil {
		if isChallengeRejection(err) {
			e.emit(ctx, "password_reset_confirm", "", false, "invalid token")
			return &AuthError{Kind: KindTokenInvalid, Message: "invalid or expired reset token"}
		}
		return errInternal(err)
	}

	user, err := e.users.FindByID(ctx, challenge.UserID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if err := e.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordResetConfirm)
	e.emit(ctx, "password_reset_confirm", user.ID, true, "")

	return nil
}

// setPassword hashes and persists the new password, clears any lockout
// state, and revokes every refresh token of the user.
func (e *Engine) setPassword(ctx context.Context, user *UserRecord, newPassword string) error {
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return errInternal(err)
	}

	user.PasswordHash = hash
	user.PasswordChangedAt = e.now()
	user.FailedLogins = 0
	user.Locked = false
	user.LockedUntil = time.Time{}
	if err := e.users.Save(ctx, user); err != nil {
		return errInternal(err)
	}

	if _, err := e.refreshTokens.RevokeAllByUser(ctx, user.ID, refresh.ReasonPasswordChange); err != nil {
		return errInternal(err)
	}

	return nil
}
