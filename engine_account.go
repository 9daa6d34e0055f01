package hmsAuth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/MrEthical07/hmsAuth/internal"
	"github.com/MrEthical07/hmsAuth/verification"
)

// Register creates a user account. The password must satisfy the policy and
// both email and username must be free. The account starts enabled but
// unverified; a verification challenge is stored and handed to the email
// sender, and login stays refused until VerifyEmail succeeds.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotInitialized
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" {
		return nil, &AuthError{Kind: KindInvalidCredentials, Message: "username and email are required"}
	}

	if violations := e.policy.Validate(req.Password); len(violations) > 0 {
		return nil, errPasswordValidation(violations)
	}

	if exists, err := e.users.ExistsByEmail(ctx, req.Email); err != nil {
		return nil, errInternal(err)
	} else if exists {
		e.metrics.Inc(MetricRegisterDuplicate)
		return nil, errUserExists("email")
	}

	if exists, err := e.users.ExistsByUsername(ctx, req.Username); err != nil {
		return nil, errInternal(err)
	} else if exists {
		e.metrics.Inc(MetricRegisterDuplicate)
		return nil, errUserExists("username")
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, errInternal(err)
	}

	user, err := e.users.Create(ctx, &UserRecord{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		Roles:        []string{"USER"},
		Enabled:      true,
		CreatedAt:    e.now(),
	})
	if err != nil {
		return nil, errInternal(err)
	}

	if err := e.issueVerification(ctx, user); err != nil {
		// The account exists; the user can request a fresh challenge.
		log.Printf("hmsAuth: failed to issue verification token for user %s: %v", user.ID, err)
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emit(ctx, "register", user.ID, true, "")

	profile := profileOf(user)
	return &profile, nil
}

// VerifyEmail consumes a verification challenge and marks the account's
// email verified. Unknown, expired, and already used tokens all fail with
// KindTokenInvalid.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	challenge, err := e.verifications.Consume(ctx, token, verification.PurposeEmailVerification)
	if err != nil {
		if isChallengeRejection(err) {
			e.emit(ctx, "verify_email", "", false, "invalid token")
			return &AuthError{Kind: KindTokenInvalid, Message: "invalid or expired verification token"}
		}
		return errInternal(err)
	}

	user, err := e.users.FindByID(ctx, challenge.UserID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}
	if user.EmailVerified {
		return nil
	}

	user.EmailVerified = true
	if err := e.users.Save(ctx, user); err != nil {
		return errInternal(err)
	}

	e.metrics.Inc(MetricEmailVerified)
	e.emit(ctx, "verify_email", user.ID, true, "")

	return nil
}

// ResendVerification invalidates any pending verification challenge for
// the account and issues a fresh one. An already verified account is a
// silent success.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	user, err := e.users.FindByIdentifier(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user == nil {
		return ErrUserNotFound
	}
	if user.EmailVerified {
		return nil
	}

	if err := e.verifications.InvalidateAllByUser(ctx, user.ID, verification.PurposeEmailVerification); err != nil {
		return errInternal(err)
	}
	if err := e.issueVerification(ctx, user); err != nil {
		return errInternal(err)
	}

	e.emit(ctx, "resend_verification", user.ID, true, "")

	return nil
}

// CurrentUser resolves an access token to the live user record behind it.
// Unlike Validate, this reads the store, so revocations of the account
// itself (disable, delete) take effect immediately.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotInitialized
	}

	result, err := e.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := e.users.FindByID(ctx, result.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	profile := profileOf(user)
	return &profile, nil
}

// issueVerification stores a fresh email-verification challenge and hands
// it to the email sender. Send failures are logged, never fatal.
func (e *Engine) issueVerification(ctx context.Context, user *UserRecord) error {
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return err
	}

	err = e.verifications.Save(ctx, &verification.Token{
		Token:     token,
		UserID:    user.ID,
		Purpose:   verification.PurposeEmailVerification,
		ExpiresAt: e.now().Add(e.config.Verification.EmailTokenTTL),
		CreatedAt: e.now(),
	})
	if err != nil {
		return err
	}

	if err := e.emailSender.SendVerification(ctx, user.Email, displayName(user), token); err != nil {
		log.Printf("hmsAuth: failed to send verification email to user %s: %v", user.ID, err)
	}

	return nil
}

func isChallengeRejection(err error) bool {
	return errors.Is(err, verification.ErrNotFound) ||
		errors.Is(err, verification.ErrExpired) ||
		errors.Is(err, verification.ErrUsed)
}
