package hmsAuth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/hmsAuth/blacklist"
	"github.com/MrEthical07/hmsAuth/guard"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/refresh"
	"github.com/MrEthical07/hmsAuth/verification"
)

// Engine orchestrates every authentication operation. Construct it through
// [Builder]; all methods are safe for concurrent use once Build returns.
type Engine struct {
	config Config

	users         UserStore
	refreshTokens refresh.Store
	verifications verification.Store
	hasher        PasswordHasher
	emailSender   EmailSender

	codec     *jwt.Manager
	policy    *password.Policy
	blacklist *blacklist.Cache
	guard     *guard.Guard

	audit   *auditDispatcher
	metrics *Metrics

	now   func() time.Time
	ready bool
}

// Login verifies identifier/password and, on success, issues an access
// token plus the first refresh token of a new rotation family.
//
// The brute-force gate runs before any credential work, keyed by the client
// IP from [WithClientIP]. Unknown identifiers and wrong passwords both
// yield KindInvalidCredentials; lock, disabled, and unverified states are
// reported only to callers who would otherwise have authenticated.
func (e *Engine) Login(ctx context.Context, identifier, pwd string) (*LoginResult, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotInitialized
	}

	source := clientIPFromContext(ctx)
	if err := e.gate(ctx, source); err != nil {
		return nil, err
	}

	user, err := e.users.FindByIdentifier(ctx, identifier)
	if err != nil || user == nil {
		e.loginFailure(ctx, source, nil)
		return nil, ErrInvalidCredentials
	}

	if user.Locked {
		if user.LockedUntil.IsZero() || e.now().Before(user.LockedUntil) {
			e.emit(ctx, "login", user.ID, false, "account locked")
			return nil, errAccountLocked(user.LockedUntil)
		}
		// Lock lapsed; clear it and continue.
		user.Locked = false
		user.FailedLogins = 0
	}

	if !user.Enabled {
		e.emit(ctx, "login", user.ID, false, "account disabled")
		return nil, ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(pwd, user.PasswordHash)
	if err != nil || !ok {
		e.loginFailure(ctx, source, user)
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		e.emit(ctx, "login", user.ID, false, "email not verified")
		return nil, ErrEmailNotVerified
	}

	if e.guard != nil && source != "" {
		e.guard.RecordSuccess(source)
	}

	e.rehashIfWeaker(user, pwd)
	user.FailedLogins = 0
	user.Locked = false
	user.LockedUntil = time.Time{}
	user.LastLoginAt = e.now()
	user.LastLoginIP = source
	if err := e.users.Save(ctx, user); err != nil {
		return nil, errInternal(err)
	}

	result, err := e.issueTokens(ctx, user, uuid.NewString())
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emit(ctx, "login", user.ID, true, "")

	return result, nil
}

// Refresh rotates a refresh token: the presented token is revoked with a
// pointer to its replacement and a new access/refresh pair is issued within
// the same family.
//
// Presenting a token that is already revoked, for any reason, is treated as
// evidence of theft: the entire family is revoked and the call fails with
// KindTokenRevoked. A plainly expired token fails with KindTokenExpired and
// triggers no cascade. When two calls race on the same token, the store
// guarantees a single winner; the loser takes the reuse path.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotInitialized
	}

	current, err := e.refreshTokens.FindByToken(ctx, refreshToken)
	if errors.Is(err, refresh.ErrNotFound) {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, errInternal(err)
	}

	if current.Revoked {
		return nil, e.reuseDetected(ctx, current)
	}
	if current.ExpiredAt(e.now()) {
		e.metrics.Inc(MetricRefreshFailure)
		e.emit(ctx, "refresh", current.UserID, false, "token expired")
		return nil, ErrTokenExpired
	}

	user, err := e.users.FindByID(ctx, current.UserID)
	if err != nil || user == nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrUserNotFound
	}
	if !user.Enabled {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrAccountDisabled
	}

	newToken, newExpiry, err := e.codec.CreateRefresh(user.ID, current.FamilyID)
	if err != nil {
		return nil, errInternal(err)
	}

	replacement := &refresh.Token{
		Token:     newToken,
		FamilyID:  current.FamilyID,
		UserID:    user.ID,
		ExpiresAt: newExpiry,
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		CreatedAt: e.now(),
	}

	err = e.refreshTokens.Rotate(ctx, current.Token, replacement)
	if errors.Is(err, refresh.ErrAlreadyRevoked) {
		// Lost the rotation race; by the time we acted the token had been
		// used. Same treatment as any other revoked presentation.
		return nil, e.reuseDetected(ctx, current)
	}
	if errors.Is(err, refresh.ErrNotFound) {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, errInternal(err)
	}

	access, _, accessExpiry, err := e.codec.CreateAccess(user.ID, identityClaims(user))
	if err != nil {
		return nil, errInternal(err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(ctx, "refresh", user.ID, true, "")

	return e.loginResult(user, access, newToken, accessExpiry), nil
}

// Validate checks an access token for use on a protected request:
// signature, issuer/audience, expiry, type claim, required claims, and the
// revocation blacklist, in that order. It returns the identity and grants
// the token carries.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotInitialized
	}

	start := time.Now()

	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		e.metrics.Inc(MetricValidateRejected)
		return nil, mapCodecError(err)
	}

	if e.blacklist.IsBlacklisted(claims.ID) {
		e.metrics.Inc(MetricValidateRejected)
		return nil, ErrTokenRevoked
	}

	e.metrics.Inc(MetricValidateSuccess)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	return &AuthResult{
		UserID:      claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Logout ends one session. The access token is blacklisted best-effort (a
// malformed one is ignored, the client is leaving anyway) and the refresh
// token, when provided and known, is revoked with the logout reason. Other
// sessions and the rest of the family stay alive.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	userID := e.blacklistAccess(accessToken)

	if refreshToken != "" {
		err := e.refreshTokens.RevokeByToken(ctx, refreshToken, refresh.ReasonLogout)
		if err != nil && !errors.Is(err, refresh.ErrNotFound) {
			return errInternal(err)
		}
	}

	e.metrics.Inc(MetricLogout)
	e.emit(ctx, "logout", userID, true, "")

	return nil
}

// LogoutAll ends every session of the calling user: the presented access
// token is blacklisted and all of the user's refresh tokens, across all
// families, are revoked. Unlike Logout, a bad access token is a hard
// failure here, since it is the proof of identity for a destructive action.
func (e *Engine) LogoutAll(ctx context.Context, accessToken string) error {
	if e == nil || !e.ready {
		return ErrEngineNotInitialized
	}

	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		return mapCodecError(err)
	}

	e.blacklist.Blacklist(claims.ID, claims.ExpiresAt.Time)
	e.metrics.Inc(MetricTokenBlacklisted)

	if _, err := e.refreshTokens.RevokeAllByUser(ctx, claims.Subject, refresh.ReasonLogoutAll); err != nil {
		return errInternal(err)
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emit(ctx, "logout_all", claims.Subject, true, "")

	return nil
}

// ActiveSessions reports how many unrevoked, unexpired refresh tokens the
// user currently holds.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) (int, error) {
	if e == nil || !e.ready {
		return 0, ErrEngineNotInitialized
	}

	n, err := e.refreshTokens.CountActiveByUser(ctx, userID)
	if err != nil {
		return 0, errInternal(err)
	}

	return n, nil
}

// RevokeUserSessions is the administrative kill switch: every refresh token
// of the user is revoked with the administrator reason. Outstanding access
// tokens are not affected; use their natural expiry or LogoutAll from the
// user's side.
func (e *Engine) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	if e == nil || !e.ready {
		return 0, ErrEngineNotInitialized
	}

	n, err := e.refreshTokens.RevokeAllByUser(ctx, userID, refresh.ReasonAdmin)
	if err != nil {
		return 0, errInternal(err)
	}

	e.emit(ctx, "admin_revoke_sessions", userID, true, "")

	return n, nil
}

// PurgeExpiredTokens deletes refresh-token records whose expiry precedes
// cutoff. Revoked records inside their validity window are kept; they are
// what reuse detection runs on.
func (e *Engine) PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int, error) {
	if e == nil || !e.ready {
		return 0, ErrEngineNotInitialized
	}

	n, err := e.refreshTokens.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, errInternal(err)
	}

	return n, nil
}

// PasswordRequirements describes the active password policy for display.
func (e *Engine) PasswordRequirements() []string {
	if e == nil || !e.ready {
		return nil
	}
	return e.policy.Requirements()
}

// MetricsSnapshot exposes the current metric values; exporters poll this.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close stops the engine's background goroutines: the blacklist sweeper and
// the audit dispatcher. Engine methods must not be called after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.blacklist != nil {
		e.blacklist.Stop()
	}
	e.audit.Close()
}

// gate runs the brute-force check for source. An empty source (no client IP
// attached) is not limited; there is nothing to key on.
func (e *Engine) gate(ctx context.Context, source string) error {
	if e.guard == nil || source == "" {
		return nil
	}

	err := e.guard.Check(source)
	if err == nil {
		return nil
	}

	e.metrics.Inc(MetricLoginRateLimited)
	e.emit(ctx, "login", "", false, "rate limited")

	var le *guard.LimitError
	if errors.As(err, &le) {
		if errors.Is(err, guard.ErrSourceBlocked) {
			return errSourceBlocked(le.UnlockAt, le.RetryAfter)
		}
		return errRateLimited(le.RetryAfter)
	}

	return errRateLimited(0)
}

// loginFailure records a failed credential attempt against both the source
// guard and, when the user is known, the account's own lockout counter.
func (e *Engine) loginFailure(ctx context.Context, source string, user *UserRecord) {
	if e.guard != nil && source != "" {
		e.guard.RecordFailure(source)
	}

	userID := ""
	if user != nil {
		userID = user.ID
		user.FailedLogins++
		if user.FailedLogins >= e.config.Security.MaxFailedAttempts {
			user.Locked = true
			user.LockedUntil = e.now().Add(e.config.Security.LockDuration)
		}
		if err := e.users.Save(ctx, user); err != nil {
			log.Printf("hmsAuth: failed to persist login failure for user %s: %v", user.ID, err)
		}
	}

	e.metrics.Inc(MetricLoginFailure)
	e.emit(ctx, "login", userID, false, "invalid credentials")
}

// reuseDetected handles any presentation of a revoked refresh token: the
// whole family is revoked and the caller gets KindTokenRevoked.
func (e *Engine) reuseDetected(ctx context.Context, presented *refresh.Token) error {
	if _, err := e.refreshTokens.RevokeAllByFamily(ctx, presented.FamilyID, refresh.ReasonReuseDetected); err != nil {
		log.Printf("hmsAuth: failed to revoke token family %s after reuse: %v", presented.FamilyID, err)
	}

	e.metrics.Inc(MetricRefreshReuseDetected)
	e.metrics.Inc(MetricRefreshFailure)
	e.emit(ctx, "refresh", presented.UserID, false, "reuse detected")

	return &AuthError{
		Kind:    KindTokenRevoked,
		Message: "refresh token reuse detected, all sessions in the family have been revoked",
	}
}

// blacklistAccess parses accessToken leniently and blacklists its id.
// Returns the token's subject when parseable, for audit.
func (e *Engine) blacklistAccess(accessToken string) string {
	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		return ""
	}

	e.blacklist.Blacklist(claims.ID, claims.ExpiresAt.Time)
	e.metrics.Inc(MetricTokenBlacklisted)

	return claims.Subject
}

// issueTokens mints an access token and the refresh token that starts or
// continues familyID, persisting the refresh record.
func (e *Engine) issueTokens(ctx context.Context, user *UserRecord, familyID string) (*LoginResult, error) {
	access, _, accessExpiry, err := e.codec.CreateAccess(user.ID, identityClaims(user))
	if err != nil {
		return nil, errInternal(err)
	}

	refreshStr, refreshExpiry, err := e.codec.CreateRefresh(user.ID, familyID)
	if err != nil {
		return nil, errInternal(err)
	}

	record := &refresh.Token{
		Token:     refreshStr,
		FamilyID:  familyID,
		UserID:    user.ID,
		ExpiresAt: refreshExpiry,
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		CreatedAt: e.now(),
	}
	if err := e.refreshTokens.Save(ctx, record); err != nil {
		return nil, errInternal(err)
	}

	return e.loginResult(user, access, refreshStr, accessExpiry), nil
}

func (e *Engine) loginResult(user *UserRecord, access, refreshToken string, accessExpiry time.Time) *LoginResult {
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    accessExpiry,
		ExpiresIn:    int64(accessExpiry.Sub(e.now()) / time.Second),
		User:         profileOf(user),
	}
}

// rehashIfWeaker upgrades the stored hash after a successful verification
// when the hasher's parameters have been strengthened since it was written.
func (e *Engine) rehashIfWeaker(user *UserRecord, pwd string) {
	upgrader, ok := e.hasher.(interface{ NeedsUpgrade(string) (bool, error) })
	if !ok {
		return
	}

	needs, err := upgrader.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := e.hasher.Hash(pwd)
	if err != nil {
		log.Printf("hmsAuth: failed to rehash password for user %s: %v", user.ID, err)
		return
	}
	user.PasswordHash = rehashed
}

func (e *Engine) emit(ctx context.Context, eventType, userID string, success bool, errMsg string) {
	if e.audit == nil {
		return
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errMsg,
	})
}

func identityClaims(user *UserRecord) jwt.Claims {
	return jwt.Claims{
		Username:    user.Username,
		Email:       user.Email,
		Roles:       user.Roles,
		Permissions: user.Permissions,
	}
}

func mapCodecError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
