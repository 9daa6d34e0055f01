package hmsAuth

import (
	"context"
	"time"
)

// UserRecord is the engine's view of a stored user. The engine never owns
// user persistence; records cross the UserStore port and mutations flow back
// through Save. PasswordHash is opaque to the engine and only ever handed to
// the PasswordHasher.
type UserRecord struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	PhoneNumber       string
	Roles             []string
	Permissions       []string
	Enabled           bool
	EmailVerified     bool
	Locked            bool
	LockedUntil       time.Time
	FailedLogins      int
	LastLoginAt       time.Time
	LastLoginIP       string
	PasswordChangedAt time.Time
	CreatedAt         time.Time
}

// UserStore is the durable user storage port. Implementations decide the
// backing store; the engine only requires these lookups and writes.
//
// FindByIdentifier resolves a login identifier that may be either a username
// or an email address. Any lookup error is treated by the engine as "no such
// user" on credential paths, so implementations do not need a dedicated
// not-found sentinel.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *UserRecord) (*UserRecord, error)
	Save(ctx context.Context, user *UserRecord) error
}

// PasswordHasher hashes and verifies passwords. The default implementation
// is password.Argon2; any scheme satisfying this interface can be plugged in.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// EmailSender delivers verification and password-reset messages. Delivery is
// best-effort: the engine logs failures but never fails the operation that
// triggered the send.
type EmailSender interface {
	SendVerification(ctx context.Context, email, name, token string) error
	SendPasswordReset(ctx context.Context, email, name, token string) error
}

// NoOpEmailSender discards all messages. It is the default when no sender is
// configured.
type NoOpEmailSender struct{}

func (NoOpEmailSender) SendVerification(context.Context, string, string, string) error {
	return nil
}

func (NoOpEmailSender) SendPasswordReset(context.Context, string, string, string) error {
	return nil
}

// UserProfile is the sanitized projection of a UserRecord returned to
// callers. It never carries the password hash or lockout counters.
type UserProfile struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName,omitempty"`
	LastName      string   `json:"lastName,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
	EmailVerified bool     `json:"emailVerified"`
}

// LoginResult is returned by Login and Refresh: a fresh access/refresh token
// pair plus the user projection.
type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	ExpiresIn    int64       `json:"expiresIn"`
	User         UserProfile `json:"user"`
}

// AuthResult is the outcome of a successful Validate: the identity and
// grants carried by the access token, plus the token id and expiry so
// callers can blacklist it later.
type AuthResult struct {
	UserID      string
	Username    string
	Email       string
	Roles       []string
	Permissions []string
	TokenID     string
	ExpiresAt   time.Time
}

// RegisterRequest carries the fields accepted at registration. Password is
// the plaintext candidate; it is validated against the policy and hashed
// before anything is stored.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

func profileOf(u *UserRecord) UserProfile {
	return UserProfile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Roles:         append([]string(nil), u.Roles...),
		Permissions:   append([]string(nil), u.Permissions...),
		EmailVerified: u.EmailVerified,
	}
}

func displayName(u *UserRecord) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
