// Package jwt implements the engine's token codec: HS256-signed access and
// refresh tokens carrying a unique token id and an explicit type claim.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claim values. Every issued token carries exactly one of these
// so an access token can never be replayed as a refresh token or vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Parse failure classes. Expiry is reported separately from every other
// defect so callers can distinguish "come back with a fresh token" from
// "this token was never acceptable".
var (
	// ErrExpired means signature and shape were fine but exp is in the past.
	ErrExpired = errors.New("token expired")
	// ErrMalformed covers undecodable tokens, bad signatures, wrong
	// algorithms, and issuer/audience mismatches.
	ErrMalformed = errors.New("token malformed or signature invalid")
	// ErrWrongType means the token is authentic but its type claim does not
	// match the operation (refresh token on an access path or the reverse).
	ErrWrongType = errors.New("unexpected token type")
	// ErrMissingClaims means a required claim (sub, jti, exp) is absent.
	ErrMissingClaims = errors.New("required claim missing")
)

// Config configures the Manager. Secret is the shared HS256 key.
type Config struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims carries the identity attributes embedded in access tokens.
type Claims struct {
	Username    string
	Email       string
	Roles       []string
	Permissions []string
}

// AccessClaims is the full claim set of an access token.
type AccessClaims struct {
	Username    string   `json:"username,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the full claim set of a refresh token. FamilyID ties the
// token to its rotation family.
type RefreshClaims struct {
	FamilyID  string `json:"familyId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// CreateAccess issues an access token for userID with the given identity
// claims. It returns the signed token, its jti, and its expiry.
func (m *Manager) CreateAccess(userID string, c Claims) (string, string, time.Time, error) {
	now := m.now()
	jti := uuid.NewString()
	expiresAt := now.Add(m.config.AccessTTL)

	claims := AccessClaims{
		Username:    c.Username,
		Email:       c.Email,
		Roles:       c.Roles,
		Permissions: c.Permissions,
		TokenType:   TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return signed, jti, expiresAt, nil
}

// CreateRefresh issues a refresh token for userID bound to the rotation
// family familyID. It returns the signed token and its expiry.
func (m *Manager) CreateRefresh(userID, familyID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.config.RefreshTTL)

	claims := RefreshClaims{
		FamilyID:  familyID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ParseAccess verifies tokenStr as an access token: signature, issuer,
// audience, expiry (no leeway), type claim, and presence of sub/jti.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongType
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMissingClaims
	}

	return claims, nil
}

// ParseRefresh verifies tokenStr as a refresh token under the same rules as
// ParseAccess, additionally requiring the family id claim.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongType
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil || claims.FamilyID == "" {
		return nil, ErrMissingClaims
	}

	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrMalformed
	}
	if !token.Valid {
		return ErrMalformed
	}

	return nil
}
