package hmsAuth

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine, grouped by concern. Zero
// values are filled from defaultConfig by Builder.WithConfig, so callers
// only set what they want to override.
type Config struct {
	JWT          JWTConfig
	Security     SecurityConfig
	Password     PasswordConfig
	Blacklist    BlacklistConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// JWTConfig configures the token codec. Secret is the HS256 signing key and
// must be at least 32 bytes.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SecurityConfig configures brute-force protection. The token bucket admits
// BucketCapacity attempts per source and refills RefillTokens every
// RefillInterval; the failure counter blocks a source for LockDuration once
// MaxFailedAttempts bad-credential failures accumulate inside that window.
type SecurityConfig struct {
	RateLimitEnabled  bool
	BucketCapacity    int
	RefillTokens      int
	RefillInterval    time.Duration
	MaxFailedAttempts int
	LockDuration      time.Duration
	MaxTrackedSources int
}

// PasswordConfig configures both the argon2id hasher and the strength
// policy.
type PasswordConfig struct {
	HashMemoryKB    uint32
	HashTime        uint32
	HashParallelism uint8
	HashSaltLength  uint32
	HashKeyLength   uint32

	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	RejectCommon     bool
}

// BlacklistConfig configures the access-token revocation cache.
type BlacklistConfig struct {
	Capacity      int
	SweepInterval time.Duration
}

// VerificationConfig configures one-shot token lifetimes for email
// verification and password reset.
type VerificationConfig struct {
	EmailTokenTTL time.Duration
	ResetTokenTTL time.Duration
}

// AuditConfig configures the async audit dispatcher. With DropIfFull set,
// events are dropped (and counted) instead of blocking the caller when the
// buffer is full.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-memory counters and, optionally, the
// Validate latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the Builder starts from. The JWT
// secret is intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "hms-auth",
			Audience:   "hms-api",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			RateLimitEnabled:  true,
			BucketCapacity:    10,
			RefillTokens:      10,
			RefillInterval:    time.Minute,
			MaxFailedAttempts: 5,
			LockDuration:      15 * time.Minute,
			MaxTrackedSources: 100_000,
		},
		Password: PasswordConfig{
			HashMemoryKB:     64 * 1024,
			HashTime:         3,
			HashParallelism:  2,
			HashSaltLength:   16,
			HashKeyLength:    32,
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSpecial:   true,
			RejectCommon:     true,
		},
		Blacklist: BlacklistConfig{
			Capacity:      100_000,
			SweepInterval: time.Hour,
		},
		Verification: VerificationConfig{
			EmailTokenTTL: 24 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate rejects configurations the engine cannot operate under. It is
// called by Builder.Build; callers constructing a Config by hand can call it
// directly.
func (c Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	if c.JWT.Issuer == "" {
		return errors.New("jwt issuer must not be empty")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access ttl must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt refresh ttl must exceed access ttl")
	}

	if c.Security.RateLimitEnabled {
		if c.Security.BucketCapacity <= 0 {
			return errors.New("security bucket capacity must be positive")
		}
		if c.Security.RefillTokens <= 0 {
			return errors.New("security refill tokens must be positive")
		}
		if c.Security.RefillInterval <= 0 {
			return errors.New("security refill interval must be positive")
		}
		if c.Security.MaxFailedAttempts <= 0 {
			return errors.New("security max failed attempts must be positive")
		}
		if c.Security.LockDuration <= 0 {
			return errors.New("security lock duration must be positive")
		}
		if c.Security.MaxTrackedSources <= 0 {
			return errors.New("security max tracked sources must be positive")
		}
	}

	if c.Password.MinLength < 8 {
		return errors.New("password min length must be at least 8")
	}

	if c.Blacklist.Capacity <= 0 {
		return errors.New("blacklist capacity must be positive")
	}
	if c.Blacklist.SweepInterval <= 0 {
		return errors.New("blacklist sweep interval must be positive")
	}

	if c.Verification.EmailTokenTTL <= 0 {
		return errors.New("verification email token ttl must be positive")
	}
	if c.Verification.ResetTokenTTL <= 0 {
		return errors.New("verification reset token ttl must be positive")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}

	return nil
}
