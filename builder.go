package hmsAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/hmsAuth/blacklist"
	"github.com/MrEthical07/hmsAuth/guard"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/refresh"
	"github.com/MrEthical07/hmsAuth/verification"
)

// Builder assembles an Engine. A UserStore and a refresh.Store are
// mandatory; everything else has a working default (argon2id hasher,
// in-memory verification store, no-op email sender).
type Builder struct {
	config Config

	userStore         UserStore
	refreshStore      refresh.Store
	verificationStore verification.Store
	hasher            PasswordHasher
	emailSender       EmailSender
	auditSink         AuditSink

	built bool
}

// New returns a Builder preloaded with defaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration wholesale. Call it before the
// targeted setters, which mutate the current configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSecret sets the HS256 signing key.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.JWT.Secret = append([]byte(nil), secret...)
	return b
}

// WithUserStore sets the mandatory user storage port.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithRefreshStore sets the mandatory refresh-token store. Use
// refresh.NewMemoryStore for single-process deployments or
// refresh.NewRedisStore to share rotation state across instances.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithVerificationStore overrides the one-shot challenge store. Defaults to
// verification.NewMemoryStore.
func (b *Builder) WithVerificationStore(store verification.Store) *Builder {
	b.verificationStore = store
	return b
}

// WithPasswordHasher overrides the default argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithEmailSender sets the delivery port for verification and reset mail.
// Defaults to NoOpEmailSender.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.emailSender = sender
	return b
}

// WithAuditSink enables audit dispatch into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithRateLimiting toggles the brute-force guard.
func (b *Builder) WithRateLimiting(enabled bool) *Builder {
	b.config.Security.RateLimitEnabled = enabled
	return b
}

// Build validates the configuration, wires every component, starts the
// background goroutines, and returns the ready Engine. A Builder can build
// only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.refreshStore == nil {
		return nil, errors.New("refresh token store required")
	}

	cfg := b.config

	codec, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = password.NewArgon2(password.Config{
			Memory:      cfg.Password.HashMemoryKB,
			Time:        cfg.Password.HashTime,
			Parallelism: cfg.Password.HashParallelism,
			SaltLength:  cfg.Password.HashSaltLength,
			KeyLength:   cfg.Password.HashKeyLength,
		})
		if err != nil {
			return nil, err
		}
	}

	verifications := b.verificationStore
	if verifications == nil {
		verifications = verification.NewMemoryStore()
	}

	emailSender := b.emailSender
	if emailSender == nil {
		emailSender = NoOpEmailSender{}
	}

	engine := &Engine{
		config:        cfg,
		users:         b.userStore,
		refreshTokens: b.refreshStore,
		verifications: verifications,
		hasher:        hasher,
		emailSender:   emailSender,
		codec:         codec,
		policy: password.NewPolicy(password.PolicyConfig{
			MinLength:        cfg.Password.MinLength,
			RequireUppercase: cfg.Password.RequireUppercase,
			RequireLowercase: cfg.Password.RequireLowercase,
			RequireDigit:     cfg.Password.RequireDigit,
			RequireSpecial:   cfg.Password.RequireSpecial,
			RejectCommon:     cfg.Password.RejectCommon,
		}),
		blacklist: blacklist.New(blacklist.Config{
			Capacity:      cfg.Blacklist.Capacity,
			SweepInterval: cfg.Blacklist.SweepInterval,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     time.Now,
	}

	if cfg.Security.RateLimitEnabled {
		engine.guard = guard.New(guard.Config{
			BucketCapacity:    cfg.Security.BucketCapacity,
			RefillTokens:      cfg.Security.RefillTokens,
			RefillInterval:    cfg.Security.RefillInterval,
			MaxFailures:       cfg.Security.MaxFailedAttempts,
			LockDuration:      cfg.Security.LockDuration,
			MaxTrackedSources: cfg.Security.MaxTrackedSources,
		})
	}

	engine.blacklist.Start()
	engine.ready = true
	b.built = true

	return engine, nil
}
