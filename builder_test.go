package hmsAuth

import (
	"strings"
	"testing"

	"github.com/MrEthical07/hmsAuth/refresh"
)

func TestBuildRequiresStores(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	_, err := New().
		WithSecret(secret).
		WithRefreshStore(refresh.NewMemoryStore()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "user store") {
		t.Fatalf("missing user store = %v", err)
	}

	_, err = New().
		WithSecret(secret).
		WithUserStore(newMemUserStore()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "refresh token store") {
		t.Fatalf("missing refresh store = %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := New().
		WithSecret([]byte("short")).
		WithUserStore(newMemUserStore()).
		WithRefreshStore(refresh.NewMemoryStore()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "secret") {
		t.Fatalf("short secret = %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().
		WithSecret([]byte("0123456789abcdef0123456789abcdef")).
		WithUserStore(newMemUserStore()).
		WithRefreshStore(refresh.NewMemoryStore()).
		WithPasswordHasher(plainHasher{})

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config must fail without a secret")
	}

	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestWithRateLimitingDisabled(t *testing.T) {
	engine, err := New().
		WithSecret([]byte("0123456789abcdef0123456789abcdef")).
		WithUserStore(newMemUserStore()).
		WithRefreshStore(refresh.NewMemoryStore()).
		WithPasswordHasher(plainHasher{}).
		WithRateLimiting(false).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if engine.guard != nil {
		t.Fatal("guard wired despite rate limiting disabled")
	}
}
