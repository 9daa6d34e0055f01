package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	token, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken failed: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) != opaqueTokenSize {
		t.Fatalf("decoded length = %d, want %d", len(raw), opaqueTokenSize)
	}

	other, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken failed: %v", err)
	}
	if token == other {
		t.Fatal("two tokens must not collide")
	}
}
