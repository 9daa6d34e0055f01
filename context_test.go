package hmsAuth

import (
	"context"
	"testing"
)

func TestClientContextRoundTrip(t *testing.T) {
	ctx := WithClientIP(context.Background(), "1.2.3.4")
	ctx = WithUserAgent(ctx, "test-agent/1.0")

	if got := clientIPFromContext(ctx); got != "1.2.3.4" {
		t.Fatalf("client IP = %q", got)
	}
	if got := userAgentFromContext(ctx); got != "test-agent/1.0" {
		t.Fatalf("user agent = %q", got)
	}
}

func TestClientContextDefaults(t *testing.T) {
	if got := clientIPFromContext(context.Background()); got != "" {
		t.Fatalf("client IP = %q, want empty", got)
	}
	if got := userAgentFromContext(context.Background()); got != "" {
		t.Fatalf("user agent = %q, want empty", got)
	}
}
