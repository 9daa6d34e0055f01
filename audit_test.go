package hmsAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/hmsAuth/refresh"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "login", UserID: "user-1", Success: true})

	select {
	case event := <-sink.Events():
		if event.EventType != "login" || event.UserID != "user-1" || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the sink")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login"})
	}
	d.Close()

	received := 0
	for {
		select {
		case <-sink.Events():
			received++
		default:
			if received != 5 {
				t.Fatalf("received %d events after close, want 5", received)
			}
			return
		}
	}
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	// No sink goroutine consumption happens before Close; a buffer of one
	// forces drops.
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(blocked)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled config must produce a nil dispatcher")
	}

	// All methods tolerate the nil receiver.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: "refresh",
		UserID:    "user-1",
		Success:   false,
		Error:     "reuse detected",
	})

	line := strings.TrimSpace(buf.String())
	var event AuditEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, line)
	}
	if event.EventType != "refresh" || event.Error != "reuse detected" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(64)

	env := &testEnv{
		users:  newMemUserStore(),
		store:  refresh.NewMemoryStore(),
		emails: &captureEmailSender{},
	}

	engine, err := New().
		WithSecret([]byte("0123456789abcdef0123456789abcdef")).
		WithUserStore(env.users).
		WithRefreshStore(env.store).
		WithPasswordHasher(plainHasher{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine

	env.seedUser(t, "alice", "alice@example.com")
	ctx := WithClientIP(context.Background(), "1.2.3.4")
	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "login" || !event.Success || event.IP != "1.2.3.4" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("login event never emitted")
	}
}
