package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisOutboxAppendsToStream(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	outbox, err := NewRedisOutbox(client, "test:outbox", "noreply@yamdb.local", discardLogger())
	if err != nil {
		t.Fatalf("new outbox: %v", err)
	}
	ctx := context.Background()
	if err := outbox.Send(ctx, "alice@example.com", ConfirmationMessage("abc123")); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := client.XRange(ctx, "test:outbox", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	v := msgs[0].Values
	if v["to"] != "alice@example.com" || v["subject"] != ConfirmationSubject || v["body"] != "Your confirmation code: abc123" {
		t.Fatalf("unexpected payload: %+v", v)
	}
	if v["from"] != "noreply@yamdb.local" {
		t.Fatalf("unexpected sender: %v", v["from"])
	}
}

func TestRedisOutboxReportsFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	outbox, _ := NewRedisOutbox(client, "", "noreply@yamdb.local", discardLogger())
	srv.Close()

	if err := outbox.Send(context.Background(), "bob@example.com", ConfirmationMessage("x")); err == nil {
		t.Fatalf("expected send to fail when redis is down")
	}
}

func TestNewRedisOutboxRequiresClient(t *testing.T) {
	if _, err := NewRedisOutbox(nil, "s", "f", discardLogger()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier("noreply@yamdb.local", discardLogger())
	if err := n.Send(context.Background(), "c@example.com", ConfirmationMessage("x")); err != nil {
		t.Fatalf("log notifier failed: %v", err)
	}
}
