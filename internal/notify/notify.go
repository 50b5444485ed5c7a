// Package notify delivers outbound messages (confirmation codes) to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	ConfirmationSubject = "YaMDb registration"
	DefaultStream       = "yamdb:mail:outbox"
	defaultMaxLen       = 10000
)

// Message is a plain-text mail.
type Message struct {
	Subject string
	Body    string
}

// ConfirmationMessage builds the mail carrying a confirmation code.
func ConfirmationMessage(code string) Message {
	return Message{Subject: ConfirmationSubject, Body: "Your confirmation code: " + code}
}

// Notifier sends a message to an address. Delivery is fire-and-forget for the
// caller: an error means the message was not accepted, nothing is retried.
type Notifier interface {
	Send(ctx context.Context, to string, msg Message) error
}

// LogNotifier writes messages to the log. Used in development.
type LogNotifier struct {
	from   string
	logger *slog.Logger
}

func NewLogNotifier(from string, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{from: from, logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, to string, msg Message) error {
	n.logger.InfoContext(ctx, "Outgoing mail",
		slog.String("from", n.from),
		slog.String("to", to),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body))
	return nil
}

// RedisOutbox appends messages to a redis stream drained by an external mailer.
type RedisOutbox struct {
	client *redis.Client
	stream string
	from   string
	maxLen int64
	logger *slog.Logger
}

// NewRedisOutbox creates an outbox over an existing client.
func NewRedisOutbox(client *redis.Client, stream, from string, logger *slog.Logger) (*RedisOutbox, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisOutbox")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisOutbox{client: client, stream: stream, from: from, maxLen: defaultMaxLen, logger: logger}, nil
}

func (o *RedisOutbox) Send(ctx context.Context, to string, msg Message) error {
	id, err := o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: map[string]any{
			"from":    o.from,
			"to":      to,
			"subject": msg.Subject,
			"body":    msg.Body,
		},
	}).Result()
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to enqueue mail", slog.String("stream", o.stream), slog.String("error", err.Error()))
		return fmt.Errorf("enqueue mail: %w", err)
	}
	o.logger.DebugContext(ctx, "Mail enqueued", slog.String("stream", o.stream), slog.String("messageID", id))
	return nil
}
