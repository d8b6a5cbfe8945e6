// Package notify hands rendered documents off to outbound channels. Delivery
// is fire-and-forget: a failed or slow channel never blocks a status
// transition.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Message is the payload handed to an outbound channel.
type Message struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Document   string   `json:"document"`
}

// Sender delivers a message to an outbound channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TaskTypeSendDocument is the asynq task type for outbound document mail.
const TaskTypeSendDocument = "document:send"

// AsynqSender enqueues messages for the worker to deliver.
type AsynqSender struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAsynqSender constructs a sender over an asynq client.
func NewAsynqSender(client *asynq.Client, logger *slog.Logger) *AsynqSender {
	return &AsynqSender{client: client, logger: logger}
}

// Send enqueues the message. Errors are returned so callers can decide to
// log them, but document services treat delivery as best-effort.
func (s *AsynqSender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sender not initialised")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	task := asynq.NewTask(TaskTypeSendDocument, payload)
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("document notification enqueued", slog.String("document", msg.Document))
	}
	return nil
}
