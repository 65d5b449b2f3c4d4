// Package queue carries group announcements from producers (artwork
// creation, closed deals) to the Telegram sender.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teleagent/teleagent/internal/config"
)

// ErrClosed is returned when publishing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Announcement is a message for a group chat. When ImagePath is set the
// message is sent as a photo with Caption.
type Announcement struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
	Caption   string `json:"caption,omitempty"`
	// Attempt counts deliveries that already failed.
	Attempt int `json:"attempt,omitempty"`
}

// Handler processes one announcement.
type Handler func(ctx context.Context, a Announcement) error

// Queue is a FIFO of announcements.
type Queue interface {
	Publish(ctx context.Context, a Announcement) error
	// Consume blocks, passing announcements to handler until ctx is done.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// maxAttempts bounds redelivery of announcements whose handler failed.
const maxAttempts = 2

// retry raises the attempt counter of a failed announcement. ok is false
// when it already used its retry and must be dropped.
func retry(ctx context.Context, log *slog.Logger, a Announcement, err error) (next Announcement, ok bool) {
	a.Attempt++
	if a.Attempt >= maxAttempts {
		log.ErrorContext(ctx, "Dropping announcement after failed retry", "chat_id", a.ChatID, "error", err)
		return a, false
	}
	log.WarnContext(ctx, "Announcement handler failed, re-queueing", "chat_id", a.ChatID, "attempt", a.Attempt, "error", err)
	return a, true
}

// New builds the queue selected by cfg.Driver.
func New(ctx context.Context, cfg config.QueueConfig, log *slog.Logger) (Queue, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryQueue(cfg.Buffer, log), nil
	case "redis":
		return NewRedisQueue(ctx, cfg, log)
	case "rabbitmq":
		return NewRabbitMQQueue(cfg, log)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
