// Package bot wires the Telegram listener, the scheduler, the announcement
// queue consumer and the HTTP API into one lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/teleagent/teleagent/internal/bot/handlers"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/queue"
)

// APIServer is the HTTP surface run next to the bot.
type APIServer interface {
	Run(ctx context.Context) error
}

// Bot owns the long-running components of the agent.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	queue     queue.Queue
	api       APIServer
}

// NewBot creates the orchestrator. api may be nil when the HTTP API is
// disabled.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	q queue.Queue,
	api APIServer,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		tgBot:     tgBot,
		scheduler: scheduler,
		queue:     q,
		api:       api,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.queue != nil {
		g.Go(func() error {
			b.logger.Info("Starting announcement consumer...")
			err := b.queue.Consume(gCtx, b.deliver)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				b.logger.Info("Announcement consumer stopped.")
				return nil
			}
			return fmt.Errorf("announcement consumer failed: %w", err)
		})
	}

	if b.api != nil && b.cfg.HTTP.Addr != "" {
		g.Go(func() error {
			return b.api.Run(gCtx)
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if b.queue != nil {
		if cerr := b.queue.Close(); cerr != nil {
			b.logger.Warn("Failed to close announcement queue", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// deliver sends one announcement, defaulting to the configured group chat.
func (b *Bot) deliver(ctx context.Context, a queue.Announcement) error {
	if a.ChatID == 0 {
		a.ChatID = b.cfg.Telegram.GroupChatID
	}
	if a.ChatID == 0 {
		b.logger.WarnContext(ctx, "Dropping announcement without a target chat", "text_length", len(a.Text))
		return nil
	}
	if err := handlers.SendAnnouncement(ctx, b.tgBot, a); err != nil {
		b.logger.ErrorContext(ctx, "Failed to deliver announcement", "chat_id", a.ChatID, "attempt", a.Attempt, "error", err)
		return err
	}
	b.logger.InfoContext(ctx, "Announcement delivered", "chat_id", a.ChatID, "with_image", a.ImagePath != "")
	return nil
}
