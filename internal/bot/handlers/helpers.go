package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/queue"
	"github.com/teleagent/teleagent/internal/text"
)

const (
	aiProcessingTimeout = 3 * time.Minute
	artworkTimeout      = 10 * time.Minute
	sendMessageTimeout  = 10 * time.Second
	dbSaveTimeout       = 5 * time.Second
	photoUploadTimeout  = time.Minute
)

// sendText sends a plain message and logs failures.
func sendText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, msg string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: msg}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// sendParts sends reply split into sentences, pausing delay between parts.
// The first part answers replyTo when it is set.
func sendParts(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, replyTo int, reply string, delay time.Duration) {
	parts := text.SplitReply(reply)
	for i, part := range parts {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				log.WarnContext(ctx, "Context cancelled while sending reply parts", "sent", i, "total", len(parts))
				return
			case <-time.After(delay):
			}
		}
		params := &bot.SendMessageParams{ChatID: chatID, Text: part}
		if i == 0 && replyTo > 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
		}
		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := b.SendMessage(sendCtx, params)
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "Failed to send reply part", "error", err, "chat_id", chatID, "part", i)
			return
		}
	}
	log.DebugContext(ctx, "Sent reply", "chat_id", chatID, "parts", len(parts))
}

// saveDialogWithRetry stores a dialog, retrying a few times on failure.
func saveDialogWithRetry(ctx context.Context, deps HandlerDeps, log *slog.Logger, d *database.Dialog) {
	const maxRetries = 3
	var err error

	for i := range maxRetries {
		if ctx.Err() != nil {
			log.WarnContext(ctx, "Context cancelled, aborting dialog save", "error", ctx.Err(), "chat_id", d.ChatID, "attempt", i+1)
			return
		}

		dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
		err = deps.Store.SaveDialog(dbCtx, d)
		cancel()
		if err == nil {
			return
		}

		log.ErrorContext(ctx, "Failed to save dialog, retrying", "error", err, "chat_id", d.ChatID, "attempt", i+1)
		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}

	log.ErrorContext(ctx, fmt.Sprintf("Failed to save dialog after %d retries", maxRetries), "error", err, "chat_id", d.ChatID)
}

// messageText joins the text and caption of a message.
func messageText(msg *models.Message) string {
	return strings.TrimSpace(strings.TrimSpace(msg.Text) + " " + strings.TrimSpace(msg.Caption))
}

// displayName is how a Telegram user is called in prompts and dialogs.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// isMentioned reports whether msg addresses the bot by @username, by name
// or by replying to one of its messages.
func isMentioned(msg *models.Message, botID int64, username string) bool {
	if msg == nil {
		return false
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && botID != 0 && msg.ReplyToMessage.From.ID == botID {
		return true
	}
	if username == "" {
		return false
	}

	username = strings.ToLower(username)
	for _, w := range strings.Fields(strings.ToLower(messageText(msg))) {
		if strings.TrimPrefix(strings.TrimFunc(w, unicode.IsPunct), "@") == username {
			return true
		}
	}
	return false
}

// SendAnnouncement delivers an announcement: the image with its caption
// first when there is one, then the text.
func SendAnnouncement(ctx context.Context, b *bot.Bot, a queue.Announcement) error {
	if a.ImagePath != "" {
		f, err := os.Open(a.ImagePath)
		if err != nil {
			return fmt.Errorf("failed to open announcement image: %w", err)
		}
		defer f.Close()

		upCtx, cancel := context.WithTimeout(ctx, photoUploadTimeout)
		defer cancel()
		_, err = b.SendPhoto(upCtx, &bot.SendPhotoParams{
			ChatID:  a.ChatID,
			Photo:   &models.InputFileUpload{Filename: filepath.Base(a.ImagePath), Data: f},
			Caption: text.Truncate(a.Caption, 1024),
		})
		if err != nil {
			return fmt.Errorf("failed to send announcement photo: %w", err)
		}
	}
	if strings.TrimSpace(a.Text) == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: a.ChatID, Text: a.Text}); err != nil {
		return fmt.Errorf("failed to send announcement text: %w", err)
	}
	return nil
}
