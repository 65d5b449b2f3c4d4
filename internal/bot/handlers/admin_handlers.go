package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/teleagent/teleagent/internal/queue"
)

// NewDrawHandler returns a handler for the admin /draw command. It runs the
// artwork cycle right away and shows the result in the calling chat; the
// group chat receives it through the announcement queue.
func NewDrawHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "draw")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID
		log.InfoContext(ctx, "Admin requested artwork creation", "chat_id", chatID)

		_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionUploadPhoto})

		drawCtx, cancel := context.WithTimeout(ctx, artworkTimeout)
		defer cancel()
		c, err := deps.Artwork.CreateAndCritique(drawCtx, deps.Config.Telegram.AgentID)
		if err != nil {
			log.ErrorContext(ctx, "Artwork creation failed", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ArtworkErrorMsg)
			return
		}
		if chatID == deps.Config.Telegram.GroupChatID {
			return
		}

		a := queue.Announcement{ChatID: chatID, Text: c.Announcement, ImagePath: c.NFT.ImagePath, Caption: c.NFT.Name}
		if err := SendAnnouncement(ctx, b, a); err != nil {
			log.ErrorContext(ctx, "Failed to send artwork", "error", err, "chat_id", chatID)
		}
	}
}

// NewAnnounceTestHandler returns a handler for the admin /announce_test
// command, which pushes a test message through the announcement queue.
func NewAnnounceTestHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "announce_test")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		groupID := deps.Config.Telegram.GroupChatID
		if groupID == 0 || deps.Queue == nil {
			sendText(ctx, b, log, chatID, deps.Config.Messages.AnnouncementDisabled)
			return
		}

		name := deps.Config.Telegram.AgentID
		if p, err := deps.agent(); err == nil {
			name = p.Name
		}
		a := queue.Announcement{ChatID: groupID, Text: fmt.Sprintf("📣 Announcement test from %s.", name)}
		if err := deps.Queue.Publish(ctx, a); err != nil {
			log.ErrorContext(ctx, "Failed to publish test announcement", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}
		log.InfoContext(ctx, "Test announcement queued", "group_chat_id", groupID)
		sendText(ctx, b, log, chatID, "Announcement queued.")
	}
}
