package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCleanHistoryHandler returns a handler for the /clean_history command.
// It forgets the dialogs of the chat and, in private chats, the bargain
// session of the user.
func NewCleanHistoryHandler(deps HandlerDeps) bot.HandlerFunc {
	return cleanHistoryHandler{deps}.Handle
}

type cleanHistoryHandler struct {
	deps HandlerDeps
}

func (h cleanHistoryHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "clean_history")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Clean history handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	agentID := h.deps.Config.Telegram.AgentID
	log.InfoContext(ctx, "User requested history cleanup", "chat_id", chatID, "user_id", userID)

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := h.deps.Store.DeleteDialogs(timeoutCtx, agentID, chatID)
	if err == nil && update.Message.Chat.Type == models.ChatTypePrivate {
		err = h.deps.Negotiator.Reset(timeoutCtx, agentID, userID)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "History cleanup timed out or was cancelled", "chat_id", chatID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to clean history", "error", err, "chat_id", chatID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}

	log.InfoContext(ctx, "History cleaned", "chat_id", chatID, "dialogs_deleted", deleted)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.HistoryCleanedMsg)
}
