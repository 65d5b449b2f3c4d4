package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/teleagent/teleagent/internal/bargain"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
)

type messageHandler struct {
	deps HandlerDeps
}

// NewMessageHandler creates the handler for plain messages. Private chats
// go through the bargaining pipeline; group messages are recorded and
// answered when the bot is mentioned.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil || messageText(msg) == "" {
		log.DebugContext(ctx, "Ignoring update with nil message, empty content, or nil sender", "update_id", update.ID)
		return
	}
	if msg.From.IsBot && msg.From.ID == h.deps.botID() {
		return
	}

	switch msg.Chat.Type {
	case models.ChatTypePrivate:
		h.handlePrivate(ctx, b, log, msg)
	case models.ChatTypeGroup, models.ChatTypeSupergroup:
		h.handleGroup(ctx, b, log, msg)
	default:
		log.DebugContext(ctx, "Ignoring message from unsupported chat type", "chat_type", msg.Chat.Type)
	}
}

func (h messageHandler) handlePrivate(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message) {
	chatID := msg.Chat.ID
	log = log.With("chat_id", chatID, "user_id", msg.From.ID)

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()
	res, err := h.deps.Negotiator.Respond(aiCtx, bargain.Turn{
		AgentID:   h.deps.Config.Telegram.AgentID,
		UserID:    msg.From.ID,
		BuyerName: displayName(msg.From),
		Text:      messageText(msg),
		Platform:  database.PlatformTelegramPrivate,
	})
	if err != nil {
		log.ErrorContext(ctx, "Bargaining failed", "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}

	reply := res.Reply
	if strings.TrimSpace(reply) == "" {
		log.WarnContext(ctx, "Empty bargaining reply, using fallback", "stage", res.Stage)
		reply = h.deps.Config.Messages.EmptyReplyFallback
	}
	log.InfoContext(ctx, "Bargaining reply ready", "stage", res.Stage)
	sendParts(ctx, b, log, chatID, 0, reply, h.deps.Config.Telegram.ReplyDelay)
}

func (h messageHandler) handleGroup(ctx context.Context, b *bot.Bot, log *slog.Logger, msg *models.Message) {
	deps := h.deps
	chatID := msg.Chat.ID
	log = log.With("chat_id", chatID)

	saveDialogWithRetry(ctx, deps, log, &database.Dialog{
		AgentID:     deps.Config.Telegram.AgentID,
		ChatID:      chatID,
		UserID:      msg.From.ID,
		Role:        database.RoleUser,
		SpeakerName: displayName(msg.From),
		Platform:    database.PlatformTelegramGroup,
		Content:     messageText(msg),
		CreatedAt:   time.Unix(int64(msg.Date), 0),
	})

	if !isMentioned(msg, deps.botID(), deps.botUsername()) {
		log.DebugContext(ctx, "Bot not mentioned, message recorded only")
		return
	}
	log.InfoContext(ctx, "Handling group mention", "message_id", msg.ID)

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()
	reply, err := h.groupReply(aiCtx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Group reply generation failed", "error", err)
		sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
		return
	}
	if reply == "" {
		reply = deps.Config.Messages.EmptyReplyFallback
	}

	sendParts(ctx, b, log, chatID, msg.ID, reply, deps.Config.Telegram.ReplyDelay)

	p, _ := deps.agent()
	saveDialogWithRetry(ctx, deps, log, &database.Dialog{
		AgentID:     deps.Config.Telegram.AgentID,
		ChatID:      chatID,
		UserID:      deps.botID(),
		Role:        database.RoleAssistant,
		SpeakerName: p.Name,
		Platform:    database.PlatformTelegramGroup,
		Content:     reply,
	})
}

// groupReply answers the group in character from the recent group history.
func (h messageHandler) groupReply(ctx context.Context, chatID int64) (string, error) {
	p, err := h.deps.agent()
	if err != nil {
		return "", err
	}
	history, err := h.deps.Store.GetDialogHistory(ctx, p.ID, chatID, h.deps.Config.Database.MaxHistoryMessages)
	if err != nil {
		return "", fmt.Errorf("failed to load group history: %w", err)
	}

	req := llm.Request{System: fmt.Sprintf(GroupChatInstruction, p.ProfileMessage())}
	for _, d := range history {
		role := llm.RoleUser
		if d.Role == database.RoleAssistant {
			role = llm.RoleAssistant
		}
		req.Messages = append(req.Messages, llm.Message{Role: role, Name: d.SpeakerName, Content: d.Content})
	}
	reply, err := h.deps.LLM.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
