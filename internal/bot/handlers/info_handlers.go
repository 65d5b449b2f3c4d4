package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/teleagent/teleagent/internal/database"
)

const latestMintsLimit = 5

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		replyWithTemplate(ctx, b, update, deps, "start", deps.Config.Messages.Welcome)
	}
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		replyWithTemplate(ctx, b, update, deps, "help", deps.Config.Messages.Help)
	}
}

// replyWithTemplate sends a configured message with @botname replaced.
func replyWithTemplate(ctx context.Context, b *bot.Bot, update *models.Update, deps HandlerDeps, name, tmpl string) {
	log := deps.Logger.With("handler", name)
	if update.Message == nil {
		log.WarnContext(ctx, "Handler received update without message", "update_id", update.ID)
		return
	}
	log.InfoContext(ctx, "Handling command", "chat_id", update.Message.Chat.ID)

	if username := deps.botUsername(); username != "" {
		tmpl = strings.ReplaceAll(tmpl, "@botname", "@"+username)
	}
	sendText(ctx, b, log, update.Message.Chat.ID, tmpl)
}

// NewProfileHandler returns a handler for the /profile command.
func NewProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "profile")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		p, err := deps.agent()
		if err != nil {
			log.ErrorContext(ctx, "Agent persona missing", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}

		profile := "Agent Profile\n" + p.ProfileMessage()
		if p.WalletAddress != "" {
			profile += "\nWallet: " + p.WalletAddress
		}
		sendText(ctx, b, log, chatID, profile)
	}
}

// NewNFTsHandler returns a handler for the /nfts command listing the
// artworks the agent owns.
func NewNFTsHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "nfts")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		nfts, err := deps.Store.ListNFTsByOwner(ctx, deps.Config.Telegram.AgentID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list agent NFTs", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}
		if len(nfts) == 0 {
			sendText(ctx, b, log, chatID, deps.Config.Messages.NoNFTsMsg)
			return
		}
		sendText(ctx, b, log, chatID, formatCollection(nfts))
	}
}

// NewMintHandler returns a handler for the /mint command listing the latest
// minted NFTs of every agent.
func NewMintHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "mint")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		nfts, err := deps.Store.ListLatestNFTs(ctx, latestMintsLimit)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list latest NFTs", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}
		if len(nfts) == 0 {
			sendText(ctx, b, log, chatID, deps.Config.Messages.NoMintsMsg)
			return
		}
		sendText(ctx, b, log, chatID, formatMints(nfts, deps.creatorName))
	}
}

// NewBalanceHandler returns a handler for the /balance command.
func NewBalanceHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "balance")
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID

		p, err := deps.agent()
		if err != nil || p.WalletAddress == "" {
			log.ErrorContext(ctx, "Agent has no wallet", "error", err)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}
		balance, err := deps.Wallet.Balance(ctx, p.WalletAddress)
		if err != nil {
			log.ErrorContext(ctx, "Failed to read wallet balance", "error", err, "wallet", p.WalletAddress)
			sendText(ctx, b, log, chatID, deps.Config.Messages.ErrorGeneralMsg)
			return
		}
		sendText(ctx, b, log, chatID, fmt.Sprintf("Current Balance: %.4f SOL", balance))
	}
}

func (d HandlerDeps) creatorName(id string) string {
	if p, err := d.Personas.Get(id); err == nil {
		return p.Name
	}
	return id
}

func formatCollection(nfts []*database.NFT) string {
	var b strings.Builder
	fmt.Fprintf(&b, "My NFT Collection (%d total):\n", len(nfts))
	for _, n := range nfts {
		fmt.Fprintf(&b, "- %s (NFT id: %s)", n.Name, n.TokenID)
		if n.ArtStyle != "" {
			fmt.Fprintf(&b, ", %s", n.ArtStyle)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatMints(nfts []*database.NFT, name func(string) string) string {
	var b strings.Builder
	b.WriteString("Recently Minted NFTs:\n")
	for _, n := range nfts {
		fmt.Fprintf(&b, "- %s by %s\n", n.Name, name(n.CreatorID))
	}
	return strings.TrimRight(b.String(), "\n")
}
