package handlers

import (
	"log/slog"

	"github.com/teleagent/teleagent/internal/artwork"
	"github.com/teleagent/teleagent/internal/bargain"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/persona"
	"github.com/teleagent/teleagent/internal/queue"
	"github.com/teleagent/teleagent/internal/wallet"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Personas   *persona.Registry
	Negotiator *bargain.Negotiator
	Wallet     wallet.BalanceReader
	Artwork    *artwork.Service
	Queue      queue.Queue
	LLM        llm.Client
}

// agent returns the persona this bot speaks for.
func (d HandlerDeps) agent() (*persona.Persona, error) {
	return d.Personas.Get(d.Config.Telegram.AgentID)
}

func (d HandlerDeps) botUsername() string {
	if d.Config.Telegram.BotInfo == nil {
		return ""
	}
	return d.Config.Telegram.BotInfo.Username
}

func (d HandlerDeps) botID() int64 {
	if d.Config.Telegram.BotInfo == nil {
		return 0
	}
	return d.Config.Telegram.BotInfo.ID
}
