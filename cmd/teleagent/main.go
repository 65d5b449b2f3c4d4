// Package main is the entrypoint of the teleagent Telegram artist agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/teleagent/teleagent/internal/api"
	"github.com/teleagent/teleagent/internal/artwork"
	"github.com/teleagent/teleagent/internal/bargain"
	"github.com/teleagent/teleagent/internal/bot"
	"github.com/teleagent/teleagent/internal/bot/handlers"
	"github.com/teleagent/teleagent/internal/bot/tasks"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/llm"
	"github.com/teleagent/teleagent/internal/logger"
	"github.com/teleagent/teleagent/internal/persona"
	"github.com/teleagent/teleagent/internal/queue"
	"github.com/teleagent/teleagent/internal/telegram"
	"github.com/teleagent/teleagent/internal/wallet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the process
// exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	personas, err := persona.LoadDir(cfg.Personas.Dir)
	if err != nil {
		log.Error("Failed to load personas", "dir", cfg.Personas.Dir, "error", err)
		return 1
	}
	if _, err := personas.Get(cfg.Telegram.AgentID); err != nil {
		log.Error("Configured agent has no persona", "agent_id", cfg.Telegram.AgentID, "error", err)
		return 1
	}
	if err := syncAgents(ctx, store, personas); err != nil {
		log.Error("Failed to sync agents", "error", err)
		return 1
	}

	provider, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
		return 1
	}

	balances, closeWallet, err := wallet.New(ctx, cfg.Wallet, log)
	if err != nil {
		log.Error("Failed to initialize wallet", "driver", cfg.Wallet.Driver, "error", err)
		return 1
	}
	defer closeWallet()

	announcements, err := queue.New(ctx, cfg.Queue, log)
	if err != nil {
		log.Error("Failed to initialize announcement queue", "driver", cfg.Queue.Driver, "error", err)
		return 1
	}

	negotiator := bargain.NewNegotiator(bargain.Options{
		Bargain:     cfg.Bargain,
		Pricing:     cfg.Pricing,
		LLM:         provider,
		Store:       store,
		Personas:    personas,
		Wallet:      balances,
		Ledger:      wallet.NewLedger(store, log),
		Queue:       announcements,
		GroupChatID: cfg.Telegram.GroupChatID,
		Logger:      log,
	})

	artworks := artwork.NewService(artwork.ServiceOptions{
		Creator:         artwork.NewCreator(provider, provider, store, cfg.Artwork, log),
		Critic:          artwork.NewCritic(provider, log),
		Store:           store,
		Personas:        personas,
		Queue:           announcements,
		GroupChatID:     cfg.Telegram.GroupChatID,
		HistoryLimit:    cfg.Artwork.HistoryLimit,
		CritiqueWorkers: cfg.Artwork.CritiqueWorkers,
		Logger:          log,
	})

	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Store:      store,
		Personas:   personas,
		Negotiator: negotiator,
		Wallet:     balances,
		Artwork:    artworks,
		Queue:      announcements,
		LLM:        provider,
	}
	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Artwork: artworks,
		Config:  cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewMessageHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var apiServer bot.APIServer
	if cfg.HTTP.Addr != "" {
		apiServer = api.NewServer(cfg.HTTP, store, negotiator, log)
	}
	app := bot.NewBot(log, cfg, tg, sched, announcements, apiServer)

	log.Info("Starting agent...", "agent_id", cfg.Telegram.AgentID)
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Agent stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Agent stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// syncAgents mirrors the loaded personas into the agents table.
func syncAgents(ctx context.Context, store database.Store, personas *persona.Registry) error {
	for _, p := range personas.All() {
		agent := &database.Agent{
			ID:               p.ID,
			Name:             p.Name,
			Personality:      p.Personality,
			PaintingStyle:    p.PaintingStyle,
			WalletAddress:    p.WalletAddress,
			TelegramUsername: p.TelegramUsername,
			Profile:          p.ProfileMessage(),
			Active:           true,
		}
		if err := store.UpsertAgent(ctx, agent); err != nil {
			return fmt.Errorf("agent %s: %w", p.ID, err)
		}
	}
	return nil
}
