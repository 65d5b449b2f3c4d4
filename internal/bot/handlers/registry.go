package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

func command(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) RegisteredHandler {
	return RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     h,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  mw,
	}
}

// RegisterAllCommands returns every bot command keyed by its slash name.
// Plain messages are served by NewMessageHandler, registered as the default
// handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := map[string]RegisteredHandler{
		"/start":         command("start", NewStartHandler(deps)),
		"/help":          command("help", NewHelpHandler(deps)),
		"/profile":       command("profile", NewProfileHandler(deps)),
		"/nfts":          command("nfts", NewNFTsHandler(deps)),
		"/mint":          command("mint", NewMintHandler(deps)),
		"/balance":       command("balance", NewBalanceHandler(deps)),
		"/clean_history": command("clean_history", NewCleanHistoryHandler(deps)),
	}

	admin := AdminOnly(deps)
	handlers["/draw"] = command("draw", NewDrawHandler(deps), admin)
	handlers["/announce_test"] = command("announce_test", NewAnnounceTestHandler(deps), admin)

	return handlers
}
