package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/telegram"
)

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	admin := map[string]tgbot.HandlerFunc{
		"ama_new":   NewAMANewHandler(deps),
		"ama_start": NewAMAStatusHandler(deps, database.StatusActive),
		"ama_end":   NewAMAStatusHandler(deps, database.StatusEnded),
		"ama_list":  NewAMAListHandler(deps),
		"winners":   NewWinnersHandler(deps),
		"cancel":    NewCancelHandler(deps),
	}
	for command, handler := range admin {
		handlers["/"+command] = telegram.RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     command,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  adminMiddleware,
		}
	}

	handlers[callbackPrefix] = telegram.RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     callbackPrefix,
		Handler:     NewWinnersCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  adminMiddleware,
	}

	return handlers
}
