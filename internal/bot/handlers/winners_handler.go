package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/winners"
)

// NewWinnersHandler returns a handler for /winners <ama_id>. It opens the
// operator's shortlist with its selection keyboard.
func NewWinnersHandler(deps HandlerDeps) bot.HandlerFunc {
	return winnersHandler{deps}.Handle
}

type winnersHandler struct {
	deps HandlerDeps
}

func (h winnersHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "winners")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		reply(ctx, deps, log, chatID, deps.Config.Messages.WinnersUsage)
		return
	}
	amaID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amaID <= 0 {
		reply(ctx, deps, log, chatID, deps.Config.Messages.WinnersUsage)
		return
	}

	st := deps.Sessions.For(update.Message.From.ID)
	list, err := deps.Selector.Open(ctx, st, amaID)
	switch {
	case errors.Is(err, winners.ErrNoScores):
		reply(ctx, deps, log, chatID, deps.Config.Messages.NoScores)
		return
	case errors.Is(err, winners.ErrAMANotFound):
		reply(ctx, deps, log, chatID, fmt.Sprintf(deps.Config.Messages.AMANotFoundFmt, amaID))
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to open shortlist", "error", err, "ama_id", amaID)
		reply(ctx, deps, log, chatID, deps.Config.Messages.GeneralError)
		return
	}

	send(ctx, deps, log, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        shortlistText(deps.Config.Messages, list),
		ReplyMarkup: shortlistKeyboard(list),
	})
}

// NewCancelHandler returns a handler for /cancel. It stops waiting for an
// announcement time.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.deps.Sessions.For(update.Message.From.ID).ClearPendingSchedule()
	reply(ctx, h.deps, log, update.Message.Chat.ID, h.deps.Config.Messages.Cancelled)
}
