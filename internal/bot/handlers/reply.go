package handlers

import (
	"context"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func reply(ctx context.Context, deps HandlerDeps, log *slog.Logger, chatID int64, text string) {
	send(ctx, deps, log, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
}

func send(ctx context.Context, deps HandlerDeps, log *slog.Logger, params *tgbot.SendMessageParams) *models.Message {
	msg, err := deps.Telegram.SendMessage(ctx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", params.ChatID)
		return nil
	}
	return msg
}

// answer acknowledges a button press. Telegram keeps the button spinning
// until it is answered.
func answer(ctx context.Context, deps HandlerDeps, log *slog.Logger, queryID, text string, alert bool) {
	_, err := deps.Telegram.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err, "callback_query_id", queryID)
	}
}

// commandArgs returns the words after the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
