// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets only configured operators through.
// Others get a "Not Authorized" message, or an alert when they pressed a button.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			log := deps.Logger.With("middleware", "AdminOnly")

			switch {
			case update.Message != nil && update.Message.From != nil:
				userID := update.Message.From.ID
				if deps.Config.Telegram.IsAdmin(userID) {
					next(ctx, bot, update)
					return
				}
				chatID := update.Message.Chat.ID
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)
				reply(ctx, deps, log, chatID, deps.Config.Messages.Unauthorized)

			case update.CallbackQuery != nil:
				userID := update.CallbackQuery.From.ID
				if deps.Config.Telegram.IsAdmin(userID) {
					next(ctx, bot, update)
					return
				}
				log.WarnContext(ctx, "Unauthorized button press", "user_id", userID, "data", update.CallbackQuery.Data)
				answer(ctx, deps, log, update.CallbackQuery.ID, deps.Config.Messages.Unauthorized, true)

			default:
				log.DebugContext(ctx, "Dropping update without sender", "update_id", update.ID)
			}
		}
	}
}
