package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/winners"
)

// NewWinnersCallbackHandler returns the handler for every winners:* button.
// Each press is answered, including the ones that change nothing.
func NewWinnersCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return winnersCallbackHandler{deps}.Handle
}

type winnersCallbackHandler struct {
	deps HandlerDeps
}

// press is one button press being handled.
type press struct {
	deps  HandlerDeps
	log   *slog.Logger
	query *models.CallbackQuery
	data  callbackData
	st    *winners.OperatorState
	msg   *models.Message
}

func (h winnersCallbackHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "winners_callback")
	q := update.CallbackQuery
	if q == nil {
		return
	}

	data, err := parseCallbackData(q.Data)
	if err != nil {
		log.WarnContext(ctx, "Rejected callback data", "error", err, "user_id", q.From.ID)
		answer(ctx, deps, log, q.ID, deps.Config.Messages.InvalidAction, true)
		return
	}
	// Buttons live on a message; without it there is nothing to update.
	if q.Message.Message == nil {
		log.InfoContext(ctx, "Callback on inaccessible message", "data", q.Data)
		answer(ctx, deps, log, q.ID, deps.Config.Messages.InvalidAction, true)
		return
	}

	p := press{
		deps:  deps,
		log:   log.With("action", data.Action, "ama_id", data.AMAID),
		query: q,
		data:  data,
		st:    deps.Sessions.For(q.From.ID),
		msg:   q.Message.Message,
	}

	switch data.Action {
	case actionDiscard:
		p.discard(ctx)
	case actionReset:
		p.reset(ctx)
	case actionConfirm:
		p.confirm(ctx)
	case actionCancel:
		p.cancel(ctx)
	case actionBroadcast:
		p.broadcast(ctx)
	case actionSchedule:
		p.schedule(ctx)
	}
}

func (p press) answer(ctx context.Context, text string, alert bool) {
	answer(ctx, p.deps, p.log, p.query.ID, text, alert)
}

// fail answers with the message matching a selection error.
func (p press) fail(ctx context.Context, err error) {
	msgs := p.deps.Config.Messages
	switch {
	case errors.Is(err, winners.ErrUnknownParticipant):
		p.answer(ctx, msgs.UnknownParticipant, true)
	case errors.Is(err, winners.ErrNoScores):
		p.answer(ctx, msgs.NoScores, true)
	case errors.Is(err, winners.ErrNoEligible):
		p.answer(ctx, msgs.NoEligible, true)
	case errors.Is(err, winners.ErrAMANotFound), errors.Is(err, winners.ErrNotConfirmed):
		p.answer(ctx, msgs.InvalidAction, true)
	default:
		p.log.ErrorContext(ctx, "Winner selection step failed", "error", err)
		p.answer(ctx, msgs.GeneralError, true)
	}
}

func (p press) showShortlist(ctx context.Context, list *winners.Shortlist) {
	_, err := p.deps.Telegram.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      p.msg.Chat.ID,
		MessageID:   p.msg.ID,
		Text:        shortlistText(p.deps.Config.Messages, list),
		ReplyMarkup: shortlistKeyboard(list),
	})
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to update shortlist", "error", err, "message_id", p.msg.ID)
	}
}

func (p press) sessionNo(ctx context.Context) int64 {
	ama, err := p.deps.Store.GetAMA(ctx, p.data.AMAID)
	if err != nil || ama == nil {
		p.log.WarnContext(ctx, "Could not load AMA for display", "error", err)
		return p.data.AMAID
	}
	return int64(ama.SessionNo)
}

func (p press) discard(ctx context.Context) {
	list, already, err := p.deps.Selector.Discard(ctx, p.st, p.data.AMAID, p.data.UserID)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	if already {
		p.answer(ctx, p.deps.Config.Messages.AlreadyDiscarded, false)
		return
	}
	p.showShortlist(ctx, list)
	p.answer(ctx, p.deps.Config.Messages.Discarded, false)
}

func (p press) reset(ctx context.Context) {
	list, err := p.deps.Selector.Reset(ctx, p.st, p.data.AMAID)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	p.showShortlist(ctx, list)
	p.answer(ctx, p.deps.Config.Messages.SelectionReset, false)
}

func (p press) confirm(ctx context.Context) {
	confirmed, err := p.deps.Selector.Confirm(ctx, p.st, p.data.AMAID)
	if err != nil {
		p.fail(ctx, err)
		return
	}

	text := fmt.Sprintf(p.deps.Config.Messages.ConfirmedFmt, len(confirmed), p.sessionNo(ctx))
	_, err = p.deps.Telegram.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      p.msg.Chat.ID,
		MessageID:   p.msg.ID,
		Text:        text,
		ReplyMarkup: broadcastKeyboard(p.data.AMAID),
	})
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to show broadcast options", "error", err)
		send(ctx, p.deps, p.log, &bot.SendMessageParams{
			ChatID:      p.msg.Chat.ID,
			Text:        text,
			ReplyMarkup: broadcastKeyboard(p.data.AMAID),
		})
	}
	p.answer(ctx, "", false)
}

func (p press) cancel(ctx context.Context) {
	p.deps.Selector.Cancel(p.st, p.data.AMAID)
	if _, err := p.deps.Telegram.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    p.msg.Chat.ID,
		MessageID: p.msg.ID,
	}); err != nil {
		p.log.WarnContext(ctx, "Failed to delete shortlist", "error", err, "message_id", p.msg.ID)
	}
	p.answer(ctx, p.deps.Config.Messages.Cancelled, false)
}

func (p press) broadcast(ctx context.Context) {
	if err := p.deps.Broadcaster.Broadcast(ctx, p.data.AMAID); err != nil {
		p.log.ErrorContext(ctx, "Failed to announce winners", "error", err)
		p.answer(ctx, p.deps.Config.Messages.BroadcastFailed, true)
		return
	}
	p.st.Forget(p.data.AMAID)

	if _, err := p.deps.Telegram.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      p.msg.Chat.ID,
		MessageID:   p.msg.ID,
		ReplyMarkup: emptyKeyboard(),
	}); err != nil {
		p.log.WarnContext(ctx, "Failed to remove broadcast options", "error", err)
	}
	p.answer(ctx, fmt.Sprintf(p.deps.Config.Messages.BroadcastSentFmt, p.sessionNo(ctx)), false)
}

func (p press) schedule(ctx context.Context) {
	p.st.AwaitSchedule(p.data.AMAID)
	layout, tz := p.deps.Selector.Layout()

	// The time is read from the operator's private chat, whose id is the user id.
	reply(ctx, p.deps, p.log, p.query.From.ID,
		fmt.Sprintf(p.deps.Config.Messages.ScheduleAskFmt, p.sessionNo(ctx), layoutHint(layout), tz))
	p.answer(ctx, "", false)
}
