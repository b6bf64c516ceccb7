package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/pipeline"
	"github.com/edgard/amabot/internal/winners"
)

// NewQuestionHandler returns the default handler. In community chats it
// enqueues messages tagged #<prefix><session_no> for the active session of
// the chat's language. In private chats it reads an operator's pending
// announcement time.
func NewQuestionHandler(deps HandlerDeps) bot.HandlerFunc {
	return questionHandler{deps: deps, tag: hashtagPattern(deps.Config.Telegram.HashtagPrefix)}.Handle
}

type questionHandler struct {
	deps HandlerDeps
	tag  *regexp.Regexp
}

func hashtagPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(#` + regexp.QuoteMeta(prefix) + `(\d+))\b`)
}

// extractTag finds the first session hashtag in text and returns its number
// and the text without the tag.
func extractTag(tag *regexp.Regexp, text string) (sessionNo int, question string, ok bool) {
	loc := tag.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(text[loc[4]:loc[5]])
	if err != nil || n <= 0 {
		return 0, "", false
	}

	before := strings.TrimRight(text[:loc[2]], " \t")
	after := strings.TrimLeft(text[loc[3]:], " \t")
	switch {
	case before == "":
		question = after
	case after == "":
		question = before
	default:
		question = before + " " + after
	}
	return n, strings.TrimSpace(question), true
}

func (h questionHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	if msg.Chat.Type == models.ChatTypePrivate {
		h.handleScheduleInput(ctx, msg, text)
		return
	}
	h.handleQuestion(ctx, msg, text)
}

func (h questionHandler) handleQuestion(ctx context.Context, msg *models.Message, text string) {
	deps := h.deps
	log := deps.Logger.With("handler", "question")

	lang, ok := deps.Config.Telegram.ChatLanguage(msg.Chat.ID)
	if !ok {
		log.DebugContext(ctx, "Ignoring message outside community chats", "chat_id", msg.Chat.ID)
		return
	}
	sessionNo, question, ok := extractTag(h.tag, text)
	if !ok {
		return
	}
	if question == "" {
		log.DebugContext(ctx, "Ignoring hashtag without question", "chat_id", msg.Chat.ID, "message_id", msg.ID)
		return
	}

	ama, err := deps.Store.GetActiveAMA(ctx, lang, sessionNo)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up active AMA", "error", err, "language", lang, "session_no", sessionNo)
		return
	}
	if ama == nil {
		log.DebugContext(ctx, "No active AMA for hashtag", "language", lang, "session_no", sessionNo)
		return
	}

	item, err := deps.Pipeline.Enqueue(ctx, pipeline.QueueItem{
		AMAID:     ama.ID,
		UserID:    msg.From.ID,
		Username:  msg.From.Username,
		Question:  question,
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Topic:     ama.Topic,
		ThreadID:  ama.ThreadID,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to enqueue question", "error", err, "ama_id", ama.ID, "message_id", msg.ID)
		return
	}
	log.DebugContext(ctx, "Question accepted", "trace_id", item.TraceID, "submission_id", item.SubmissionID)
}

func (h questionHandler) handleScheduleInput(ctx context.Context, msg *models.Message, text string) {
	deps := h.deps
	log := deps.Logger.With("handler", "schedule_input")

	if !deps.Config.Telegram.IsAdmin(msg.From.ID) {
		return
	}
	st := deps.Sessions.For(msg.From.ID)
	amaID, ok := st.PendingSchedule()
	if !ok {
		return
	}

	at, err := deps.Selector.ScheduleBroadcast(ctx, st, amaID, text)
	switch {
	case errors.Is(err, winners.ErrInvalidTime):
		reply(ctx, deps, log, msg.Chat.ID, deps.Config.Messages.ScheduleInvalid)
		return
	case errors.Is(err, winners.ErrNotFuture):
		reply(ctx, deps, log, msg.Chat.ID, deps.Config.Messages.ScheduleNotFuture)
		return
	case errors.Is(err, winners.ErrNotConfirmed):
		st.ClearPendingSchedule()
		reply(ctx, deps, log, msg.Chat.ID, deps.Config.Messages.InvalidAction)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to schedule announcement", "error", err, "ama_id", amaID)
		reply(ctx, deps, log, msg.Chat.ID, deps.Config.Messages.GeneralError)
		return
	}

	sessionNo := amaID
	if ama, err := deps.Store.GetAMA(ctx, amaID); err == nil && ama != nil {
		sessionNo = int64(ama.SessionNo)
	}
	layout, tz := deps.Selector.Layout()
	reply(ctx, deps, log, msg.Chat.ID,
		fmt.Sprintf(deps.Config.Messages.ScheduledFmt, sessionNo, at.Format(layout)+" "+tz))
}
