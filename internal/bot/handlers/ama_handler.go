package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/database"
)

const amaListLimit = 10

// NewAMANewHandler returns a handler for /ama_new <session_no> <lang> <winners> [topic].
func NewAMANewHandler(deps HandlerDeps) bot.HandlerFunc {
	return amaNewHandler{deps}.Handle
}

type amaNewHandler struct {
	deps HandlerDeps
}

// parseNewAMA reads the /ama_new arguments. The language must have a
// community chat.
func parseNewAMA(args []string, chats map[string]int64) (*database.AMA, error) {
	if len(args) < 3 {
		return nil, errors.New("missing arguments")
	}
	sessionNo, err := strconv.Atoi(args[0])
	if err != nil || sessionNo <= 0 {
		return nil, fmt.Errorf("invalid session number %q", args[0])
	}
	lang := strings.ToLower(args[1])
	if _, ok := chats[lang]; !ok {
		return nil, fmt.Errorf("no community chat for language %q", lang)
	}
	winnerCount, err := strconv.Atoi(args[2])
	if err != nil || winnerCount <= 0 {
		return nil, fmt.Errorf("invalid winner count %q", args[2])
	}
	return &database.AMA{
		SessionNo:   sessionNo,
		Language:    lang,
		WinnerCount: winnerCount,
		Topic:       strings.Join(args[3:], " "),
	}, nil
}

func (h amaNewHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "ama_new")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	ama, err := parseNewAMA(commandArgs(update.Message.Text), deps.Config.Telegram.CommunityChats)
	if err != nil {
		log.InfoContext(ctx, "Rejected /ama_new arguments", "error", err, "chat_id", chatID)
		reply(ctx, deps, log, chatID, deps.Config.Messages.AMAUsage)
		return
	}

	if err := deps.Store.CreateAMA(ctx, ama); err != nil {
		log.ErrorContext(ctx, "Failed to create AMA", "error", err, "session_no", ama.SessionNo, "language", ama.Language)
		reply(ctx, deps, log, chatID, deps.Config.Messages.GeneralError)
		return
	}
	log.InfoContext(ctx, "AMA created", "ama_id", ama.ID, "session_no", ama.SessionNo, "language", ama.Language)

	topic, err := deps.Telegram.CreateForumTopic(ctx, &bot.CreateForumTopicParams{
		ChatID: deps.Config.Telegram.StaffChatID,
		Name:   fmt.Sprintf("AMA #%d (%s)", ama.SessionNo, ama.Language),
	})
	if err != nil {
		// The staff chat may not be a forum; answers then land in the main thread.
		log.WarnContext(ctx, "Failed to create staff topic", "error", err, "ama_id", ama.ID)
	} else if err := deps.Store.SetAMAThread(ctx, ama.ID, topic.MessageThreadID); err != nil {
		log.ErrorContext(ctx, "Failed to save staff topic", "error", err, "ama_id", ama.ID, "thread_id", topic.MessageThreadID)
	}

	reply(ctx, deps, log, chatID, fmt.Sprintf(deps.Config.Messages.AMACreatedFmt, ama.SessionNo, ama.Language, ama.ID))
}

// NewAMAStatusHandler returns a handler that moves the AMA named by the
// command argument to status.
func NewAMAStatusHandler(deps HandlerDeps, status database.AMAStatus) bot.HandlerFunc {
	return amaStatusHandler{deps: deps, status: status}.Handle
}

type amaStatusHandler struct {
	deps   HandlerDeps
	status database.AMAStatus
}

func (h amaStatusHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "ama_status", "status", h.status)
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		reply(ctx, deps, log, chatID, deps.Config.Messages.Help)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		reply(ctx, deps, log, chatID, deps.Config.Messages.Help)
		return
	}

	err = deps.Store.UpdateAMAStatus(ctx, id, h.status)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, deps, log, chatID, fmt.Sprintf(deps.Config.Messages.AMANotFoundFmt, id))
	case errors.Is(err, database.ErrStatusRegression):
		log.InfoContext(ctx, "Refused status regression", "ama_id", id)
		reply(ctx, deps, log, chatID, deps.Config.Messages.AMARegression)
	case err != nil:
		log.ErrorContext(ctx, "Failed to update AMA status", "error", err, "ama_id", id)
		reply(ctx, deps, log, chatID, deps.Config.Messages.GeneralError)
	default:
		log.InfoContext(ctx, "AMA status updated", "ama_id", id)
		reply(ctx, deps, log, chatID, fmt.Sprintf(deps.Config.Messages.AMAStatusFmt, id, h.status))
	}
}

// NewAMAListHandler returns a handler for /ama_list.
func NewAMAListHandler(deps HandlerDeps) bot.HandlerFunc {
	return amaListHandler{deps}.Handle
}

type amaListHandler struct {
	deps HandlerDeps
}

func (h amaListHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "ama_list")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	amas, err := deps.Store.ListAMAs(ctx, amaListLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list AMAs", "error", err)
		reply(ctx, deps, log, chatID, deps.Config.Messages.GeneralError)
		return
	}
	if len(amas) == 0 {
		reply(ctx, deps, log, chatID, deps.Config.Messages.AMAListEmpty)
		return
	}
	reply(ctx, deps, log, chatID, formatAMAList(deps.Config.Messages.AMAListHeader, amas))
}

func formatAMAList(header string, amas []*database.AMA) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, a := range amas {
		fmt.Fprintf(&sb, "\n%d · #%d (%s) %s, %d winner(s)", a.ID, a.SessionNo, a.Language, a.Status, a.WinnerCount)
		if a.Topic != "" {
			fmt.Fprintf(&sb, ": %s", a.Topic)
		}
	}
	return sb.String()
}
