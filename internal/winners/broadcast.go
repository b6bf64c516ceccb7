package winners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
)

// BroadcastStore is the persistence the announcement needs.
type BroadcastStore interface {
	GetAMA(ctx context.Context, id int64) (*database.AMA, error)
	GetWinners(ctx context.Context, amaID int64) ([]*database.Winner, error)
}

// Messenger is the Telegram surface the announcement needs.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	PinChatMessage(ctx context.Context, params *bot.PinChatMessageParams) (bool, error)
}

// Broadcaster announces confirmed winners in the session's community chat.
type Broadcaster struct {
	log       *slog.Logger
	store     BroadcastStore
	tg        Messenger
	chats     map[string]int64
	bannerURL string
	headerFmt string
	lineFmt   string
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(logger *slog.Logger, cfg *config.Config, store BroadcastStore, tg Messenger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		log:       logger.With("component", "winner_broadcaster"),
		store:     store,
		tg:        tg,
		chats:     cfg.Telegram.CommunityChats,
		bannerURL: cfg.Winners.BannerURL,
		headerFmt: cfg.Messages.AnnouncementHeaderFmt,
		lineFmt:   cfg.Messages.AnnouncementLineFmt,
	}
}

// Announcement renders the announcement text.
func (b *Broadcaster) Announcement(ama *database.AMA, winners []*database.Winner) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, b.headerFmt, ama.SessionNo)
	sb.WriteString("\n")
	for _, w := range winners {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, b.lineFmt, w.Rank, DisplayName(w.Username, w.UserID), w.Score)
	}
	return sb.String()
}

// DisplayName is @username when known, the numeric id otherwise.
func DisplayName(username string, userID int64) string {
	if username != "" {
		return "@" + strings.TrimPrefix(username, "@")
	}
	return fmt.Sprintf("id %d", userID)
}

// Broadcast sends and pins the winners of amaID now. Telegram rate limits
// come back tagged so callers can try again later.
func (b *Broadcaster) Broadcast(ctx context.Context, amaID int64) error {
	ama, err := b.store.GetAMA(ctx, amaID)
	if err != nil {
		return fmt.Errorf("failed to load ama %d: %w", amaID, err)
	}
	if ama == nil {
		return ErrAMANotFound
	}
	winners, err := b.store.GetWinners(ctx, amaID)
	if err != nil {
		return fmt.Errorf("failed to load winners of ama %d: %w", amaID, err)
	}
	if len(winners) == 0 {
		return ErrNotConfirmed
	}
	chatID, ok := b.chats[ama.Language]
	if !ok {
		return fmt.Errorf("%w %q", ErrNoCommunityChat, ama.Language)
	}

	text := b.Announcement(ama, winners)
	var msg *models.Message
	if b.bannerURL != "" {
		msg, err = b.tg.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileString{Data: b.bannerURL},
			Caption: text,
		})
	} else {
		msg, err = b.tg.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	}
	if err != nil {
		b.log.ErrorContext(ctx, "Failed to send winner announcement", "ama_id", amaID, "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to announce winners of ama %d: %w", amaID, err)
	}

	if _, err := b.tg.PinChatMessage(ctx, &bot.PinChatMessageParams{ChatID: chatID, MessageID: msg.ID}); err != nil {
		b.log.WarnContext(ctx, "Failed to pin winner announcement", "ama_id", amaID, "message_id", msg.ID, "error", err)
	}

	b.log.InfoContext(ctx, "Winners announced", "ama_id", amaID, "chat_id", chatID, "count", len(winners))
	return nil
}
