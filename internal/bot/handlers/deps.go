package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/pipeline"
	"github.com/edgard/amabot/internal/telegram"
	"github.com/edgard/amabot/internal/winners"
)

// Enqueuer accepts tagged questions for scoring.
type Enqueuer interface {
	Enqueue(ctx context.Context, item pipeline.QueueItem) (pipeline.QueueItem, error)
}

// Announcer sends a session's winner announcement right away.
type Announcer interface {
	Broadcast(ctx context.Context, amaID int64) error
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	Telegram    telegram.Messenger
	Pipeline    Enqueuer
	Selector    *winners.Selector
	Broadcaster Announcer
	Sessions    *winners.Sessions
}
