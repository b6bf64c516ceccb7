// Package tasks implements the scheduled tasks of the AMA bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/pipeline"
)

// Requeuer takes back submissions that were never scored.
type Requeuer interface {
	Requeue(item pipeline.QueueItem) bool
}

// Announcer sends a session's winner announcement.
type Announcer interface {
	Broadcast(ctx context.Context, amaID int64) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger      *slog.Logger
	Store       database.Store
	Config      *config.Config
	Pipeline    Requeuer
	Broadcaster Announcer
	Clock       clockwork.Clock
}

func (d TaskDeps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}
