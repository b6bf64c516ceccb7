package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/errs"
	"github.com/edgard/amabot/internal/winners"
)

const dispatchBatch = 20

// newWinnerDispatchTask creates the task that sends scheduled winner
// announcements once they are due. A schedule row is deleted after its
// announcement went out or can never go out. Rate-limited and other
// transient failures keep the row for the next run.
func newWinnerDispatchTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "winner_dispatch")

	return func(ctx context.Context) error {
		due, err := deps.Store.GetDueSchedules(ctx, deps.now(), dispatchBatch)
		if err != nil {
			return fmt.Errorf("failed to load due schedules: %w", err)
		}

		var sent int
		for _, sched := range due {
			schedLog := log.With("schedule_id", sched.ID, "ama_id", sched.AMAID)

			if sched.Type != database.ScheduleTypeWinner {
				schedLog.WarnContext(ctx, "Dropping schedule of unknown type", "type", sched.Type)
				deleteSchedule(ctx, deps, sched)
				continue
			}

			err := deps.Broadcaster.Broadcast(ctx, sched.AMAID)
			switch {
			case err == nil:
				sent++
				deleteSchedule(ctx, deps, sched)
			case errs.IsRateLimited(err):
				// Telegram refuses everything until the hint passes.
				schedLog.WarnContext(ctx, "Announcement rate limited, keeping schedule", "retry_after", errs.RetryAfter(err))
				return nil
			case errors.Is(err, winners.ErrNotConfirmed),
				errors.Is(err, winners.ErrAMANotFound),
				errors.Is(err, winners.ErrNoCommunityChat):
				schedLog.ErrorContext(ctx, "Announcement can never be sent, dropping schedule", "error", err)
				deleteSchedule(ctx, deps, sched)
			default:
				schedLog.ErrorContext(ctx, "Announcement failed, keeping schedule", "error", err)
			}
		}

		if len(due) > 0 {
			log.InfoContext(ctx, "Dispatched scheduled announcements", "due", len(due), "sent", sent)
		}
		return nil
	}
}

func deleteSchedule(ctx context.Context, deps TaskDeps, sched *database.Schedule) {
	if err := deps.Store.DeleteSchedule(ctx, sched.ID); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to delete schedule", "schedule_id", sched.ID, "error", err)
	}
}
