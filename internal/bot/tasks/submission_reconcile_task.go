package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/pipeline"
)

// newSubmissionReconcileTask creates the task that puts unscored submissions
// back on the ingestion queue: the ones lost in a restart and the ones whose
// oracle call failed without a retry hint. Submissions younger than
// ReconcileAfter may still be in flight and are left alone; older than
// ReconcileWindow are given up.
func newSubmissionReconcileTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "submission_reconcile")
	cfg := deps.Config.Pipeline

	return func(ctx context.Context) error {
		now := deps.now()
		subs, err := deps.Store.GetUnprocessedSubmissions(ctx,
			now.Add(-cfg.ReconcileAfter), now.Add(-cfg.ReconcileWindow), cfg.ReconcileBatch)
		if err != nil {
			return fmt.Errorf("failed to load unprocessed submissions: %w", err)
		}
		if len(subs) == 0 {
			log.DebugContext(ctx, "No submissions to reconcile")
			return nil
		}

		amas := make(map[int64]*database.AMA)
		var requeued, skipped int
		for _, sub := range subs {
			ama, ok := amas[sub.AMAID]
			if !ok {
				ama, err = deps.Store.GetAMA(ctx, sub.AMAID)
				if err != nil {
					return fmt.Errorf("failed to load ama %d: %w", sub.AMAID, err)
				}
				amas[sub.AMAID] = ama
			}
			if ama == nil {
				log.WarnContext(ctx, "Submission belongs to a missing AMA", "submission_id", sub.ID, "ama_id", sub.AMAID)
				skipped++
				continue
			}

			item := pipeline.QueueItem{
				SubmissionID: sub.ID,
				AMAID:        sub.AMAID,
				UserID:       sub.UserID,
				Username:     sub.Username,
				Question:     sub.Question,
				ChatID:       sub.ChatID,
				MessageID:    sub.MessageID,
				Topic:        ama.Topic,
				ThreadID:     ama.ThreadID,
			}
			if deps.Pipeline.Requeue(item) {
				requeued++
			} else {
				skipped++
			}
		}

		log.InfoContext(ctx, "Reconciled unprocessed submissions", "found", len(subs), "requeued", requeued, "skipped", skipped)
		return nil
	}
}
