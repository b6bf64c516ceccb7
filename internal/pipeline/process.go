package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/errs"
	"github.com/edgard/amabot/internal/telegram"
)

// process runs the scoring steps that are still missing for item: score,
// persist, forward to staff, reply with the analysis, react on the original.
func (p *Pipeline) process(ctx context.Context, item *RetryQueueItem) {
	log := p.log.With("submission_id", item.SubmissionID, "trace_id", item.TraceID, "attempt", item.Attempts)

	if item.Analysis == nil {
		analysis, err := p.oracle.ScoreQuestion(ctx, item.Question, item.Topic)
		switch {
		case err == nil:
			item.Analysis = analysis
		case errs.IsRateLimited(err):
			log.WarnContext(ctx, "Oracle rate limited, moving item to retry queue", "error", err)
			p.scheduleRetry(ctx, item, errs.RetryAfter(err))
			return
		case errs.KindOf(err) == errs.KindMalformed:
			log.ErrorContext(ctx, "Oracle returned a malformed analysis, giving up", "error", err)
			p.markFailed(ctx, item, fmt.Sprintf("malformed analysis: %v", err))
			p.untrack(item.QueueItem)
			return
		default:
			log.ErrorContext(ctx, "Oracle call failed, leaving submission for reconciliation", "error", err)
			if err := p.store.TouchSubmission(ctx, item.SubmissionID); err != nil {
				log.WarnContext(ctx, "Failed to record failed attempt", "error", err)
			}
			p.untrack(item.QueueItem)
			return
		}
	}

	if !item.ScoreSaved {
		if err := p.saveScores(ctx, log, item); err != nil {
			log.ErrorContext(ctx, "Failed to save submission scores", "error", err)
			p.untrack(item.QueueItem)
			return
		}
		item.ScoreSaved = true
	}

	var limited bool
	retryAfter := 0
	stepFailed := func(step string, err error) {
		if errs.IsRateLimited(err) {
			limited = true
			retryAfter = max(retryAfter, errs.RetryAfter(err))
			log.WarnContext(ctx, "Telegram rate limited", "step", step, "error", err)
			return
		}
		log.ErrorContext(ctx, "Notification step failed", "step", step, "error", err)
	}

	if item.ForwardedMessageID == 0 {
		if err := p.forward(ctx, log, item); err != nil {
			stepFailed("forward", err)
		}
	}
	if !item.Replied && item.ForwardedMessageID != 0 {
		if err := p.reply(ctx, item); err != nil {
			stepFailed("reply", err)
		} else {
			item.Replied = true
		}
	}
	if !item.Reacted {
		if err := p.react(ctx, item); err != nil {
			stepFailed("react", err)
		} else {
			item.Reacted = true
		}
	}

	if limited {
		p.scheduleRetry(ctx, item, retryAfter)
		return
	}

	p.untrack(item.QueueItem)
	log.InfoContext(ctx, "Submission processed",
		"score", item.Analysis.Total(), "forwarded", item.ForwardedMessageID != 0,
		"replied", item.Replied, "reacted", item.Reacted)
}

func (p *Pipeline) saveScores(ctx context.Context, log *slog.Logger, item *RetryQueueItem) error {
	scores := item.Analysis.Scores()
	return retry.Do(
		func() error {
			return p.store.SaveSubmissionScores(ctx, item.SubmissionID, scores)
		},
		retry.Context(ctx),
		retry.Attempts(p.dbAttempts),
		retry.Delay(p.dbRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, database.ErrNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WarnContext(ctx, "Retrying score write", "attempt", n+1, "error", err)
		}),
	)
}

func (p *Pipeline) forward(ctx context.Context, log *slog.Logger, item *RetryQueueItem) error {
	msg, err := p.tg.ForwardMessage(ctx, &bot.ForwardMessageParams{
		ChatID:          p.tgCfg.StaffChatID,
		MessageThreadID: item.ThreadID,
		FromChatID:      item.ChatID,
		MessageID:       item.MessageID,
	})
	if err != nil {
		return err
	}
	item.ForwardedMessageID = msg.ID

	if err := p.store.SetSubmissionForwarded(ctx, item.SubmissionID, msg.ID); err != nil {
		log.WarnContext(ctx, "Failed to record forwarded message", "forwarded_message_id", msg.ID, "error", err)
	}
	return nil
}

func (p *Pipeline) reply(ctx context.Context, item *RetryQueueItem) error {
	text := fmt.Sprintf(p.msgFmt, item.Analysis.Total(), item.Analysis.Markdown())
	_, err := p.tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          p.tgCfg.StaffChatID,
		MessageThreadID: item.ThreadID,
		Text:            p.policy.RenderHTML(text),
		ParseMode:       models.ParseModeHTML,
		ReplyParameters: &models.ReplyParameters{MessageID: item.ForwardedMessageID},
	})
	return err
}

func (p *Pipeline) react(ctx context.Context, item *RetryQueueItem) error {
	_, err := p.tg.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    item.ChatID,
		MessageID: item.MessageID,
		Reaction:  telegram.Reaction(p.tgCfg.ReactionEmoji),
	})
	return err
}

func (p *Pipeline) markFailed(ctx context.Context, item *RetryQueueItem, reason string) {
	err := p.store.MarkSubmissionFailed(ctx, item.SubmissionID, reason)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// already scored, the failure only concerns notification
	case err != nil:
		p.log.ErrorContext(ctx, "Failed to mark submission failed", "submission_id", item.SubmissionID, "error", err)
	}
}
