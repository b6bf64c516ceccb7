package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Backoff returns min(initial * 2^attempts * max(retryAfter, 1), ceiling).
func Backoff(initial, ceiling time.Duration, attempts, retryAfter int) time.Duration {
	if retryAfter < 1 {
		retryAfter = 1
	}
	if attempts < 0 {
		attempts = 0
	}
	if initial <= 0 || initial > ceiling/time.Duration(retryAfter) {
		return ceiling
	}

	d := initial * time.Duration(retryAfter)
	for range attempts {
		if d > ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	return min(d, ceiling)
}

// scheduleRetry puts item on the retry queue, replacing any entry for the
// same message, and pushes its next attempt out exponentially.
func (p *Pipeline) scheduleRetry(ctx context.Context, item *RetryQueueItem, retryAfter int) {
	item.Attempts++
	delay := Backoff(p.cfg.InitialRetryDelay, p.cfg.MaxRetryDelay, item.Attempts, retryAfter)
	item.NextRetryAt = p.clock.Now().Add(delay)

	p.mu.Lock()
	replaced := false
	for i, r := range p.retries {
		if r.key() == item.key() {
			p.retries[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		p.retries = append(p.retries, item)
	}
	p.tracked[item.key()] = struct{}{}
	p.mu.Unlock()

	p.log.InfoContext(ctx, "Item scheduled for retry",
		"submission_id", item.SubmissionID, "attempts", item.Attempts,
		"retry_after_hint", retryAfter, "delay", delay, "next_retry_at", item.NextRetryAt)
}

// partition splits the retry queue into due and exhausted items and keeps
// the rest waiting.
func (p *Pipeline) partition(now time.Time) (due, exhausted []*RetryQueueItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiting := p.retries[:0:0]
	for _, r := range p.retries {
		switch {
		case r.Attempts > p.cfg.MaxRetries:
			exhausted = append(exhausted, r)
			delete(p.tracked, r.key())
		case !r.NextRetryAt.After(now):
			due = append(due, r)
		default:
			waiting = append(waiting, r)
		}
	}
	p.retries = waiting
	return due, exhausted
}

// RetryTick drops exhausted items and re-runs due ones. Steps that already
// succeeded on an earlier attempt are skipped.
func (p *Pipeline) RetryTick(ctx context.Context) {
	if !p.retrying.CompareAndSwap(false, true) {
		p.log.DebugContext(ctx, "Retry pass already in progress, skipping tick")
		return
	}
	defer p.retrying.Store(false)

	due, exhausted := p.partition(p.clock.Now())

	for _, item := range exhausted {
		p.log.WarnContext(ctx, "Dropping item after max retries",
			"submission_id", item.SubmissionID, "attempts", item.Attempts, "max_retries", p.cfg.MaxRetries,
			"scored", item.ScoreSaved, "forwarded", item.ForwardedMessageID != 0)
		p.markFailed(ctx, item, fmt.Sprintf("gave up after %d attempts", item.Attempts))
	}

	for i, item := range due {
		if i > 0 && !p.pause(ctx) {
			p.restore(due[i:])
			return
		}
		p.processSafely(ctx, item)
	}
}

// restore puts due items that were not attempted back on the retry queue.
func (p *Pipeline) restore(items []*RetryQueueItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, items...)
}
