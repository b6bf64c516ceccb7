// Package pipeline turns tagged community questions into scored, forwarded
// and acknowledged submissions. Work sits in an in-memory FIFO drained on a
// short interval; rate-limited items move to a retry queue with per-item
// exponential backoff.
//
// Both queues live in one process. Running two bot instances against the
// same database would score every question twice.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/gemini"
	"github.com/edgard/amabot/internal/sanitize"
)

// Store is the persistence the pipeline needs.
type Store interface {
	CreateSubmission(ctx context.Context, sub *database.Submission) error
	SaveSubmissionScores(ctx context.Context, id int64, scores database.Scores) error
	SetSubmissionForwarded(ctx context.Context, id int64, forwardedMessageID int) error
	MarkSubmissionFailed(ctx context.Context, id int64, reason string) error
	TouchSubmission(ctx context.Context, id int64) error
}

// Messenger is the Telegram surface the pipeline needs. Errors must be tagged
// with errs.KindRateLimited on 429 answers, as telegram.Client does.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	ForwardMessage(ctx context.Context, params *bot.ForwardMessageParams) (*models.Message, error)
	SetMessageReaction(ctx context.Context, params *bot.SetMessageReactionParams) (bool, error)
}

// QueueItem is one question waiting to be scored. It is never persisted;
// the placeholder Submission row is what survives a restart.
type QueueItem struct {
	TraceID      string
	SubmissionID int64
	AMAID        int64
	UserID       int64
	Username     string
	Question     string
	ChatID       int64
	MessageID    int
	Topic        string
	ThreadID     int
}

type itemKey struct {
	chatID    int64
	messageID int
}

func (q QueueItem) key() itemKey {
	return itemKey{chatID: q.ChatID, messageID: q.MessageID}
}

// RetryQueueItem is a QueueItem with retry bookkeeping. The analysis and the
// per-step progress carry over between attempts so finished steps never run twice.
type RetryQueueItem struct {
	QueueItem

	Attempts    int
	NextRetryAt time.Time
	Analysis    *gemini.Analysis

	ScoreSaved         bool
	ForwardedMessageID int
	Replied            bool
	Reacted            bool
}

// Deps holds the pipeline's collaborators.
type Deps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    Store
	Oracle   gemini.Client
	Telegram Messenger
	Policy   *sanitize.Policy
	Clock    clockwork.Clock
}

// Pipeline owns the ingestion queue and the retry queue.
type Pipeline struct {
	log    *slog.Logger
	cfg    config.PipelineConfig
	tgCfg  config.TelegramConfig
	msgFmt string

	store  Store
	oracle gemini.Client
	tg     Messenger
	policy *sanitize.Policy
	clock  clockwork.Clock

	dbAttempts   uint
	dbRetryDelay time.Duration

	mu      sync.Mutex
	queue   []QueueItem
	retries []*RetryQueueItem
	tracked map[itemKey]struct{}

	draining atomic.Bool
	retrying atomic.Bool

	schedMu   sync.Mutex
	scheduler gocron.Scheduler
}

// New creates a stopped pipeline.
func New(deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	policy := deps.Policy
	if policy == nil {
		policy = sanitize.NewTelegramPolicy()
	}

	return &Pipeline{
		log:          log.With("component", "pipeline"),
		cfg:          deps.Config.Pipeline,
		tgCfg:        deps.Config.Telegram,
		msgFmt:       deps.Config.Messages.AnalysisFmt,
		store:        deps.Store,
		oracle:       deps.Oracle,
		tg:           deps.Telegram,
		policy:       policy,
		clock:        clock,
		dbAttempts:   3,
		dbRetryDelay: 200 * time.Millisecond,
		tracked:      make(map[itemKey]struct{}),
	}
}

// Enqueue writes the placeholder Submission and appends the item to the
// queue. It never waits on the oracle. The returned item carries the new
// submission ID and trace ID.
func (p *Pipeline) Enqueue(ctx context.Context, item QueueItem) (QueueItem, error) {
	sub := &database.Submission{
		AMAID:     item.AMAID,
		UserID:    item.UserID,
		Username:  item.Username,
		ChatID:    item.ChatID,
		MessageID: item.MessageID,
		Question:  item.Question,
	}
	if err := p.store.CreateSubmission(ctx, sub); err != nil {
		return item, fmt.Errorf("failed to create submission placeholder: %w", err)
	}
	item.SubmissionID = sub.ID
	if item.TraceID == "" {
		item.TraceID = uuid.NewString()
	}

	p.mu.Lock()
	p.queue = append(p.queue, item)
	p.tracked[item.key()] = struct{}{}
	queued := len(p.queue)
	p.mu.Unlock()

	p.log.InfoContext(ctx, "Question enqueued",
		"submission_id", item.SubmissionID, "ama_id", item.AMAID, "user_id", item.UserID,
		"trace_id", item.TraceID, "queue_length", queued)
	return item, nil
}

// Requeue queues an item whose Submission already exists. It reports false
// when the same message is already queued, waiting for a retry or in flight.
func (p *Pipeline) Requeue(item QueueItem) bool {
	if item.SubmissionID == 0 {
		return false
	}
	if item.TraceID == "" {
		item.TraceID = uuid.NewString()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.tracked[item.key()]; busy {
		return false
	}
	p.queue = append(p.queue, item)
	p.tracked[item.key()] = struct{}{}
	return true
}

// Pending returns the lengths of the ingestion queue and the retry queue.
func (p *Pipeline) Pending() (queued, retrying int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue), len(p.retries)
}

// RetryQueue returns a snapshot of the retry queue.
func (p *Pipeline) RetryQueue() []RetryQueueItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RetryQueueItem, 0, len(p.retries))
	for _, r := range p.retries {
		out = append(out, *r)
	}
	return out
}

func (p *Pipeline) take(n int) []QueueItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > len(p.queue) {
		n = len(p.queue)
	}
	batch := make([]QueueItem, n)
	copy(batch, p.queue[:n])
	p.queue = p.queue[n:]
	return batch
}

func (p *Pipeline) untrack(item QueueItem) {
	p.mu.Lock()
	delete(p.tracked, item.key())
	p.mu.Unlock()
}

// DrainTick scores up to RateLimit items from the head of the queue, one
// after the other. A tick that starts while another is running is skipped.
func (p *Pipeline) DrainTick(ctx context.Context) {
	if !p.draining.CompareAndSwap(false, true) {
		p.log.DebugContext(ctx, "Drain already in progress, skipping tick")
		return
	}
	defer p.draining.Store(false)

	batch := p.take(p.cfg.RateLimit)
	if len(batch) == 0 {
		return
	}
	p.log.DebugContext(ctx, "Draining queue", "batch_size", len(batch))

	for i, item := range batch {
		if i > 0 && !p.pause(ctx) {
			p.putBack(batch[i:])
			return
		}
		p.processSafely(ctx, &RetryQueueItem{QueueItem: item})
	}
}

// putBack returns unprocessed items to the head of the queue in their original order.
func (p *Pipeline) putBack(items []QueueItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(append([]QueueItem{}, items...), p.queue...)
}

// pause waits ItemDelay between two items. It reports false when ctx ends first.
func (p *Pipeline) pause(ctx context.Context) bool {
	if p.cfg.ItemDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(p.cfg.ItemDelay):
		return true
	}
}

func (p *Pipeline) processSafely(ctx context.Context, item *RetryQueueItem) {
	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorContext(ctx, "Panic while processing submission", "submission_id", item.SubmissionID, "panic", r)
			p.untrack(item.QueueItem)
		}
	}()
	p.process(ctx, item)
}

// Start runs the drain and retry ticks until Stop is called or ctx ends.
func (p *Pipeline) Start(ctx context.Context) error {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	if p.scheduler != nil {
		return errors.New("pipeline is already running")
	}

	s, err := gocron.NewScheduler(
		gocron.WithClock(p.clock),
		gocron.WithLogger(p.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline scheduler: %w", err)
	}

	jobs := []struct {
		name     string
		interval time.Duration
		tick     func(context.Context)
	}{
		{"pipeline_drain", p.cfg.DrainInterval, p.DrainTick},
		{"pipeline_retry", p.cfg.RetryInterval, p.RetryTick},
	}
	for _, j := range jobs {
		tick := j.tick
		_, err := s.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() { tick(ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	s.Start()
	p.scheduler = s
	p.log.Info("Pipeline started",
		"drain_interval", p.cfg.DrainInterval, "retry_interval", p.cfg.RetryInterval, "rate_limit", p.cfg.RateLimit)
	return nil
}

// Stop halts both ticks and waits for a running tick to finish. Queued
// items are dropped; their Submissions stay unprocessed for reconciliation.
func (p *Pipeline) Stop() error {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	if p.scheduler == nil {
		return nil
	}
	err := p.scheduler.Shutdown()
	p.scheduler = nil

	queued, retrying := p.Pending()
	p.log.Info("Pipeline stopped", "queued", queued, "retrying", retrying)
	if err != nil {
		return fmt.Errorf("failed to stop pipeline scheduler: %w", err)
	}
	return nil
}
