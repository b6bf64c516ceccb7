// Package bot implements the core bot functionality, lifecycle management,
// and component orchestration for the AMA bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until its context ends.
type Listener interface {
	Start(ctx context.Context)
}

// Worker is a background component with an explicit lifecycle, such as the
// scoring pipeline or the task scheduler.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	pipeline  Worker
	scheduler Worker
}

var _ Listener = (*tgbot.Bot)(nil)

// NewBot creates the orchestrator of the Telegram listener, the scoring
// pipeline and the task scheduler.
func NewBot(logger *slog.Logger, listener Listener, pipeline, scheduler Worker) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		pipeline:  pipeline,
		scheduler: scheduler,
	}
}

// Run starts the bot and all its components, handling graceful shutdown on context cancellation.
// It returns an error if any component fails during startup or execution.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error { return b.runWorker(gCtx, "pipeline", b.pipeline) })
	g.Go(func() error { return b.runWorker(gCtx, "scheduler", b.scheduler) })

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// runWorker starts w, waits for shutdown and stops it. Queued work that has
// not been processed is left to the reconciliation task after a restart.
func (b *Bot) runWorker(ctx context.Context, name string, w Worker) error {
	b.logger.Info("Starting worker", "worker", name)
	if err := w.Start(ctx); err != nil {
		b.logger.Error("Failed to start worker", "worker", name, "error", err)
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	<-ctx.Done()
	b.logger.Info("Shutdown signal received, stopping worker", "worker", name)

	if err := w.Stop(); err != nil {
		b.logger.Error("Error stopping worker", "worker", name, "error", err)
	}
	return nil
}
