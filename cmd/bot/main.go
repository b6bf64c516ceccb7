// Package main contains the entrypoint for the AMA bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/bot"
	"github.com/edgard/amabot/internal/bot/handlers"
	"github.com/edgard/amabot/internal/bot/tasks"
	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/gemini"
	"github.com/edgard/amabot/internal/logger"
	"github.com/edgard/amabot/internal/pipeline"
	"github.com/edgard/amabot/internal/sanitize"
	"github.com/edgard/amabot/internal/telegram"
	"github.com/edgard/amabot/internal/winners"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	oracle, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	clock := clockwork.NewRealClock()

	// The bot takes its default handler at construction, before the client
	// the handler sends through exists. Updates only flow after Run.
	var questions tgbot.HandlerFunc
	defaultHandler := func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		questions(ctx, b, update)
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(defaultHandler),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	client := telegram.NewClient(tg)
	scorer := pipeline.New(pipeline.Deps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Oracle:   oracle,
		Telegram: client,
		Policy:   sanitize.NewTelegramPolicy(),
		Clock:    clock,
	})
	broadcaster := winners.NewBroadcaster(log, cfg, store, client)

	hDeps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Store:       store,
		Telegram:    client,
		Pipeline:    scorer,
		Selector:    winners.NewSelector(log, cfg.Winners, store, clock),
		Broadcaster: broadcaster,
		Sessions:    winners.NewSessions(),
	}
	questions = handlers.NewQuestionHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:      log,
		Store:       store,
		Config:      cfg,
		Pipeline:    scorer,
		Broadcaster: broadcaster,
		Clock:       clock,
	}
	sched, err := bot.NewScheduler(log, clock, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, scorer, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	if queued, retrying := scorer.Pending(); queued+retrying > 0 {
		log.Warn("Unscored questions left for reconciliation", "queued", queued, "retrying", retrying)
	}
	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
