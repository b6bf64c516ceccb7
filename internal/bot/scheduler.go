package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/bot/tasks"
	"github.com/edgard/amabot/internal/config"
)

// Scheduler runs the registered tasks on their configured cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	clock     clockwork.Clock
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a stopped scheduler. A nil clock means the real clock.
func NewScheduler(logger *slog.Logger, clock clockwork.Clock, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		clock:     clock,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules every enabled task and starts ticking. Tasks run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	var taskConfigs map[string]config.TaskConfig
	if s.cfg != nil {
		taskConfigs = s.cfg.Tasks
	}
	if len(taskConfigs) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}

	scheduledCount := 0
	for taskName, taskConfig := range taskConfigs {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(func() { s.wrap(ctx, taskName, taskFunc) }),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

func (s *Scheduler) wrap(ctx context.Context, name string, task tasks.ScheduledTaskFunc) {
	s.logger.DebugContext(ctx, "Running scheduled task", "task_name", name)
	startTime := s.clock.Now()
	if err := task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.DebugContext(ctx, "Finished scheduled task", "task_name", name, "duration", s.clock.Since(startTime))
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
