package database

import (
	"context"
	"fmt"
	"time"
)

// CreateSchedule inserts a deferred action.
func (s *sqlxStore) CreateSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return fmt.Errorf("cannot save nil schedule")
	}
	if schedule.AMAID == 0 || schedule.Type == "" {
		return fmt.Errorf("schedule must have an ama_id and a type")
	}
	if schedule.ScheduledAt.IsZero() {
		return fmt.Errorf("schedule must have a time")
	}

	schedule.CreatedAt = time.Now().UTC()
	schedule.ScheduledAt = schedule.ScheduledAt.UTC()

	query := `
        INSERT INTO schedules (ama_id, type, scheduled_at, created_at)
        VALUES (:ama_id, :type, :scheduled_at, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving schedule", "ama_id", schedule.AMAID, "type", schedule.Type, "error", err)
		return fmt.Errorf("failed to save schedule for ama %d: %w", schedule.AMAID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read schedule id: %w", err)
	}
	schedule.ID = id
	return nil
}

// GetDueSchedules returns schedules at or before now, oldest first.
func (s *sqlxStore) GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]*Schedule, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT id, ama_id, type, scheduled_at, created_at
        FROM schedules
        WHERE scheduled_at <= ?
        ORDER BY scheduled_at ASC, id ASC
        LIMIT ?;
    `
	var schedules []*Schedule
	if err := s.db.SelectContext(ctx, &schedules, query, now.UTC(), limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting due schedules", "error", err)
		return nil, fmt.Errorf("failed to get due schedules: %w", err)
	}
	return schedules, nil
}

// DeleteSchedule removes a consumed schedule.
func (s *sqlxStore) DeleteSchedule(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?;`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting schedule", "schedule_id", id, "error", err)
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	return nil
}
