package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const amaColumns = `id, session_no, language, topic, reward, winner_count, status, thread_id, scheduled_at, created_at, updated_at`

// CreateAMA inserts a new session. Status defaults to pending.
func (s *sqlxStore) CreateAMA(ctx context.Context, ama *AMA) error {
	if ama == nil {
		return fmt.Errorf("cannot save nil ama")
	}
	if ama.SessionNo <= 0 {
		return fmt.Errorf("ama must have a positive session number")
	}
	if ama.Language == "" {
		return fmt.Errorf("ama must have a language")
	}
	if ama.WinnerCount <= 0 {
		return fmt.Errorf("ama must have a positive winner count")
	}
	if ama.Status == "" {
		ama.Status = StatusPending
	}
	if !ama.Status.Valid() {
		return fmt.Errorf("unknown ama status %q", ama.Status)
	}

	now := time.Now().UTC()
	ama.CreatedAt = now
	ama.UpdatedAt = now

	query := `
        INSERT INTO amas (session_no, language, topic, reward, winner_count, status, thread_id, scheduled_at, created_at, updated_at)
        VALUES (:session_no, :language, :topic, :reward, :winner_count, :status, :thread_id, :scheduled_at, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, ama)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving ama", "session_no", ama.SessionNo, "language", ama.Language, "error", err)
		return fmt.Errorf("failed to save ama %d/%s: %w", ama.SessionNo, ama.Language, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ama id: %w", err)
	}
	ama.ID = id

	s.logger.DebugContext(ctx, "AMA saved", "ama_id", ama.ID, "session_no", ama.SessionNo, "language", ama.Language)
	return nil
}

// GetAMA retrieves a session by ID. Returns nil, nil if not found.
func (s *sqlxStore) GetAMA(ctx context.Context, id int64) (*AMA, error) {
	var ama AMA
	err := s.db.GetContext(ctx, &ama, `SELECT `+amaColumns+` FROM amas WHERE id = ?;`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting ama", "ama_id", id, "error", err)
		return nil, fmt.Errorf("failed to get ama %d: %w", id, err)
	}
	return &ama, nil
}

// GetActiveAMA retrieves the active session for a language and session number.
func (s *sqlxStore) GetActiveAMA(ctx context.Context, language string, sessionNo int) (*AMA, error) {
	var ama AMA
	query := `SELECT ` + amaColumns + ` FROM amas WHERE language = ? AND session_no = ? AND status = ? LIMIT 1;`
	err := s.db.GetContext(ctx, &ama, query, language, sessionNo, StatusActive)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting active ama", "language", language, "session_no", sessionNo, "error", err)
		return nil, fmt.Errorf("failed to get active ama %d/%s: %w", sessionNo, language, err)
	}
	return &ama, nil
}

// ListAMAs returns the most recent sessions, newest first.
func (s *sqlxStore) ListAMAs(ctx context.Context, limit int) ([]*AMA, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var amas []*AMA
	err := s.db.SelectContext(ctx, &amas, `SELECT `+amaColumns+` FROM amas ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing amas", "error", err)
		return nil, fmt.Errorf("failed to list amas: %w", err)
	}
	return amas, nil
}

// UpdateAMAStatus moves a session forward. Regressions return ErrStatusRegression.
func (s *sqlxStore) UpdateAMAStatus(ctx context.Context, id int64, status AMAStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown ama status %q", status)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return updateStatusTx(ctx, tx, id, status)
	})
}

func updateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status AMAStatus) error {
	var current AMAStatus
	err := tx.GetContext(ctx, &current, `SELECT status FROM amas WHERE id = ?;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ama %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read ama %d status: %w", id, err)
	}

	if current == status {
		return nil
	}
	if !current.CanMoveTo(status) {
		return fmt.Errorf("ama %d from %s to %s: %w", id, current, status, ErrStatusRegression)
	}

	_, err = tx.ExecContext(ctx, `UPDATE amas SET status = ?, updated_at = ? WHERE id = ?;`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update ama %d status: %w", id, err)
	}
	return nil
}

// SetAMAThread records the staff forum thread used for a session.
func (s *sqlxStore) SetAMAThread(ctx context.Context, id int64, threadID int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE amas SET thread_id = ?, updated_at = ? WHERE id = ?;`, threadID, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting ama thread", "ama_id", id, "error", err)
		return fmt.Errorf("failed to set thread for ama %d: %w", id, err)
	}
	return checkAffected(result)
}
