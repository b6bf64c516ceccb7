package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const submissionColumns = `id, ama_id, user_id, username, chat_id, message_id, question,
        originality, clarity, engagement, relevance, language_score, score,
        processed, failure_reason, forwarded_message_id, analyzed_at, created_at, updated_at`

// CreateSubmission inserts the unscored placeholder row for a question.
// A second insert for the same chat and message fails on the unique index.
func (s *sqlxStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("cannot save nil submission")
	}
	if sub.AMAID == 0 {
		return fmt.Errorf("submission must have a non-zero ama_id")
	}
	if sub.UserID == 0 {
		return fmt.Errorf("submission must have a non-zero user_id")
	}
	if sub.ChatID == 0 || sub.MessageID == 0 {
		return fmt.Errorf("submission must reference a chat message")
	}
	if sub.Question == "" {
		return fmt.Errorf("submission must have non-empty question")
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.Processed = false

	query := `
        INSERT INTO submissions (ama_id, user_id, username, chat_id, message_id, question, processed, created_at, updated_at)
        VALUES (:ama_id, :user_id, :username, :chat_id, :message_id, :question, :processed, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving submission",
			"ama_id", sub.AMAID, "chat_id", sub.ChatID, "message_id", sub.MessageID, "error", err)
		return fmt.Errorf("failed to save submission (chat %d, message %d): %w", sub.ChatID, sub.MessageID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read submission id: %w", err)
	}
	sub.ID = id

	s.logger.DebugContext(ctx, "Submission saved", "submission_id", sub.ID, "ama_id", sub.AMAID, "user_id", sub.UserID)
	return nil
}

// GetSubmission retrieves a submission by ID. Returns nil, nil if not found.
func (s *sqlxStore) GetSubmission(ctx context.Context, id int64) (*Submission, error) {
	var sub Submission
	err := s.db.GetContext(ctx, &sub, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?;`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting submission", "submission_id", id, "error", err)
		return nil, fmt.Errorf("failed to get submission %d: %w", id, err)
	}
	return &sub, nil
}

// SaveSubmissionScores writes the scores and marks the submission processed.
func (s *sqlxStore) SaveSubmissionScores(ctx context.Context, id int64, scores Scores) error {
	now := time.Now().UTC()
	query := `
        UPDATE submissions
        SET originality = ?, clarity = ?, engagement = ?, relevance = ?, language_score = ?, score = ?,
            processed = 1, failure_reason = '', analyzed_at = ?, updated_at = ?
        WHERE id = ?;
    `
	result, err := s.db.ExecContext(ctx, query,
		scores.Originality, scores.Clarity, scores.Engagement, scores.Relevance, scores.Language, scores.Total,
		now, now, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving submission scores", "submission_id", id, "error", err)
		return fmt.Errorf("failed to save scores for submission %d: %w", id, err)
	}
	return checkAffected(result)
}

// SetSubmissionForwarded records the staff-chat copy of the question.
func (s *sqlxStore) SetSubmissionForwarded(ctx context.Context, id int64, forwardedMessageID int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET forwarded_message_id = ?, updated_at = ? WHERE id = ?;`,
		forwardedMessageID, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving forwarded message id", "submission_id", id, "error", err)
		return fmt.Errorf("failed to set forwarded message for submission %d: %w", id, err)
	}
	return checkAffected(result)
}

// MarkSubmissionFailed marks a submission processed without scores so the
// reconciliation scan stops picking it up.
func (s *sqlxStore) MarkSubmissionFailed(ctx context.Context, id int64, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET processed = 1, failure_reason = ?, updated_at = ? WHERE id = ? AND analyzed_at IS NULL;`,
		reason, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking submission failed", "submission_id", id, "error", err)
		return fmt.Errorf("failed to mark submission %d failed: %w", id, err)
	}
	return checkAffected(result)
}

// TouchSubmission bumps updated_at of an unprocessed submission so the
// reconciliation scan moves it behind rows that were never attempted.
func (s *sqlxStore) TouchSubmission(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET updated_at = ? WHERE id = ? AND processed = 0;`,
		time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error touching submission", "submission_id", id, "error", err)
		return fmt.Errorf("failed to touch submission %d: %w", id, err)
	}
	return checkAffected(result)
}

// GetUnprocessedSubmissions returns unprocessed rows created after newerThan
// and before olderThan, least recently attempted first.
func (s *sqlxStore) GetUnprocessedSubmissions(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + submissionColumns + `
        FROM submissions
        WHERE processed = 0 AND created_at < ? AND created_at > ?
        ORDER BY updated_at ASC, id ASC
        LIMIT ?;`

	var subs []*Submission
	if err := s.db.SelectContext(ctx, &subs, query, olderThan.UTC(), newerThan.UTC(), limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting unprocessed submissions", "error", err)
		return nil, fmt.Errorf("failed to get unprocessed submissions: %w", err)
	}
	return subs, nil
}

// GetScoredSubmissions returns every scored submission of a session in insertion order.
func (s *sqlxStore) GetScoredSubmissions(ctx context.Context, amaID int64) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + `
        FROM submissions
        WHERE ama_id = ? AND analyzed_at IS NOT NULL
        ORDER BY id ASC;`

	var subs []*Submission
	if err := s.db.SelectContext(ctx, &subs, query, amaID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting scored submissions", "ama_id", amaID, "error", err)
		return nil, fmt.Errorf("failed to get scored submissions for ama %d: %w", amaID, err)
	}
	return subs, nil
}
