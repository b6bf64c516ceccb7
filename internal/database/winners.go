package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ConfirmWinners ends the session and replaces its winners in one transaction.
// An empty winners slice is rejected so a confirmation never wipes results.
func (s *sqlxStore) ConfirmWinners(ctx context.Context, amaID int64, winners []*Winner) error {
	if len(winners) == 0 {
		return fmt.Errorf("cannot confirm ama %d with no winners", amaID)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateStatusTx(ctx, tx, amaID, StatusEnded); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM winners WHERE ama_id = ?;`, amaID); err != nil {
			return fmt.Errorf("failed to clear winners for ama %d: %w", amaID, err)
		}

		now := time.Now().UTC()
		query := `
            INSERT INTO winners (ama_id, user_id, submission_id, rank, created_at)
            VALUES (:ama_id, :user_id, :submission_id, :rank, :created_at);
        `
		for _, w := range winners {
			w.AMAID = amaID
			w.CreatedAt = now
			if _, err := tx.NamedExecContext(ctx, query, w); err != nil {
				return fmt.Errorf("failed to insert winner %d for ama %d: %w", w.UserID, amaID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to confirm winners", "ama_id", amaID, "error", err)
		return err
	}

	s.logger.InfoContext(ctx, "Winners confirmed", "ama_id", amaID, "count", len(winners))
	return nil
}

// GetWinners returns the winners of a session ordered by rank.
func (s *sqlxStore) GetWinners(ctx context.Context, amaID int64) ([]*Winner, error) {
	query := `
        SELECT w.id, w.ama_id, w.user_id, w.submission_id, w.rank, w.created_at,
               s.username, s.score, s.question
        FROM winners w
        JOIN submissions s ON s.id = w.submission_id
        WHERE w.ama_id = ?
        ORDER BY w.rank ASC;
    `
	var winners []*Winner
	if err := s.db.SelectContext(ctx, &winners, query, amaID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting winners", "ama_id", amaID, "error", err)
		return nil, fmt.Errorf("failed to get winners for ama %d: %w", amaID, err)
	}
	return winners, nil
}
