package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrStatusRegression is returned when an AMA status update would move backwards.
	ErrStatusRegression = errors.New("ama status cannot move backwards")
	// ErrNotFound is returned by updates that target a missing row.
	ErrNotFound = errors.New("record not found")
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// CreateAMA inserts a new session and sets its ID.
	CreateAMA(ctx context.Context, ama *AMA) error

	// GetAMA retrieves a session by ID. Returns nil, nil if not found.
	GetAMA(ctx context.Context, id int64) (*AMA, error)

	// GetActiveAMA retrieves the active session for a language and session number.
	// Returns nil, nil if none is active.
	GetActiveAMA(ctx context.Context, language string, sessionNo int) (*AMA, error)

	// ListAMAs returns the most recent sessions, newest first.
	ListAMAs(ctx context.Context, limit int) ([]*AMA, error)

	// UpdateAMAStatus moves a session forward. Same-status updates are no-ops.
	UpdateAMAStatus(ctx context.Context, id int64, status AMAStatus) error

	// SetAMAThread records the staff forum thread used for a session.
	SetAMAThread(ctx context.Context, id int64, threadID int) error

	// CreateSubmission inserts the unscored placeholder row for a question.
	CreateSubmission(ctx context.Context, sub *Submission) error

	// GetSubmission retrieves a submission by ID. Returns nil, nil if not found.
	GetSubmission(ctx context.Context, id int64) (*Submission, error)

	// SaveSubmissionScores writes the scores and marks the submission processed.
	SaveSubmissionScores(ctx context.Context, id int64, scores Scores) error

	// SetSubmissionForwarded records the staff-chat copy of the question.
	SetSubmissionForwarded(ctx context.Context, id int64, forwardedMessageID int) error

	// MarkSubmissionFailed marks a submission processed without scores.
	MarkSubmissionFailed(ctx context.Context, id int64, reason string) error

	// TouchSubmission records a failed attempt on an unprocessed submission.
	TouchSubmission(ctx context.Context, id int64) error

	// GetUnprocessedSubmissions returns unprocessed rows created in
	// (newerThan, olderThan), least recently attempted first.
	GetUnprocessedSubmissions(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]*Submission, error)

	// GetScoredSubmissions returns every scored submission of a session in insertion order.
	GetScoredSubmissions(ctx context.Context, amaID int64) ([]*Submission, error)

	// ConfirmWinners ends the session and replaces its winners in one transaction.
	ConfirmWinners(ctx context.Context, amaID int64, winners []*Winner) error

	// GetWinners returns the winners of a session ordered by rank.
	GetWinners(ctx context.Context, amaID int64) ([]*Winner, error)

	// CreateSchedule inserts a deferred action.
	CreateSchedule(ctx context.Context, schedule *Schedule) error

	// GetDueSchedules returns schedules at or before now, oldest first.
	GetDueSchedules(ctx context.Context, now time.Time, limit int) ([]*Schedule, error)

	// DeleteSchedule removes a consumed schedule.
	DeleteSchedule(ctx context.Context, id int64) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
