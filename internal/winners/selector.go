package winners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
)

// Store is the persistence the selection flow needs.
type Store interface {
	GetAMA(ctx context.Context, id int64) (*database.AMA, error)
	GetScoredSubmissions(ctx context.Context, amaID int64) ([]*database.Submission, error)
	ConfirmWinners(ctx context.Context, amaID int64, winners []*database.Winner) error
	GetWinners(ctx context.Context, amaID int64) ([]*database.Winner, error)
	CreateSchedule(ctx context.Context, schedule *database.Schedule) error
}

// Selector runs the shortlist, discard, reset, confirm and cancel steps.
// Every call takes the operator's state explicitly.
type Selector struct {
	log          *slog.Logger
	store        Store
	clock        clockwork.Clock
	displayCount int
	layout       string
	location     *time.Location
}

// NewSelector creates a Selector. A nil clock means the real clock.
func NewSelector(logger *slog.Logger, cfg config.WinnersConfig, store Store, clock clockwork.Clock) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Selector{
		log:          logger.With("component", "winner_selector"),
		store:        store,
		clock:        clock,
		displayCount: cfg.DisplayCount,
		layout:       cfg.ScheduleLayout,
		location:     loc,
	}
}

// Layout returns the schedule time layout and its time zone name.
func (s *Selector) Layout() (string, string) {
	return s.layout, s.location.String()
}

func (s *Selector) load(ctx context.Context, amaID int64) (*database.AMA, []Candidate, error) {
	ama, err := s.store.GetAMA(ctx, amaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ama %d: %w", amaID, err)
	}
	if ama == nil {
		return nil, nil, ErrAMANotFound
	}
	subs, err := s.store.GetScoredSubmissions(ctx, amaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load scores of ama %d: %w", amaID, err)
	}
	return ama, Rank(subs), nil
}

func (s *Selector) shortlist(ama *database.AMA, ranked []Candidate, discarded []int64) *Shortlist {
	eligible := without(ranked, discarded)
	shown := max(s.displayCount, ama.WinnerCount)
	if shown > len(eligible) {
		shown = len(eligible)
	}
	return &Shortlist{
		AMA:       ama,
		Entries:   eligible[:shown],
		Eligible:  len(eligible),
		Discarded: len(ranked) - len(eligible),
	}
}

// Open builds the shortlist of amaID with the operator's current discards.
func (s *Selector) Open(ctx context.Context, st *OperatorState, amaID int64) (*Shortlist, error) {
	ama, ranked, err := s.load(ctx, amaID)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, ErrNoScores
	}
	s.log.InfoContext(ctx, "Shortlist opened", "ama_id", amaID, "participants", len(ranked))
	return s.shortlist(ama, ranked, st.Discarded(amaID)), nil
}

// Discard removes userID from the shortlist. Discarding the same participant
// twice reports already=true and changes nothing.
func (s *Selector) Discard(ctx context.Context, st *OperatorState, amaID, userID int64) (list *Shortlist, already bool, err error) {
	ama, ranked, err := s.load(ctx, amaID)
	if err != nil {
		return nil, false, err
	}
	if len(ranked) == 0 {
		return nil, false, ErrNoScores
	}
	if !contains(ranked, userID) {
		return nil, false, ErrUnknownParticipant
	}

	already = st.discard(amaID, userID)
	if !already {
		s.log.InfoContext(ctx, "Participant discarded", "ama_id", amaID, "user_id", userID)
	}
	return s.shortlist(ama, ranked, st.Discarded(amaID)), already, nil
}

// Reset forgets the operator's discards for amaID.
func (s *Selector) Reset(ctx context.Context, st *OperatorState, amaID int64) (*Shortlist, error) {
	st.reset(amaID)
	return s.Open(ctx, st, amaID)
}

// Confirm persists the top WinnerCount eligible participants with ranks
// 1..N, replacing any earlier winners, and ends the session.
func (s *Selector) Confirm(ctx context.Context, st *OperatorState, amaID int64) ([]*database.Winner, error) {
	ama, ranked, err := s.load(ctx, amaID)
	if err != nil {
		return nil, err
	}

	eligible := without(ranked, st.Discarded(amaID))
	n := min(ama.WinnerCount, len(eligible))
	if n <= 0 {
		return nil, ErrNoEligible
	}

	winners := make([]*database.Winner, 0, n)
	for i, c := range eligible[:n] {
		winners = append(winners, &database.Winner{
			AMAID:        amaID,
			UserID:       c.UserID,
			SubmissionID: c.SubmissionID,
			Rank:         i + 1,
			Username:     c.Username,
			Score:        c.Score,
			Question:     c.Question,
		})
	}

	if err := s.store.ConfirmWinners(ctx, amaID, winners); err != nil {
		return nil, fmt.Errorf("failed to confirm winners of ama %d: %w", amaID, err)
	}

	st.reset(amaID)
	st.setAwaitingBroadcast(amaID, true)
	s.log.InfoContext(ctx, "Winners confirmed", "ama_id", amaID, "count", len(winners), "eligible", len(eligible))
	return winners, nil
}

// Cancel drops the operator's state for amaID. Nothing persisted changes.
func (s *Selector) Cancel(st *OperatorState, amaID int64) {
	st.Forget(amaID)
	s.log.Info("Selection cancelled", "ama_id", amaID)
}

// ParseScheduleTime reads text in the configured layout and time zone and
// checks it is strictly after now.
func (s *Selector) ParseScheduleTime(text string) (time.Time, error) {
	at, err := time.ParseInLocation(s.layout, strings.TrimSpace(text), s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidTime, err)
	}
	if !at.After(s.clock.Now()) {
		return time.Time{}, ErrNotFuture
	}
	return at, nil
}

// ScheduleBroadcast stores a deferred announcement of amaID's winners.
func (s *Selector) ScheduleBroadcast(ctx context.Context, st *OperatorState, amaID int64, text string) (time.Time, error) {
	at, err := s.ParseScheduleTime(text)
	if err != nil {
		return time.Time{}, err
	}

	winners, err := s.store.GetWinners(ctx, amaID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load winners of ama %d: %w", amaID, err)
	}
	if len(winners) == 0 {
		return time.Time{}, ErrNotConfirmed
	}

	sched := &database.Schedule{AMAID: amaID, Type: database.ScheduleTypeWinner, ScheduledAt: at.UTC()}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return time.Time{}, fmt.Errorf("failed to schedule announcement of ama %d: %w", amaID, err)
	}

	st.Forget(amaID)
	s.log.InfoContext(ctx, "Announcement scheduled", "ama_id", amaID, "schedule_id", sched.ID, "at", at)
	return at, nil
}
