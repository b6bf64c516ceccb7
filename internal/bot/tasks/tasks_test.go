package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/errs"
	"github.com/edgard/amabot/internal/pipeline"
	"github.com/edgard/amabot/internal/winners"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	database.Store

	amas      map[int64]*database.AMA
	subs      []*database.Submission
	subsErr   error
	schedules []*database.Schedule
	deleted   []int64
	vacuumErr error

	olderThan, newerThan time.Time
	limit                int
}

func (s *fakeStore) RunSQLMaintenance(context.Context) error { return s.vacuumErr }

func (s *fakeStore) GetAMA(_ context.Context, id int64) (*database.AMA, error) {
	return s.amas[id], nil
}

func (s *fakeStore) GetUnprocessedSubmissions(_ context.Context, olderThan, newerThan time.Time, limit int) ([]*database.Submission, error) {
	s.olderThan, s.newerThan, s.limit = olderThan, newerThan, limit
	return s.subs, s.subsErr
}

func (s *fakeStore) GetDueSchedules(_ context.Context, at time.Time, limit int) ([]*database.Schedule, error) {
	var due []*database.Schedule
	for _, sched := range s.schedules {
		if !sched.ScheduledAt.After(at) && len(due) < limit {
			due = append(due, sched)
		}
	}
	return due, nil
}

func (s *fakeStore) DeleteSchedule(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeRequeuer struct {
	busy  map[int64]bool
	items []pipeline.QueueItem
}

func (f *fakeRequeuer) Requeue(item pipeline.QueueItem) bool {
	f.items = append(f.items, item)
	return !f.busy[item.SubmissionID]
}

// fakeAnnouncer fails the AMAs listed in errs.
type fakeAnnouncer struct {
	errs  map[int64]error
	calls []int64
}

func (f *fakeAnnouncer) Broadcast(_ context.Context, amaID int64) error {
	f.calls = append(f.calls, amaID)
	return f.errs[amaID]
}

func testDeps(store *fakeStore) TaskDeps {
	return TaskDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		Config: &config.Config{Pipeline: config.PipelineConfig{
			ReconcileAfter:  5 * time.Minute,
			ReconcileWindow: 24 * time.Hour,
			ReconcileBatch:  50,
		}},
		Pipeline:    &fakeRequeuer{},
		Broadcaster: &fakeAnnouncer{},
		Clock:       clockwork.NewFakeClockAt(now),
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	tasks := RegisterAllTasks(testDeps(&fakeStore{}))
	for _, name := range []string{"sql_maintenance", "submission_reconcile", "winner_dispatch"} {
		if tasks[name] == nil {
			t.Errorf("task %q not registered", name)
		}
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{vacuumErr: errors.New("database is locked")}
	err := newSQLMaintenanceTask(testDeps(store))(context.Background())
	if err == nil || !errors.Is(err, store.vacuumErr) {
		t.Errorf("task error = %v, want wrapped vacuum error", err)
	}
}

func TestSubmissionReconcileTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		amas: map[int64]*database.AMA{1: {ID: 1, Topic: "Go", ThreadID: 55}},
		subs: []*database.Submission{
			{ID: 1, AMAID: 1, UserID: 101, Username: "alice", ChatID: -2001, MessageID: 10, Question: "q1"},
			{ID: 2, AMAID: 1, UserID: 102, ChatID: -2001, MessageID: 11, Question: "q2"},
			{ID: 3, AMAID: 9, UserID: 103, ChatID: -2001, MessageID: 12, Question: "q3"},
		},
	}
	deps := testDeps(store)
	requeuer := &fakeRequeuer{busy: map[int64]bool{2: true}}
	deps.Pipeline = requeuer

	if err := newSubmissionReconcileTask(deps)(context.Background()); err != nil {
		t.Fatalf("task error = %v", err)
	}

	if !store.olderThan.Equal(now.Add(-5*time.Minute)) || !store.newerThan.Equal(now.Add(-24*time.Hour)) || store.limit != 50 {
		t.Errorf("window = (%v, %v) limit %d", store.newerThan, store.olderThan, store.limit)
	}
	if len(requeuer.items) != 2 {
		t.Fatalf("requeued %d items, want the two with a known AMA", len(requeuer.items))
	}
	want := pipeline.QueueItem{
		SubmissionID: 1, AMAID: 1, UserID: 101, Username: "alice", Question: "q1",
		ChatID: -2001, MessageID: 10, Topic: "Go", ThreadID: 55,
	}
	if requeuer.items[0] != want {
		t.Errorf("requeued %+v, want %+v", requeuer.items[0], want)
	}
}

func TestSubmissionReconcileTaskStoreError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{subsErr: errors.New("disk I/O error")}
	if err := newSubmissionReconcileTask(testDeps(store))(context.Background()); !errors.Is(err, store.subsErr) {
		t.Errorf("task error = %v, want store error", err)
	}
}

func TestWinnerDispatchTask(t *testing.T) {
	t.Parallel()

	past := now.Add(-time.Minute)
	tests := []struct {
		name        string
		schedules   []*database.Schedule
		errs        map[int64]error
		wantCalls   []int64
		wantDeleted []int64
	}{
		{
			name: "sends due announcements",
			schedules: []*database.Schedule{
				{ID: 1, AMAID: 10, Type: database.ScheduleTypeWinner, ScheduledAt: past},
				{ID: 2, AMAID: 20, Type: database.ScheduleTypeWinner, ScheduledAt: now},
				{ID: 3, AMAID: 30, Type: database.ScheduleTypeWinner, ScheduledAt: now.Add(time.Minute)},
			},
			wantCalls:   []int64{10, 20},
			wantDeleted: []int64{1, 2},
		},
		{
			name: "rate limit keeps the rest",
			schedules: []*database.Schedule{
				{ID: 1, AMAID: 10, Type: database.ScheduleTypeWinner, ScheduledAt: past},
				{ID: 2, AMAID: 20, Type: database.ScheduleTypeWinner, ScheduledAt: past},
			},
			errs:      map[int64]error{10: fmt.Errorf("announce: %w", errs.RateLimited(30, errors.New("429")))},
			wantCalls: []int64{10},
		},
		{
			name: "unsendable is dropped",
			schedules: []*database.Schedule{
				{ID: 1, AMAID: 10, Type: database.ScheduleTypeWinner, ScheduledAt: past},
				{ID: 2, AMAID: 20, Type: database.ScheduleTypeWinner, ScheduledAt: past},
			},
			errs:        map[int64]error{10: winners.ErrNotConfirmed},
			wantCalls:   []int64{10, 20},
			wantDeleted: []int64{1, 2},
		},
		{
			name: "transient failure is kept",
			schedules: []*database.Schedule{
				{ID: 1, AMAID: 10, Type: database.ScheduleTypeWinner, ScheduledAt: past},
			},
			errs:      map[int64]error{10: errors.New("connection reset")},
			wantCalls: []int64{10},
		},
		{
			name: "unknown type",
			schedules: []*database.Schedule{
				{ID: 1, AMAID: 10, Type: "reminder", ScheduledAt: past},
			},
			wantDeleted: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeStore{schedules: tt.schedules}
			deps := testDeps(store)
			announcer := &fakeAnnouncer{errs: tt.errs}
			deps.Broadcaster = announcer

			if err := newWinnerDispatchTask(deps)(context.Background()); err != nil {
				t.Fatalf("task error = %v", err)
			}
			if !slices.Equal(announcer.calls, tt.wantCalls) {
				t.Errorf("broadcasts = %v, want %v", announcer.calls, tt.wantCalls)
			}
			if !slices.Equal(store.deleted, tt.wantDeleted) {
				t.Errorf("deleted = %v, want %v", store.deleted, tt.wantDeleted)
			}
		})
	}
}
