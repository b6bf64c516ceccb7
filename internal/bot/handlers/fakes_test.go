package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/database"
	"github.com/edgard/amabot/internal/pipeline"
	"github.com/edgard/amabot/internal/telegram/telegramtest"
	"github.com/edgard/amabot/internal/winners"
)

const (
	adminID    int64 = 11
	strangerID int64 = 99
	staffChat  int64 = -1001
	enChat     int64 = -2001
	esChat     int64 = -2002
)

// fakeStore implements the parts of database.Store the handlers reach.
// Anything else panics through the nil embedded interface.
type fakeStore struct {
	database.Store

	mu        sync.Mutex
	nextID    int64
	amas      map[int64]*database.AMA
	subs      map[int64][]*database.Submission
	winners   map[int64][]*database.Winner
	schedules []*database.Schedule
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:  1,
		amas:    make(map[int64]*database.AMA),
		subs:    make(map[int64][]*database.Submission),
		winners: make(map[int64][]*database.Winner),
	}
}

func (s *fakeStore) addAMA(ama database.AMA) *database.AMA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ama.ID == 0 {
		ama.ID = s.nextID
	}
	if ama.ID >= s.nextID {
		s.nextID = ama.ID + 1
	}
	s.amas[ama.ID] = &ama
	return &ama
}

func (s *fakeStore) ama(id int64) *database.AMA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.amas[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *fakeStore) CreateAMA(_ context.Context, ama *database.AMA) error {
	ama.Status = database.StatusPending
	created := s.addAMA(*ama)
	ama.ID = created.ID
	return nil
}

func (s *fakeStore) GetAMA(_ context.Context, id int64) (*database.AMA, error) {
	return s.ama(id), nil
}

func (s *fakeStore) GetActiveAMA(_ context.Context, language string, sessionNo int) (*database.AMA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.amas {
		if a.Language == language && a.SessionNo == sessionNo && a.Status == database.StatusActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListAMAs(_ context.Context, limit int) ([]*database.AMA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*database.AMA
	for id := s.nextID - 1; id > 0 && len(out) < limit; id-- {
		if a, ok := s.amas[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateAMAStatus(_ context.Context, id int64, status database.AMAStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.amas[id]
	if !ok {
		return fmt.Errorf("ama %d: %w", id, database.ErrNotFound)
	}
	if !a.Status.CanMoveTo(status) {
		return fmt.Errorf("ama %d: %w", id, database.ErrStatusRegression)
	}
	a.Status = status
	return nil
}

func (s *fakeStore) SetAMAThread(_ context.Context, id int64, threadID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.amas[id]
	if !ok {
		return database.ErrNotFound
	}
	a.ThreadID = threadID
	return nil
}

func (s *fakeStore) GetScoredSubmissions(_ context.Context, amaID int64) ([]*database.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[amaID], nil
}

func (s *fakeStore) ConfirmWinners(_ context.Context, amaID int64, ws []*database.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.winners[amaID] = ws
	if a, ok := s.amas[amaID]; ok {
		a.Status = database.StatusEnded
	}
	return nil
}

func (s *fakeStore) GetWinners(_ context.Context, amaID int64) ([]*database.Winner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winners[amaID], nil
}

func (s *fakeStore) CreateSchedule(_ context.Context, sched *database.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched.ID = int64(len(s.schedules) + 1)
	s.schedules = append(s.schedules, sched)
	return nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	items []pipeline.QueueItem
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, item pipeline.QueueItem) (pipeline.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return item, f.err
	}
	item.SubmissionID = int64(len(f.items) + 1)
	item.TraceID = "trace"
	f.items = append(f.items, item)
	return item, nil
}

type fakeAnnouncer struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (f *fakeAnnouncer) Broadcast(_ context.Context, amaID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, amaID)
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			AdminUserIDs:   []int64{adminID},
			StaffChatID:    staffChat,
			HashtagPrefix:  "ama",
			ReactionEmoji:  "👍",
			CommunityChats: map[string]int64{"en": enChat, "es": esChat},
			BotInfo:        &models.User{ID: 1, Username: "amabot", IsBot: true},
		},
		Winners: config.WinnersConfig{
			DisplayCount:   10,
			ScheduleLayout: "2006-01-02 15:04",
			Timezone:       "UTC",
			Location:       time.UTC,
		},
		Messages: config.MessagesConfig{
			Welcome:      "welcome @botname",
			Help:         "help",
			Unauthorized: "unauthorized",
			GeneralError: "error",

			AMAUsage:       "ama usage",
			AMACreatedFmt:  "created #%d %s id=%d",
			AMANotFoundFmt: "not found %d",
			AMAStatusFmt:   "ama %d %s",
			AMARegression:  "regression",
			AMAListHeader:  "list",
			AMAListEmpty:   "empty",

			WinnersUsage:       "winners usage",
			NoScores:           "no scores",
			ShortlistHeaderFmt: "#%d %s top %d of %d pick %d",
			Discarded:          "discarded",
			AlreadyDiscarded:   "already",
			UnknownParticipant: "unknown",
			SelectionReset:     "reset",
			NoEligible:         "no eligible",
			ConfirmedFmt:       "confirmed %d for #%d",
			Cancelled:          "cancelled",
			InvalidAction:      "invalid",

			ScheduleAskFmt:    "when #%d %s %s",
			ScheduleInvalid:   "bad time",
			ScheduleNotFuture: "past",
			ScheduledFmt:      "scheduled #%d at %s",
			BroadcastSentFmt:  "sent #%d",
			BroadcastFailed:   "broadcast failed",
		},
	}
}

type harness struct {
	deps      HandlerDeps
	store     *fakeStore
	tg        *telegramtest.Messenger
	queue     *fakeEnqueuer
	announcer *fakeAnnouncer
}

// newHarness seeds AMA 1: session 7, English, two winners, active, with
// three ranked participants (alice 90, bob 80, an unnamed user 70).
func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	h := &harness{
		store:     newFakeStore(),
		tg:        telegramtest.NewMessenger(),
		queue:     &fakeEnqueuer{},
		announcer: &fakeAnnouncer{},
	}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))

	h.store.addAMA(database.AMA{
		ID: 1, SessionNo: 7, Language: "en", WinnerCount: 2,
		Status: database.StatusActive, Topic: "Go", ThreadID: 55,
	})
	h.store.subs[1] = []*database.Submission{
		{ID: 1, AMAID: 1, UserID: 101, Username: "alice", Score: 90, Question: "q1"},
		{ID: 2, AMAID: 1, UserID: 102, Username: "bob", Score: 80, Question: "q2"},
		{ID: 3, AMAID: 1, UserID: 103, Score: 70, Question: "q3"},
		{ID: 4, AMAID: 1, UserID: 101, Username: "alice", Score: 60, Question: "q4"},
	}

	h.deps = HandlerDeps{
		Logger:      logger,
		Config:      cfg,
		Store:       h.store,
		Telegram:    h.tg,
		Pipeline:    h.queue,
		Selector:    winners.NewSelector(logger, cfg.Winners, h.store, clock),
		Broadcaster: h.announcer,
		Sessions:    winners.NewSessions(),
	}
	return h
}

func run(handler bot.HandlerFunc, update *models.Update) {
	handler(context.Background(), nil, update)
}

func message(chatID int64, chatType models.ChatType, from int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   500,
			Chat: models.Chat{ID: chatID, Type: chatType},
			From: &models.User{ID: from, Username: fmt.Sprintf("user%d", from)},
			Text: text,
		},
	}
}

func private(from int64, text string) *models.Update {
	return message(from, models.ChatTypePrivate, from, text)
}

// shortlistMessage is the message the selection buttons sit on.
var shortlistMessage = &models.Message{ID: 900, Chat: models.Chat{ID: adminID, Type: models.ChatTypePrivate}}

func buttonPress(from int64, data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:      "q",
			From:    models.User{ID: from},
			Data:    data,
			Message: models.MaybeInaccessibleMessage{Message: shortlistMessage},
		},
	}
}
