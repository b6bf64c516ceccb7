package database

import (
	"database/sql"
	"time"
)

// AMAStatus is the lifecycle state of an AMA session. Statuses only move forward.
type AMAStatus string

// AMA lifecycle, in order.
const (
	StatusPending     AMAStatus = "pending"
	StatusScheduled   AMAStatus = "scheduled"
	StatusBroadcasted AMAStatus = "broadcasted"
	StatusActive      AMAStatus = "active"
	StatusEnded       AMAStatus = "ended"
)

var statusOrder = map[AMAStatus]int{
	StatusPending:     0,
	StatusScheduled:   1,
	StatusBroadcasted: 2,
	StatusActive:      3,
	StatusEnded:       4,
}

// Valid reports whether s is a known status.
func (s AMAStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanMoveTo reports whether a session in status s may move to next.
// Staying in the same status is allowed.
func (s AMAStatus) CanMoveTo(next AMAStatus) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to >= from
}

// ScheduleTypeWinner marks a deferred winner announcement.
const ScheduleTypeWinner = "winner"

// AMA represents one question-and-answer session in one language.
// Several rows may share a SessionNo, one per language.
type AMA struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	SessionNo   int          `db:"session_no"`
	Language    string       `db:"language"`
	Topic       string       `db:"topic"`
	Reward      string       `db:"reward"`
	WinnerCount int          `db:"winner_count"`
	Status      AMAStatus    `db:"status"`
	ThreadID    int          `db:"thread_id"`
	ScheduledAt sql.NullTime `db:"scheduled_at"`
}

// Submission is one community question tagged for an AMA. The row is created
// before scoring and the score columns are filled in once the oracle answers.
type Submission struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	AMAID     int64  `db:"ama_id"`
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	ChatID    int64  `db:"chat_id"`
	MessageID int    `db:"message_id"`
	Question  string `db:"question"`

	Originality   int `db:"originality"`
	Clarity       int `db:"clarity"`
	Engagement    int `db:"engagement"`
	Relevance     int `db:"relevance"`
	LanguageScore int `db:"language_score"`
	Score         int `db:"score"`

	Processed          bool         `db:"processed"`
	FailureReason      string       `db:"failure_reason"`
	ForwardedMessageID int          `db:"forwarded_message_id"`
	AnalyzedAt         sql.NullTime `db:"analyzed_at"`
}

// Scored reports whether the aggregate score has been written.
func (s *Submission) Scored() bool {
	return s.AnalyzedAt.Valid
}

// Scores holds per-criterion scores (0-10) and the aggregate (0-100).
type Scores struct {
	Originality int
	Clarity     int
	Engagement  int
	Relevance   int
	Language    int
	Total       int
}

// Winner is a confirmed winner of an AMA. Username, Score and Question are
// filled from the linked submission on read.
type Winner struct {
	ID           int64     `db:"id"`
	CreatedAt    time.Time `db:"created_at"`
	AMAID        int64     `db:"ama_id"`
	UserID       int64     `db:"user_id"`
	SubmissionID int64     `db:"submission_id"`
	Rank         int       `db:"rank"`

	Username string `db:"username"`
	Score    int    `db:"score"`
	Question string `db:"question"`
}

// Schedule is a deferred action for an AMA, e.g. a winner announcement.
type Schedule struct {
	ID          int64     `db:"id"`
	CreatedAt   time.Time `db:"created_at"`
	AMAID       int64     `db:"ama_id"`
	Type        string    `db:"type"`
	ScheduledAt time.Time `db:"scheduled_at"`
}
