// Package winners drives the end-of-session winner selection: ranking scored
// submissions, the operator's discard/reset/confirm cycle, scheduling and
// sending the announcement.
package winners

import (
	"errors"
	"sort"

	"github.com/edgard/amabot/internal/database"
)

var (
	// ErrAMANotFound is returned when the session does not exist.
	ErrAMANotFound = errors.New("ama not found")
	// ErrNoScores is returned when a session has no scored submissions.
	ErrNoScores = errors.New("no scored submissions")
	// ErrUnknownParticipant is returned when discarding someone who never scored.
	ErrUnknownParticipant = errors.New("participant is not ranked")
	// ErrNoEligible is returned by Confirm when every participant was discarded.
	ErrNoEligible = errors.New("no eligible participants")
	// ErrNotConfirmed is returned when announcing a session without winners.
	ErrNotConfirmed = errors.New("winners not confirmed")
	// ErrInvalidTime is returned when a schedule text does not match the layout.
	ErrInvalidTime = errors.New("invalid schedule time")
	// ErrNotFuture is returned when a schedule time is not after now.
	ErrNotFuture = errors.New("schedule time is not in the future")
	// ErrNoCommunityChat is returned when no chat is configured for the session's language.
	ErrNoCommunityChat = errors.New("no community chat for language")
)

// Candidate is one participant's best submission.
type Candidate struct {
	UserID       int64
	Username     string
	SubmissionID int64
	Score        int
	Question     string
}

// Rank keeps the highest-scoring submission of each participant and sorts
// participants by that score, highest first. Equal scores keep the order in
// which the participants first appear in subs.
func Rank(subs []*database.Submission) []Candidate {
	ranked := make([]Candidate, 0, len(subs))
	index := make(map[int64]int, len(subs))

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		c := Candidate{
			UserID:       sub.UserID,
			Username:     sub.Username,
			SubmissionID: sub.ID,
			Score:        sub.Score,
			Question:     sub.Question,
		}
		if i, seen := index[sub.UserID]; seen {
			if c.Score > ranked[i].Score {
				ranked[i] = c
			}
			continue
		}
		index[sub.UserID] = len(ranked)
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// without returns ranked minus the discarded participants, order kept.
func without(ranked []Candidate, discarded []int64) []Candidate {
	if len(discarded) == 0 {
		return ranked
	}
	skip := make(map[int64]struct{}, len(discarded))
	for _, id := range discarded {
		skip[id] = struct{}{}
	}
	out := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if _, ok := skip[c.UserID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func contains(ranked []Candidate, userID int64) bool {
	for _, c := range ranked {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Shortlist is what the operator sees: the top of the ranking after discards.
type Shortlist struct {
	AMA *database.AMA
	// Entries are the participants shown, best first.
	Entries []Candidate
	// Eligible counts ranked participants not discarded.
	Eligible int
	// Discarded counts discarded participants.
	Discarded int
}

// WinnerCount is how many of the entries Confirm would persist.
func (s *Shortlist) WinnerCount() int {
	return min(s.AMA.WinnerCount, s.Eligible)
}
