package winners

import (
	"slices"
	"sync"
)

// OperatorState is one admin's in-progress selection work, keyed by AMA id.
// Two admins working on the same AMA each have their own state and do not
// see each other's discards; the last one to confirm wins.
type OperatorState struct {
	mu                sync.Mutex
	discards          map[int64][]int64
	awaitingBroadcast map[int64]bool
	pendingSchedule   int64
}

// NewOperatorState returns an empty state.
func NewOperatorState() *OperatorState {
	return &OperatorState{
		discards:          make(map[int64][]int64),
		awaitingBroadcast: make(map[int64]bool),
	}
}

// Discarded returns the participants discarded for amaID, in discard order.
func (s *OperatorState) Discarded(amaID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.discards[amaID])
}

// discard records userID and reports whether it was already discarded.
func (s *OperatorState) discard(amaID, userID int64) (already bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.discards[amaID], userID) {
		return true
	}
	s.discards[amaID] = append(s.discards[amaID], userID)
	return false
}

func (s *OperatorState) reset(amaID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.discards, amaID)
}

// AwaitingBroadcast reports whether amaID was confirmed and the announcement
// has been neither sent nor scheduled.
func (s *OperatorState) AwaitingBroadcast(amaID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingBroadcast[amaID]
}

func (s *OperatorState) setAwaitingBroadcast(amaID int64, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.awaitingBroadcast[amaID] = true
	} else {
		delete(s.awaitingBroadcast, amaID)
	}
}

// PendingSchedule returns the AMA whose announcement time the operator is
// expected to type next.
func (s *OperatorState) PendingSchedule() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSchedule, s.pendingSchedule != 0
}

// AwaitSchedule makes the operator's next private message the announcement
// time for amaID.
func (s *OperatorState) AwaitSchedule(amaID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSchedule = amaID
}

// ClearPendingSchedule stops waiting for a schedule time.
func (s *OperatorState) ClearPendingSchedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSchedule = 0
}

// Forget drops everything the operator holds for amaID.
func (s *OperatorState) Forget(amaID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.discards, amaID)
	delete(s.awaitingBroadcast, amaID)
	if s.pendingSchedule == amaID {
		s.pendingSchedule = 0
	}
}

// Sessions hands out one OperatorState per admin.
type Sessions struct {
	mu     sync.Mutex
	states map[int64]*OperatorState
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{states: make(map[int64]*OperatorState)}
}

// For returns the state of operatorID, creating it on first use.
func (s *Sessions) For(operatorID int64) *OperatorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[operatorID]
	if !ok {
		st = NewOperatorState()
		s.states[operatorID] = st
	}
	return st
}
