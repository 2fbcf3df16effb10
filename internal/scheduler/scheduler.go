package scheduler

import (
	"sync"
	"time"

	"minigame_bot/internal/domain"
)

// Tag identifies the phase window a timer was armed for. The
// generation counter distinguishes two windows of the same phase
// (e.g. consecutive speakers), so a stale fire is always detectable.
type Tag struct {
	Phase domain.Phase
	Gen   int64
}

// FireFunc receives the room and the tag the timer was armed with.
// The callback must re-check the room's current phase under its
// exclusive section; firing is at-most-once per arm, but cancellation
// is not atomic with respect to in-flight fires.
type FireFunc func(roomID string, tag Tag)

type armed struct {
	tag   Tag
	timer *time.Timer
}

// Scheduler keeps at most one outstanding timeout per room.
type Scheduler struct {
	mu    sync.Mutex
	slots map[string]*armed
}

func New() *Scheduler {
	return &Scheduler{slots: make(map[string]*armed)}
}

// Arm installs a timeout for the room, superseding any existing one.
func (s *Scheduler) Arm(roomID string, tag Tag, d time.Duration, fire FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.slots[roomID]; ok {
		prev.timer.Stop()
	}

	a := &armed{tag: tag}
	a.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.slots[roomID]
		if !ok || cur != a {
			// superseded or cancelled after this fire was scheduled
			s.mu.Unlock()
			return
		}
		delete(s.slots, roomID)
		s.mu.Unlock()

		fire(roomID, tag)
	})
	s.slots[roomID] = a
}

// Cancel drops the room's pending timeout. Idempotent.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.slots[roomID]; ok {
		a.timer.Stop()
		delete(s.slots, roomID)
	}
}

// CancelAll drops every pending timeout (process shutdown).
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.slots {
		a.timer.Stop()
		delete(s.slots, id)
	}
}

// Pending reports whether the room currently has an armed timeout.
func (s *Scheduler) Pending(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[roomID]
	return ok
}
