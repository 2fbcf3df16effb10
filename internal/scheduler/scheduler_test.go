package scheduler

import (
	"sync"
	"testing"
	"time"

	"minigame_bot/internal/domain"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires []Tag
}

func (f *fireRecorder) fire(_ string, tag Tag) {
	f.mu.Lock()
	f.fires = append(f.fires, tag)
	f.mu.Unlock()
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fires)
}

func (f *fireRecorder) last() Tag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fires[len(f.fires)-1]
}

func TestSchedulerFires(t *testing.T) {
	s := New()
	rec := &fireRecorder{}

	s.Arm("room1", Tag{Phase: domain.PhaseDayVote, Gen: 3}, 10*time.Millisecond, rec.fire)

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want 1", rec.count())
	}
	if got := rec.last(); got.Phase != domain.PhaseDayVote || got.Gen != 3 {
		t.Fatalf("fired with tag %+v", got)
	}
	if s.Pending("room1") {
		t.Fatal("slot still pending after fire")
	}
}

func TestSchedulerArmSupersedes(t *testing.T) {
	s := New()
	rec := &fireRecorder{}

	s.Arm("room1", Tag{Phase: domain.PhaseNightInit, Gen: 1}, 20*time.Millisecond, rec.fire)
	s.Arm("room1", Tag{Phase: domain.PhaseNightWitch, Gen: 2}, 20*time.Millisecond, rec.fire)

	time.Sleep(80 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want exactly 1", rec.count())
	}
	if got := rec.last(); got.Gen != 2 {
		t.Fatalf("stale arm fired: %+v", got)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := New()
	rec := &fireRecorder{}

	s.Arm("room1", Tag{Phase: domain.PhaseDaySpeak, Gen: 1}, 20*time.Millisecond, rec.fire)
	s.Cancel("room1")
	s.Cancel("room1") // idempotent

	time.Sleep(60 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("cancelled timer fired %d times", rec.count())
	}
}

func TestSchedulerRoomsAreIndependent(t *testing.T) {
	s := New()
	rec := &fireRecorder{}

	s.Arm("room1", Tag{Phase: domain.PhaseDayVote, Gen: 1}, 10*time.Millisecond, rec.fire)
	s.Arm("room2", Tag{Phase: domain.PhaseDayVote, Gen: 1}, 10*time.Millisecond, rec.fire)
	s.Cancel("room1")

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want 1 (room2 only)", rec.count())
	}
}

func TestSchedulerCancelAll(t *testing.T) {
	s := New()
	rec := &fireRecorder{}

	for _, id := range []string{"room1", "room2", "room3"} {
		s.Arm(id, Tag{Phase: domain.PhasePlaying, Gen: 1}, 10*time.Millisecond, rec.fire)
	}
	s.CancelAll()

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("fired %d times after CancelAll", rec.count())
	}
}
