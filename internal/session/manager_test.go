package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
	"minigame_bot/internal/engine"
	"minigame_bot/internal/scheduler"
	"minigame_bot/internal/store"
)

// fakeMessenger records everything sent and can refuse private
// delivery for chosen users.
type fakeMessenger struct {
	mu        sync.Mutex
	roomMsgs  map[string][]string
	userMsgs  map[string][]string
	failUsers map[string]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		roomMsgs:  make(map[string][]string),
		userMsgs:  make(map[string][]string),
		failUsers: make(map[string]bool),
	}
}

func (f *fakeMessenger) SendToRoom(_ context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomMsgs[roomID] = append(f.roomMsgs[roomID], text)
	return nil
}

func (f *fakeMessenger) SendToUser(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers[userID] {
		return errors.New("user unreachable")
	}
	f.userMsgs[userID] = append(f.userMsgs[userID], text)
	return nil
}

func (f *fakeMessenger) roomText(roomID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.roomMsgs[roomID], "\n")
}

func (f *fakeMessenger) userText(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.userMsgs[userID], "\n")
}

// inert timeouts: phase timers must never fire during these tests
func testManager(msgr Messenger) (*Manager, store.Store) {
	t := config.Timeouts{
		NightInit:      time.Hour,
		NightWitch:     time.Hour,
		Speech:         time.Hour,
		Vote:           time.Hour,
		HunterShoot:    time.Hour,
		RouletteTurn:   time.Hour,
		LobbyAutoStart: time.Hour,
		LockWait:       time.Second,
		IdleCeiling:    time.Hour,
		ReapInterval:   time.Hour,
	}
	st := store.NewMemory()
	locks := store.NewKeyLocks(t.LockWait)
	reg := engine.NewRegistry(t)
	sched := scheduler.New()
	return NewManager(st, locks, reg, sched, msgr, t), st
}

func groupEv(roomID, userID, name string) CommandEvent {
	return CommandEvent{
		RoomID:         roomID,
		UserID:         userID,
		DisplayName:    name,
		IsGroupContext: true,
	}
}

func TestCreateJoinAndStatus(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeRoulette, "3")
	if _, err := st.Load(ctx, "g1"); err != nil {
		t.Fatalf("room not persisted: %v", err)
	}

	mgr.Join(ctx, groupEv("g1", "u2", "guest"))
	s, _ := st.Load(ctx, "g1")
	if len(s.Players) != 2 {
		t.Fatalf("players = %d, want 2 (creator auto-joined)", len(s.Players))
	}

	// a second create on the same group key is refused
	mgr.Create(ctx, groupEv("g1", "u3", "other"), domain.ModeWerewolf, "")
	s, _ = st.Load(ctx, "g1")
	if s.Mode != domain.ModeRoulette {
		t.Fatalf("room mode overwritten: %s", s.Mode)
	}
	if !strings.Contains(msgr.roomText("g1"), "already running") {
		t.Fatalf("missing duplicate-create notice: %s", msgr.roomText("g1"))
	}

	mgr.Status(ctx, groupEv("g1", "u2", "guest"))
	if !strings.Contains(msgr.roomText("g1"), "waiting for players") {
		t.Fatalf("missing status reply: %s", msgr.roomText("g1"))
	}

	// private status resolves the room through the player index
	mgr.Status(ctx, CommandEvent{UserID: "u2", DisplayName: "guest"})
	if !strings.Contains(msgr.userText("u2"), "roulette") &&
		!strings.Contains(msgr.userText("u2"), "Russian") {
		t.Fatalf("private status missing: %q", msgr.userText("u2"))
	}
}

func TestStartAbortsWhenRoleCardUndeliverable(t *testing.T) {
	msgr := newFakeMessenger()
	msgr.failUsers["u4"] = true
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeWerewolf, "")
	for i := 2; i <= 6; i++ {
		mgr.Join(ctx, groupEv("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("player%d", i)))
	}

	mgr.Start(ctx, groupEv("g1", "u1", "host"))

	s, err := st.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("room gone after aborted start: %v", err)
	}
	if s.Phase != domain.PhaseWaiting {
		t.Fatalf("phase = %s, want waiting after abort", s.Phase)
	}
	for _, p := range s.Players {
		if p.Role != "" {
			t.Fatalf("role not cleared on abort: %s has %s", p.UserID, p.Role)
		}
	}
	if !strings.Contains(msgr.roomText("g1"), "Could not reach") {
		t.Fatalf("missing abort notice: %s", msgr.roomText("g1"))
	}
}

func TestStartCommitsWhenAllCardsDeliver(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeWerewolf, "")
	for i := 2; i <= 6; i++ {
		mgr.Join(ctx, groupEv("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("player%d", i)))
	}
	mgr.Start(ctx, groupEv("g1", "u1", "host"))

	s, _ := st.Load(ctx, "g1")
	if s.Phase != domain.PhaseNightInit {
		t.Fatalf("phase = %s, want night_init after launch", s.Phase)
	}
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("u%d", i)
		if !strings.Contains(msgr.userText(id), "Your role this game") {
			t.Fatalf("%s got no role card: %q", id, msgr.userText(id))
		}
	}
	if !mgr.sched.Pending("g1") {
		t.Fatal("no phase timer armed after launch")
	}
}

func TestPrivateOnlyActionRefusedInGroup(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, _ := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeWerewolf, "")
	mgr.Action(ctx, groupEv("g1", "u1", "host"),
		domain.Action{Kind: domain.ActionKill, TargetSeat: "02"})

	if !strings.Contains(msgr.roomText("g1"), "private message") {
		t.Fatalf("group kill not refused: %s", msgr.roomText("g1"))
	}
}

func TestVoteRefusedInPrivate(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeWerewolf, "")
	mgr.Action(ctx, CommandEvent{UserID: "u1", DisplayName: "host"},
		domain.Action{Kind: domain.ActionVote, TargetSeat: "02"})

	if !strings.Contains(msgr.userText("u1"), "openly in the group") {
		t.Fatalf("private vote not refused: %q", msgr.userText("u1"))
	}
	s, _ := st.Load(ctx, "g1")
	if len(s.Votes) != 0 {
		t.Fatalf("private vote reached the engine: %v", s.Votes)
	}
}

func TestStaleTimerFireIsNoop(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeRoulette, "2")
	before, _ := st.Load(ctx, "g1")

	// a fire tagged for a generation the room has left behind
	mgr.onTimerFire("g1", scheduler.Tag{Phase: domain.PhaseWaiting, Gen: before.PhaseGen + 10})

	after, _ := st.Load(ctx, "g1")
	if after.Phase != before.Phase || after.PhaseGen != before.PhaseGen {
		t.Fatalf("stale fire mutated the room: %+v -> %+v", before, after)
	}
}

func TestCurrentTimerFireApplies(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeRoulette, "2")
	mgr.Join(ctx, groupEv("g1", "u2", "guest"))
	s, _ := st.Load(ctx, "g1")

	// lobby timeout with enough players starts the game
	mgr.onTimerFire("g1", scheduler.Tag{Phase: s.Phase, Gen: s.PhaseGen})

	after, _ := st.Load(ctx, "g1")
	if after.Phase != domain.PhasePlaying {
		t.Fatalf("phase = %s, want playing after lobby timeout", after.Phase)
	}
}

func TestEndRequiresHostOrAdmin(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeRoulette, "3")
	mgr.Join(ctx, groupEv("g1", "u2", "guest"))

	mgr.End(ctx, groupEv("g1", "u2", "guest"))
	if _, err := st.Load(ctx, "g1"); err != nil {
		t.Fatal("non-host end deleted the room")
	}

	admin := groupEv("g1", "u3", "admin")
	admin.IsPrivileged = true
	mgr.End(ctx, admin)
	if _, err := st.Load(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("admin end left the room: %v", err)
	}
	if _, ok := mgr.RoomOf("u2"); ok {
		t.Fatal("player index not cleared after end")
	}
}

func TestReaperClosesIdleRooms(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	mgr.Create(ctx, groupEv("g1", "u1", "host"), domain.ModeRoulette, "3")
	mgr.Create(ctx, groupEv("g2", "u2", "host2"), domain.ModeRoulette, "3")

	// age g1 past the ceiling behind the manager's back
	s, _ := st.Load(ctx, "g1")
	s.UpdatedAt = time.Now().Add(-2 * time.Hour)
	if err := st.Save(ctx, "g1", s); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	mgr.reapOnce(ctx)

	if _, err := st.Load(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("idle room survived the reaper: %v", err)
	}
	if _, err := st.Load(ctx, "g2"); err != nil {
		t.Fatalf("fresh room reaped: %v", err)
	}
	if !strings.Contains(msgr.roomText("g1"), "closed automatically") {
		t.Fatalf("missing auto-cleanup notice: %s", msgr.roomText("g1"))
	}
}

func TestRestoreRebuildsIndex(t *testing.T) {
	msgr := newFakeMessenger()
	mgr, st := testManager(msgr)
	ctx := context.Background()

	s := domain.NewSession("g1", domain.ModeWerewolf, "u1")
	s.Players = append(s.Players,
		&domain.Player{UserID: "u1", DisplayName: "host", IsAlive: true},
		&domain.Player{UserID: "u2", DisplayName: "guest", IsAlive: true})
	if err := st.Save(ctx, "g1", s); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	if err := mgr.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if roomID, ok := mgr.RoomOf("u2"); !ok || roomID != "g1" {
		t.Fatalf("index not rebuilt: %q %v", roomID, ok)
	}
}
