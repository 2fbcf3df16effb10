package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
	"minigame_bot/internal/engine"
	"minigame_bot/internal/logger"
	"minigame_bot/internal/metrics"
	"minigame_bot/internal/scheduler"
	"minigame_bot/internal/store"
)

// timerCtxBudget bounds the work a timer callback may do; callbacks
// run outside any request context.
const timerCtxBudget = 15 * time.Second

// Manager owns the room lifecycle: it serializes every mutation of a
// room behind its key lock, routes outcomes to the messenger, keeps
// the phase timer in sync with the session, and reaps idle rooms.
type Manager struct {
	store store.Store
	locks *store.KeyLocks
	reg   *engine.Registry
	sched *scheduler.Scheduler
	msgr  Messenger
	t     config.Timeouts

	mu    sync.RWMutex
	index map[string]string // user id -> room id, for private-channel commands
}

func NewManager(st store.Store, locks *store.KeyLocks, reg *engine.Registry,
	sched *scheduler.Scheduler, msgr Messenger, t config.Timeouts) *Manager {
	return &Manager{
		store: st,
		locks: locks,
		reg:   reg,
		sched: sched,
		msgr:  msgr,
		t:     t,
		index: make(map[string]string),
	}
}

// Restore rebuilds the player index and re-arms phase timers from the
// persisted sessions, so a restart does not strand running rooms.
func (m *Manager) Restore(ctx context.Context) error {
	ids, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, roomID := range ids {
		s, err := m.store.Load(ctx, roomID)
		if err != nil {
			logger.Warn("restore: skipping room", "room", roomID, "error", err)
			continue
		}
		m.mu.Lock()
		for _, p := range s.Players {
			m.index[p.UserID] = roomID
		}
		m.mu.Unlock()
		m.syncTimer(s)
	}
	metrics.ActiveRooms.Set(float64(len(ids)))
	logger.Info("restored rooms from store", "count", len(ids))
	return nil
}

// RoomOf resolves the room a user currently plays in, for commands
// that arrive over a private channel.
func (m *Manager) RoomOf(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, ok := m.index[userID]
	return roomID, ok
}

// Create opens a new room in the group and seats the creator.
func (m *Manager) Create(ctx context.Context, ev CommandEvent, mode domain.Mode, arg string) {
	if ev.RoomID == "" {
		m.replyTo(ctx, ev, "", "Games are created in a group chat, not here.")
		return
	}
	rules, err := m.reg.Get(mode)
	if err != nil {
		m.replyTo(ctx, ev, ev.RoomID, fmt.Sprintf("Unknown game mode %q.", mode))
		return
	}
	release, err := m.locks.Acquire(ctx, ev.RoomID)
	if err != nil {
		m.lockFailed(ctx, ev, err)
		return
	}
	defer release()

	if _, err := m.store.Load(ctx, ev.RoomID); err == nil {
		m.replyTo(ctx, ev, ev.RoomID, "A game is already running in this group. Send #end to close it first.")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Error("create: load failed", "room", ev.RoomID, "error", err)
		return
	}

	s := domain.NewSession(ev.RoomID, mode, ev.UserID)
	rules.Init(s, arg)
	o := rules.Join(s, ev.UserID, ev.DisplayName)
	if !o.OK {
		m.replyTo(ctx, ev, ev.RoomID, o.Reply)
		return
	}
	if err := m.save(ctx, s); err != nil {
		logger.Error("create: save failed", "room", ev.RoomID, "error", err)
		return
	}
	m.setIndex(ev.UserID, ev.RoomID)
	metrics.ActiveRooms.Inc()
	metrics.CommandsTotal.WithLabelValues("create", string(mode)).Inc()

	intro := fmt.Sprintf("New %s game created by %s. Send #join to play, #start to begin.", mode, ev.DisplayName)
	if s.Phase != domain.PhaseWaiting {
		// the mode started itself at creation, there is no lobby to invite to
		intro = fmt.Sprintf("New %s game created by %s.", mode, ev.DisplayName)
	}
	m.replyTo(ctx, ev, ev.RoomID, intro)
	m.deliver(ctx, ev, s.RoomID, o)
	m.syncTimer(s)
}

// Join seats the player in the group's room.
func (m *Manager) Join(ctx context.Context, ev CommandEvent) {
	m.withRoom(ctx, ev, ev.RoomID, "join", func(s *domain.Session, rules engine.Rules) *domain.Outcome {
		o := rules.Join(s, ev.UserID, ev.DisplayName)
		if o.OK {
			m.setIndex(ev.UserID, s.RoomID)
		}
		return o
	})
}

// Leave removes the player; the host leaving dissolves the room.
func (m *Manager) Leave(ctx context.Context, ev CommandEvent) {
	m.withRoom(ctx, ev, ev.RoomID, "leave", func(s *domain.Session, rules engine.Rules) *domain.Outcome {
		o := rules.Leave(s, ev.UserID)
		if o.OK {
			m.dropIndex(ev.UserID)
		}
		return o
	})
}

// Start runs the start sequence: deal, deliver every identity card
// privately, and only then commit. One undeliverable card aborts the
// start so nobody plays blind.
func (m *Manager) Start(ctx context.Context, ev CommandEvent) {
	release, err := m.locks.Acquire(ctx, ev.RoomID)
	if err != nil {
		m.lockFailed(ctx, ev, err)
		return
	}
	defer release()

	s, rules, ok := m.load(ctx, ev, ev.RoomID)
	if !ok {
		return
	}

	o := rules.Start(s, ev.UserID)
	if !o.OK {
		metrics.RejectionsTotal.WithLabelValues(string(o.Code)).Inc()
		m.replyTo(ctx, ev, s.RoomID, o.Reply)
		return
	}
	metrics.CommandsTotal.WithLabelValues("start", string(s.Mode)).Inc()
	m.replyTo(ctx, ev, s.RoomID, o.Reply)
	for _, b := range o.Broadcasts {
		m.sendRoom(ctx, s.RoomID, b)
	}

	for _, pm := range o.Privates {
		if err := m.msgr.SendToUser(ctx, pm.UserID, pm.Text); err != nil {
			p := s.PlayerByID(pm.UserID)
			name := pm.UserID
			if p != nil {
				name = p.DisplayName
			}
			logger.Warn("start aborted: identity card undeliverable",
				"room", s.RoomID, "user", pm.UserID, "error", err)
			rules.Abort(s)
			m.sendRoom(ctx, s.RoomID, fmt.Sprintf(
				"Could not reach %s privately. Make sure everyone accepts private messages, then start again.", name))
			if err := m.save(ctx, s); err != nil {
				logger.Error("start: save after abort failed", "room", s.RoomID, "error", err)
			}
			m.syncTimer(s)
			return
		}
	}

	lo := rules.Launch(s)
	m.deliver(ctx, ev, s.RoomID, lo)
	m.finishOrSave(ctx, s, lo)
}

// Action applies a parsed in-game action. Private-only actions sent in
// the group are refused before they can leak information.
func (m *Manager) Action(ctx context.Context, ev CommandEvent, act domain.Action) {
	roomID := ev.RoomID
	if roomID == "" {
		var ok bool
		roomID, ok = m.RoomOf(ev.UserID)
		if !ok {
			m.replyTo(ctx, ev, "", "You are not in any running game.")
			return
		}
	}
	if act.Kind.PrivateOnly() && ev.IsGroupContext {
		m.replyTo(ctx, ev, roomID, "That action must be sent to me in a private message, never in the group!")
		return
	}
	if act.Kind.GroupOnly() && !ev.IsGroupContext {
		m.replyTo(ctx, ev, roomID, "Votes are cast openly in the group chat, not in private.")
		return
	}
	act.ActorID = ev.UserID

	m.withRoom(ctx, ev, roomID, string(act.Kind), func(s *domain.Session, rules engine.Rules) *domain.Outcome {
		return rules.HandleAction(s, act)
	})
}

// Status reports the room's public state.
func (m *Manager) Status(ctx context.Context, ev CommandEvent) {
	roomID := ev.RoomID
	if roomID == "" {
		var ok bool
		roomID, ok = m.RoomOf(ev.UserID)
		if !ok {
			m.replyTo(ctx, ev, "", "You are not in any running game.")
			return
		}
	}
	release, err := m.locks.Acquire(ctx, roomID)
	if err != nil {
		m.lockFailed(ctx, ev, err)
		return
	}
	defer release()

	s, rules, ok := m.load(ctx, ev, roomID)
	if !ok {
		return
	}
	m.replyTo(ctx, ev, roomID, rules.Status(s))
}

// End closes the room. Only the host or a privileged user may do it.
func (m *Manager) End(ctx context.Context, ev CommandEvent) {
	release, err := m.locks.Acquire(ctx, ev.RoomID)
	if err != nil {
		m.lockFailed(ctx, ev, err)
		return
	}
	defer release()

	s, _, ok := m.load(ctx, ev, ev.RoomID)
	if !ok {
		return
	}
	if ev.UserID != s.HostID && !ev.IsPrivileged {
		m.replyTo(ctx, ev, s.RoomID, "Only the host or a group admin can end the game.")
		return
	}
	metrics.CommandsTotal.WithLabelValues("end", string(s.Mode)).Inc()
	m.sendRoom(ctx, s.RoomID, fmt.Sprintf("The game was ended by %s.", ev.DisplayName))
	m.finishRoom(ctx, s)
}

// ForceEnd closes a room without an initiating player (admin surface
// and the idle reaper).
func (m *Manager) ForceEnd(ctx context.Context, roomID, reason string) error {
	release, err := m.locks.Acquire(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	s, err := m.store.Load(ctx, roomID)
	if err != nil {
		return err
	}
	if reason != "" {
		m.sendRoom(ctx, roomID, reason)
	}
	m.finishRoom(ctx, s)
	return nil
}

// Snapshot returns a copy of the room's persisted state.
func (m *Manager) Snapshot(ctx context.Context, roomID string) (*domain.Session, error) {
	release, err := m.locks.Acquire(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()
	return m.store.Load(ctx, roomID)
}

// Rooms lists the ids of all live rooms.
func (m *Manager) Rooms(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Shutdown cancels all timers. Sessions stay in the store for Restore.
func (m *Manager) Shutdown() {
	m.sched.CancelAll()
}

// withRoom is the shared exclusive section: lock, load, mutate,
// deliver, persist, re-arm.
func (m *Manager) withRoom(ctx context.Context, ev CommandEvent, roomID, op string,
	fn func(s *domain.Session, rules engine.Rules) *domain.Outcome) {

	release, err := m.locks.Acquire(ctx, roomID)
	if err != nil {
		m.lockFailed(ctx, ev, err)
		return
	}
	defer release()

	s, rules, ok := m.load(ctx, ev, roomID)
	if !ok {
		return
	}

	o := fn(s, rules)
	if !o.OK {
		metrics.RejectionsTotal.WithLabelValues(string(o.Code)).Inc()
		m.replyTo(ctx, ev, roomID, o.Reply)
		return
	}
	metrics.CommandsTotal.WithLabelValues(op, string(s.Mode)).Inc()
	m.deliver(ctx, ev, roomID, o)
	m.finishOrSave(ctx, s, o)
}

func (m *Manager) load(ctx context.Context, ev CommandEvent, roomID string) (*domain.Session, engine.Rules, bool) {
	s, err := m.store.Load(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		m.replyTo(ctx, ev, roomID, "There is no game running here. Send #create to open one.")
		return nil, nil, false
	}
	if err != nil {
		logger.Error("load failed", "room", roomID, "error", err)
		m.replyTo(ctx, ev, roomID, "Something went wrong, please try again.")
		return nil, nil, false
	}
	rules, err := m.reg.Get(s.Mode)
	if err != nil {
		logger.Error("room has unknown mode", "room", roomID, "mode", s.Mode)
		return nil, nil, false
	}
	return s, rules, true
}

// finishOrSave persists the session, or tears the room down when the
// outcome ended or dissolved the game.
func (m *Manager) finishOrSave(ctx context.Context, s *domain.Session, o *domain.Outcome) {
	if o.Ended || o.Dissolved {
		m.finishRoom(ctx, s)
		return
	}
	if err := m.save(ctx, s); err != nil {
		logger.Error("save failed", "room", s.RoomID, "error", err)
		return
	}
	m.syncTimer(s)
}

func (m *Manager) save(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now()
	return m.store.Save(ctx, s.RoomID, s)
}

// finishRoom deletes the session so the group key is free for the
// next game, and clears every player from the private-routing index.
func (m *Manager) finishRoom(ctx context.Context, s *domain.Session) {
	m.sched.Cancel(s.RoomID)
	m.mu.Lock()
	for _, p := range s.Players {
		if m.index[p.UserID] == s.RoomID {
			delete(m.index, p.UserID)
		}
	}
	m.mu.Unlock()
	if err := m.store.Delete(ctx, s.RoomID); err != nil {
		logger.Error("delete failed", "room", s.RoomID, "error", err)
		return
	}
	metrics.ActiveRooms.Dec()
}

// syncTimer re-arms the room's phase timer to match the session. The
// tag carries the generation so a fire for an overtaken window is
// always detected as stale.
func (m *Manager) syncTimer(s *domain.Session) {
	rules, err := m.reg.Get(s.Mode)
	if err != nil {
		return
	}
	d := rules.PhaseDuration(s.Phase)
	if d <= 0 || s.Phase == domain.PhaseEnded {
		m.sched.Cancel(s.RoomID)
		return
	}
	m.sched.Arm(s.RoomID, scheduler.Tag{Phase: s.Phase, Gen: s.PhaseGen}, d, m.onTimerFire)
}

// onTimerFire is the scheduler callback. It re-enters the room's
// exclusive section and drops the fire if the window it was armed for
// has been overtaken in the meantime.
func (m *Manager) onTimerFire(roomID string, tag scheduler.Tag) {
	ctx, cancel := context.WithTimeout(context.Background(), timerCtxBudget)
	defer cancel()

	release, err := m.locks.Acquire(ctx, roomID)
	if err != nil {
		logger.Warn("timer: lock not acquired", "room", roomID, "error", err)
		metrics.TimerFires.WithLabelValues("lock_failed").Inc()
		return
	}
	defer release()

	s, err := m.store.Load(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.TimerFires.WithLabelValues("stale").Inc()
		return
	}
	if err != nil {
		logger.Error("timer: load failed", "room", roomID, "error", err)
		return
	}
	if s.Phase != tag.Phase || s.PhaseGen != tag.Gen {
		logger.Debug("timer: stale fire dropped",
			"room", roomID, "armed_phase", tag.Phase, "armed_gen", tag.Gen,
			"phase", s.Phase, "gen", s.PhaseGen)
		metrics.TimerFires.WithLabelValues("stale").Inc()
		return
	}
	metrics.TimerFires.WithLabelValues("applied").Inc()

	rules, err := m.reg.Get(s.Mode)
	if err != nil {
		return
	}
	o := rules.HandleTimeout(s, tag.Phase)
	if o == nil {
		return
	}
	for _, b := range o.Broadcasts {
		m.sendRoom(ctx, roomID, b)
	}
	for _, pm := range o.Privates {
		m.sendUser(ctx, pm.UserID, pm.Text)
	}
	m.finishOrSave(ctx, s, o)
}

func (m *Manager) deliver(ctx context.Context, ev CommandEvent, roomID string, o *domain.Outcome) {
	if o.Reply != "" {
		m.replyTo(ctx, ev, roomID, o.Reply)
	}
	for _, b := range o.Broadcasts {
		m.sendRoom(ctx, roomID, b)
	}
	for _, pm := range o.Privates {
		m.sendUser(ctx, pm.UserID, pm.Text)
	}
}

// replyTo answers on the channel the command came in on.
func (m *Manager) replyTo(ctx context.Context, ev CommandEvent, roomID, text string) {
	if text == "" {
		return
	}
	if ev.IsGroupContext && roomID != "" {
		m.sendRoom(ctx, roomID, text)
		return
	}
	m.sendUser(ctx, ev.UserID, text)
}

func (m *Manager) sendRoom(ctx context.Context, roomID, text string) {
	if err := m.msgr.SendToRoom(ctx, roomID, text); err != nil {
		logger.Warn("room send failed", "room", roomID, "error", err)
	}
}

func (m *Manager) sendUser(ctx context.Context, userID, text string) {
	if err := m.msgr.SendToUser(ctx, userID, text); err != nil {
		logger.Warn("user send failed", "user", userID, "error", err)
	}
}

func (m *Manager) lockFailed(ctx context.Context, ev CommandEvent, err error) {
	if errors.Is(err, store.ErrLockTimeout) {
		m.replyTo(ctx, ev, "", "The room is busy, please try again in a moment.")
		return
	}
	logger.Warn("lock acquire failed", "error", err)
}

func (m *Manager) setIndex(userID, roomID string) {
	m.mu.Lock()
	m.index[userID] = roomID
	m.mu.Unlock()
}

func (m *Manager) dropIndex(userID string) {
	m.mu.Lock()
	delete(m.index, userID)
	m.mu.Unlock()
}
