package session

import (
	"context"
	"time"

	"minigame_bot/internal/logger"
	"minigame_bot/internal/metrics"
)

// RunReaper periodically force-ends rooms that have not seen any
// activity within the idle ceiling (default two hours). It blocks
// until ctx is cancelled; run it in its own goroutine.
func (m *Manager) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(m.t.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapOnce(ctx)
		}
	}
}

func (m *Manager) reapOnce(ctx context.Context) {
	ids, err := m.store.List(ctx)
	if err != nil {
		logger.Error("reaper: list failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-m.t.IdleCeiling)
	for _, roomID := range ids {
		s, err := m.store.Load(ctx, roomID)
		if err != nil {
			continue
		}
		if s.UpdatedAt.After(cutoff) {
			continue
		}
		logger.Info("reaper: closing idle room",
			"room", roomID, "mode", s.Mode, "idle_since", s.UpdatedAt)
		err = m.ForceEnd(ctx, roomID,
			"This game has been idle for too long and was closed automatically by the system.")
		if err != nil {
			logger.Warn("reaper: force end failed", "room", roomID, "error", err)
			continue
		}
		metrics.ReapedRooms.Inc()
	}
}
