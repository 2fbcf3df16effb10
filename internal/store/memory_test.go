package store

import (
	"context"
	"errors"
	"testing"

	"minigame_bot/internal/domain"
)

func TestMemoryRoundtrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s := domain.NewSession("room1", domain.ModeWerewolf, "u1")
	s.Players = append(s.Players, &domain.Player{UserID: "u1", DisplayName: "host", IsAlive: true})
	s.Day = 2
	s.SetPhase(domain.PhaseNightInit)

	if err := m.Save(ctx, "room1", s); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := m.Load(ctx, "room1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Phase != domain.PhaseNightInit || got.Day != 2 || got.PhaseGen != s.PhaseGen {
		t.Fatalf("loaded session differs: %+v", got)
	}
	if len(got.Players) != 1 || got.Players[0].UserID != "u1" {
		t.Fatalf("players not preserved: %+v", got.Players)
	}
}

func TestMemoryLoadReturnsSnapshot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s := domain.NewSession("room1", domain.ModeWerewolf, "u1")
	s.Players = append(s.Players, &domain.Player{UserID: "u1", IsAlive: true})
	if err := m.Save(ctx, "room1", s); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, _ := m.Load(ctx, "room1")
	first.Players[0].IsAlive = false

	second, _ := m.Load(ctx, "room1")
	if !second.Players[0].IsAlive {
		t.Fatal("mutating one load leaked into the stored document")
	}
}

func TestMemoryDeleteAndList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing load: got %v, want ErrNotFound", err)
	}

	for _, id := range []string{"room1", "room2"} {
		if err := m.Save(ctx, id, domain.NewSession(id, domain.ModeRoulette, "u1")); err != nil {
			t.Fatalf("save %s failed: %v", id, err)
		}
	}
	ids, err := m.List(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("list: %v %v", ids, err)
	}

	if err := m.Delete(ctx, "room1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := m.Load(ctx, "room1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted load: got %v, want ErrNotFound", err)
	}
}
