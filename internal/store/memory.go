package store

import (
	"context"
	"encoding/json"
	"sync"

	"minigame_bot/internal/domain"
)

// Memory keeps serialized sessions in process. Documents are stored as
// JSON bytes so loads return snapshots, same as the durable backends.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, roomID string) (*domain.Session, error) {
	m.mu.RLock()
	raw, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) Save(_ context.Context, roomID string, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rooms[roomID] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
