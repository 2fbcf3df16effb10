package store

import (
	"context"
	"errors"

	"minigame_bot/internal/config"
	"minigame_bot/internal/domain"
)

var (
	// ErrNotFound is returned when no session exists for a room id.
	ErrNotFound = errors.New("store: room not found")
	// ErrLockTimeout is returned when a room's exclusive section could
	// not be entered within the configured ceiling.
	ErrLockTimeout = errors.New("store: room lock timeout")
)

// Store persists one full serialized session per room id. Callers are
// expected to hold the room's KeyLocks section around every
// load-mutate-save cycle; backends only provide the document storage.
type Store interface {
	Load(ctx context.Context, roomID string) (*domain.Session, error)
	Save(ctx context.Context, roomID string, s *domain.Session) error
	Delete(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend from configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, errors.New("store: unknown backend " + cfg.StoreBackend)
	}
}
