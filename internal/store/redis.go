package store

import (
	"context"
	"encoding/json"
	"errors"

	"minigame_bot/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "room:"

// Redis stores one JSON document per room under room:<id>.
type Redis struct {
	client *redis.Client
}

func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Load(ctx context.Context, roomID string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, roomKeyPrefix+roomID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *Redis) Save(ctx context.Context, roomID string, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, roomKeyPrefix+roomID, raw, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, roomKeyPrefix+roomID).Err()
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, roomKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(roomKeyPrefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
