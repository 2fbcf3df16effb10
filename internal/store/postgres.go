package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"minigame_bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores one JSONB document per room.
type Postgres struct {
	db *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id    TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Load(ctx context.Context, roomID string) (*domain.Session, error) {
	var raw []byte
	err := p.db.QueryRow(ctx,
		`SELECT state FROM rooms WHERE room_id = $1`, roomID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (p *Postgres) Save(ctx context.Context, roomID string, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx,
		`INSERT INTO rooms (room_id, state, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (room_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		roomID, raw, time.Now().UTC(),
	)
	return err
}

func (p *Postgres) Delete(ctx context.Context, roomID string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID)
	return err
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT room_id FROM rooms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
