package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgOpTimeout = 5 * time.Second

const pgSchema = `
CREATE TABLE IF NOT EXISTS assist_slots (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps slots in a PostgreSQL table, one row per key.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to databaseURL and ensures the slot table exists.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	var val []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM assist_slots WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select slot: %w", err)
	}
	return val, nil
}

func (s *PGStore) Set(key string, value []byte) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	if value == nil {
		value = []byte{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO assist_slots (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}
	return nil
}

func (s *PGStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM assist_slots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func (s *PGStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pgOpTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT key FROM assist_slots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan slots: %w", err)
	}
	return keys, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}
