package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cv-builder/internal/draft"
)

// PostgresStore keeps local-storage entries in a shared Postgres table, one
// namespace per browser profile. It lets kiosk machines keep drafts off the
// local disk.
type PostgresStore struct {
	pool    *pgxpool.Pool
	profile string
}

func NewPostgresStore(pool *pgxpool.Pool, profile string) *PostgresStore {
	if profile == "" {
		profile = "default"
	}
	return &PostgresStore{pool: pool, profile: profile}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM local_storage WHERE profile = $1 AND key = $2`, s.profile, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", draft.ErrNotFound
		}
		return "", fmt.Errorf("pg store get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO local_storage (profile, key, value, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.profile, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pg store set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM local_storage WHERE profile = $1 AND key = $2`, s.profile, key); err != nil {
		return fmt.Errorf("pg store remove %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM local_storage WHERE profile = $1 ORDER BY key`, s.profile)
	if err != nil {
		return nil, fmt.Errorf("pg store keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
