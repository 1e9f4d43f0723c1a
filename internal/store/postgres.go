package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// Pool is the subset of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool. It is the backend to use when
// several dashboard instances share one snapshot cache.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or a mock in tests).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshot_cache (
	id         UUID PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	records    JSONB NOT NULL,
	total      INTEGER NOT NULL DEFAULT 0,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_cache_expires_at ON snapshot_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	return s.get(ctx, key, false)
}

func (s *PostgresStore) GetSnapshotStale(ctx context.Context, key string) (*Snapshot, error) {
	return s.get(ctx, key, true)
}

func (s *PostgresStore) get(ctx context.Context, key string, includeExpired bool) (*Snapshot, error) {
	query := `SELECT cache_key, records, total, cached_at, expires_at FROM snapshot_cache WHERE cache_key = $1`
	if !includeExpired {
		query += ` AND expires_at > now()`
	}

	var snap Snapshot
	var recordsJSON []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&snap.Key, &recordsJSON, &snap.Total, &snap.CachedAt, &snap.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get snapshot")
	}

	if err := json.Unmarshal(recordsJSON, &snap.Records); err != nil {
		return nil, eris.Wrap(err, "postgres: decode snapshot records")
	}
	return &snap, nil
}

func (s *PostgresStore) SetSnapshot(ctx context.Context, key string, records []datagov.Record, total int, ttl time.Duration) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "postgres: encode snapshot records")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshot_cache (id, cache_key, records, total, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			records = EXCLUDED.records,
			total = EXCLUDED.total,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at`,
		uuid.New(), key, recordsJSON, total, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set snapshot")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshot_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired snapshots")
	}
	return int(tag.RowsAffected()), nil
}
