package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshot_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	records    TEXT NOT NULL,
	total      INTEGER NOT NULL DEFAULT 0,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_cache_expires_at ON snapshot_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	return s.get(ctx, key, false)
}

func (s *SQLiteStore) GetSnapshotStale(ctx context.Context, key string) (*Snapshot, error) {
	return s.get(ctx, key, true)
}

func (s *SQLiteStore) get(ctx context.Context, key string, includeExpired bool) (*Snapshot, error) {
	query := `SELECT cache_key, records, total, cached_at, expires_at FROM snapshot_cache WHERE cache_key = ?`
	if !includeExpired {
		query += ` AND expires_at > datetime('now')`
	}

	var snap Snapshot
	var recordsJSON string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&snap.Key, &recordsJSON, &snap.Total, &snap.CachedAt, &snap.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot")
	}

	if err := json.Unmarshal([]byte(recordsJSON), &snap.Records); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode snapshot records")
	}
	return &snap, nil
}

func (s *SQLiteStore) SetSnapshot(ctx context.Context, key string, records []datagov.Record, total int, ttl time.Duration) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode snapshot records")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshot_cache (id, cache_key, records, total, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			records = excluded.records,
			total = excluded.total,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		uuid.NewString(), key, string(recordsJSON), total, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set snapshot")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshot_cache WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired snapshots")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
