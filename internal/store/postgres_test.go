package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT cache_key, records, total, cached_at, expires_at FROM snapshot_cache`).
		WithArgs("unknown-key").
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.GetSnapshot(context.Background(), "unknown-key")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cachedAt := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"cache_key", "records", "total", "cached_at", "expires_at"}).
		AddRow("jharkhand::ranchi", []byte(`[{"district_name":"Ranchi"}]`), 1, cachedAt, cachedAt.Add(time.Hour))
	mock.ExpectQuery(`SELECT cache_key, records, total, cached_at, expires_at FROM snapshot_cache WHERE cache_key = \$1 AND expires_at > now\(\)`).
		WithArgs("jharkhand::ranchi").
		WillReturnRows(rows)

	snap, err := s.GetSnapshot(context.Background(), "jharkhand::ranchi")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Total)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Ranchi", snap.Records[0].String("district_name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshotStale_IgnoresExpiry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cachedAt := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"cache_key", "records", "total", "cached_at", "expires_at"}).
		AddRow("stale-key", []byte(`[]`), 0, cachedAt, cachedAt.Add(-time.Hour))
	mock.ExpectQuery(`SELECT cache_key, records, total, cached_at, expires_at FROM snapshot_cache WHERE cache_key = \$1$`).
		WithArgs("stale-key").
		WillReturnRows(rows)

	snap, err := s.GetSnapshotStale(context.Background(), "stale-key")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSnapshot_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "jharkhand::ranchi", pgxmock.AnyArg(), 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetSnapshot(context.Background(), "jharkhand::ranchi", testRecords(), 3, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM snapshot_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
