// Package store persists last-known-good query results across process
// restarts. It is the server-side analogue of the dashboard's offline cache:
// when the upstream API is down and the in-memory cache is cold, a stored
// snapshot is still better than an error.
//
// The Postgres backend doubles as the shared cache for multi-process
// deployments, where an in-process map cannot provide cross-instance reuse.
package store

import (
	"context"
	"time"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// Snapshot is one stored query result.
type Snapshot struct {
	Key       string           `json:"key"`
	Records   []datagov.Record `json:"records"`
	Total     int              `json:"total"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Stale reports whether the snapshot is past its expiry.
func (s *Snapshot) Stale(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is the snapshot persistence interface. A miss is (nil, nil); errors
// are reserved for storage failures.
type Store interface {
	// GetSnapshot returns the unexpired snapshot for key, if any.
	GetSnapshot(ctx context.Context, key string) (*Snapshot, error)

	// GetSnapshotStale returns the snapshot for key regardless of expiry.
	// Used only on the upstream-failure path.
	GetSnapshotStale(ctx context.Context, key string) (*Snapshot, error)

	// SetSnapshot upserts the snapshot for key with a fresh expiry.
	SetSnapshot(ctx context.Context, key string, records []datagov.Record, total int, ttl time.Duration) error

	// DeleteExpired removes expired snapshots and reports how many.
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
