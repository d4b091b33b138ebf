// Package cache provides the geo-cell cache that gates calls to external
// providers. Keys are quantized (latitude, longitude[, radius]) cells, so
// repeated queries in the same cell reuse one entry. Entries carry a TTL;
// a read past expiry is a miss. Writes are upserts keyed by the cell:
// concurrent writers converge to one row per key with last write winning,
// which is safe because entries are idempotent recomputations of the same
// external truth.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
)

// Entry is the metadata attached to a cached payload.
type Entry struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is a key-value store with TTL semantics. Implementations must
// treat entries whose ExpiresAt has passed as misses on Get, and Put must
// create-or-replace so the store never holds two rows for one key.
type Store interface {
	// Get unmarshals the cached payload for key into dest and returns its
	// metadata. Returns found=false on a miss or an expired entry.
	Get(ctx context.Context, key string, dest any) (Entry, bool, error)

	// Put upserts the payload under key with the given TTL.
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Stats summarizes store contents for health reporting.
type Stats struct {
	TotalEntries int `json:"total_entries"`
	FreshEntries int `json:"fresh_entries"`
	StaleEntries int `json:"stale_entries"`
}

// StatsProvider is implemented by stores that can report usage stats.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// CellKey builds the cache key for a quantized geographic cell. The
// prefix namespaces payload kinds (weather, alerts, places), decimals
// controls the cell size, and a positive radius becomes part of the key
// so different search radii don't collide.
func CellKey(prefix string, p geo.Point, decimals int, radiusKm float64) string {
	q := geo.Quantize(p, decimals)
	key := fmt.Sprintf("%s:%.*f:%.*f", prefix, decimals, q.Latitude, decimals, q.Longitude)
	if radiusKm > 0 {
		key = fmt.Sprintf("%s:r%g", key, radiusKm)
	}
	return key
}
