package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// store works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a durable Store backed by a single geo_cache table.
// One row per quantized cell; Put is an ON CONFLICT upsert so concurrent
// writers for the same cell never duplicate rows.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a PostgresStore over the given connection.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS geo_cache (
			key        TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create geo_cache table: %w", err)
	}
	return nil
}

// Get implements Store. The expiry check happens in SQL so a stale row is
// indistinguishable from an absent one.
func (s *PostgresStore) Get(ctx context.Context, key string, dest any) (Entry, bool, error) {
	var payload []byte
	var fetchedAt, expiresAt time.Time

	err := s.db.QueryRow(ctx, `
		SELECT payload, fetched_at, expires_at
		FROM geo_cache
		WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&payload, &fetchedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache row %q: %w", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal(payload, dest); err != nil {
			return Entry{}, false, fmt.Errorf("unmarshal cached payload for %q: %w", key, err)
		}
	}

	return Entry{Key: key, FetchedAt: fetchedAt, ExpiresAt: expiresAt}, true, nil
}

// Put implements Store via upsert.
func (s *PostgresStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal payload for %q: %w", key, err)
	}

	now := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO geo_cache (key, payload, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload,
		    fetched_at = EXCLUDED.fetched_at,
		    expires_at = EXCLUDED.expires_at`,
		key, payload, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("upsert cache row %q: %w", key, err)
	}
	return nil
}

// Stats implements StatsProvider.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE expires_at > now()),
		       count(*) FILTER (WHERE expires_at <= now())
		FROM geo_cache`,
	).Scan(&stats.TotalEntries, &stats.FreshEntries, &stats.StaleEntries)
	if err != nil {
		return Stats{}, fmt.Errorf("read cache stats: %w", err)
	}
	return stats, nil
}

// CleanupStale deletes expired rows and returns how many were removed.
func (s *PostgresStore) CleanupStale(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM geo_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete stale cache rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
