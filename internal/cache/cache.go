package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourorg/clipqueue/internal/domain"
)

// Cache maps a source URL to a previously delivered artifact handle. One
// entry per URL; a later successful download overwrites. Hits refresh
// last_used_at so the sweep keeps frequently re-requested URLs warm.
type Cache struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Cache {
	return &Cache{Pool: pool}
}

// Lookup returns the cached entry for url, or nil on a miss. The hit and
// the last_used_at refresh are one statement, so two concurrent lookups
// cannot race the timestamp against the sweep.
func (c *Cache) Lookup(ctx context.Context, url string) (*domain.CacheEntry, error) {
	row := c.Pool.QueryRow(ctx, `
		UPDATE video_cache SET
			last_used_at = NOW()
		WHERE video_url = $1
		RETURNING video_url, file_id, file_size, cached_at, last_used_at`, url)

	var e domain.CacheEntry
	err := row.Scan(&e.URL, &e.FileID, &e.SizeBytes, &e.CachedAt, &e.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return &e, nil
}

// Store upserts the artifact handle for url.
func (c *Cache) Store(ctx context.Context, url, fileID string, sizeBytes int64) error {
	_, err := c.Pool.Exec(ctx, `
		INSERT INTO video_cache (video_url, file_id, file_size)
		VALUES ($1, $2, $3)
		ON CONFLICT (video_url) DO UPDATE SET
			file_id      = EXCLUDED.file_id,
			file_size    = EXCLUDED.file_size,
			cached_at    = NOW(),
			last_used_at = NOW()`, url, fileID, sizeBytes)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

func (c *Cache) Size(ctx context.Context) (int, error) {
	var n int
	if err := c.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM video_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache size: %w", err)
	}
	return n, nil
}

func (c *Cache) List(ctx context.Context) ([]domain.CacheEntry, error) {
	rows, err := c.Pool.Query(ctx, `
		SELECT video_url, file_id, file_size, cached_at, last_used_at
		FROM video_cache
		ORDER BY last_used_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		if err := rows.Scan(&e.URL, &e.FileID, &e.SizeBytes,
			&e.CachedAt, &e.LastUsedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sweep deletes entries not used within maxAge and returns the count.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := c.Pool.Exec(ctx, `
		DELETE FROM video_cache
		WHERE last_used_at < NOW() - ($1 * interval '1 second')`,
		int64(maxAge.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
