package redis

import (
	"context"
	"fmt"
)

// scanCount is the SCAN page size hint.
const scanCount = 100

// FlushByPattern removes every key matching the glob pattern and returns
// how many were removed. Keys are unlinked one SCAN page at a time, so the
// server never blocks on a large keyspace.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys matching %q: %w", len(keys), pattern, err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
