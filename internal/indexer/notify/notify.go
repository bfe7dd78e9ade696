// Package notify tells the rest of the platform that a new index has been
// committed: a completion event on Kafka for downstream services and a
// flush of cached search results in Redis.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// KafkaNotifier publishes an IndexRebuiltEvent keyed by run id.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

func (n *KafkaNotifier) Notify(ctx context.Context, event indexer.IndexRebuiltEvent) error {
	if err := n.publisher.Publish(ctx, event.RunID, event); err != nil {
		return fmt.Errorf("publishing index rebuilt event: %w", err)
	}
	return nil
}

// Flusher is satisfied by *redis.Client.
type Flusher interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CacheInvalidator drops cached search results that were computed against
// the previous index.
type CacheInvalidator struct {
	flusher Flusher
	pattern string
	logger  *slog.Logger
}

func NewCacheInvalidator(flusher Flusher, pattern string) *CacheInvalidator {
	return &CacheInvalidator{
		flusher: flusher,
		pattern: pattern,
		logger:  slog.Default().With("component", "cache-invalidator"),
	}
}

func (c *CacheInvalidator) Name() string { return "cache" }

func (c *CacheInvalidator) Notify(ctx context.Context, event indexer.IndexRebuiltEvent) error {
	deleted, err := c.flusher.FlushByPattern(ctx, c.pattern)
	if err != nil {
		return fmt.Errorf("flushing %q: %w", c.pattern, err)
	}
	c.logger.Info("search cache invalidated",
		"run_id", event.RunID,
		"pattern", c.pattern,
		"keys_deleted", deleted,
	)
	return nil
}
