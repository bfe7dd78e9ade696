package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/redis"
)

// lease is the part of *redis.Lock the locker needs.
type lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// RedisLocker holds a Redis lease for the duration of a run so that only
// one indexer process rebuilds at a time. The lease is renewed every third
// of its TTL until released. If renewal fails (Redis unreachable for longer
// than the TTL) the lease can lapse and a second process may start a run;
// writes stay serialised by the advisory lock the store takes inside its
// transaction.
type RedisLocker struct {
	acquire func(ctx context.Context, key string, ttl time.Duration) (lease, error)
	key     string
	ttl     time.Duration
	logger  *slog.Logger
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return newLocker(func(ctx context.Context, key string, ttl time.Duration) (lease, error) {
		lock, err := client.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		return lock, nil
	}, key, ttl)
}

func newLocker(acquire func(context.Context, string, time.Duration) (lease, error), key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		acquire: acquire,
		key:     key,
		ttl:     ttl,
		logger:  slog.Default().With("component", "run-lock", "key", key),
	}
}

func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	held, err := l.acquire(ctx, l.key, l.ttl)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, apperrors.Newf(apperrors.ErrRunInProgress, "lock %s is held", l.key)
	}
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.renew(held, stop)
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
		return held.Release(ctx)
	}, nil
}

func (l *RedisLocker) renew(held lease, stop <-chan struct{}) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := held.Extend(ctx, l.ttl)
			cancel()
			if errors.Is(err, redis.ErrLockLost) {
				l.logger.Error("run lock lost, another rebuild may start")
				return
			}
			if err != nil {
				l.logger.Warn("extending run lock failed", "error", err)
			}
		}
	}
}
