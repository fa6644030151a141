package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// VersionCounter hands out the next version for a source stem. highest is
// the largest version already present on disk; callers hold the per-stem
// lock while calling Next and writing the file.
type VersionCounter interface {
	Next(ctx context.Context, stem string, highest int) (int, error)
}

// LocalCounter derives the next version from the files on disk. It is safe
// because Store serializes saves per stem within the process.
type LocalCounter struct{}

func (LocalCounter) Next(_ context.Context, _ string, highest int) (int, error) {
	return highest + 1, nil
}

// RedisCounter keeps an INCR counter per stem so several processes sharing
// a results directory never hand out the same version.
type RedisCounter struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisCounter(rdb redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "callinsights:version:"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

func (c *RedisCounter) Next(ctx context.Context, stem string, highest int) (int, error) {
	key := c.prefix + stem
	// seed from disk the first time a stem is seen
	if err := c.rdb.SetNX(ctx, key, highest, 0).Err(); err != nil {
		return 0, fmt.Errorf("seed version counter: %w", err)
	}
	v, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr version counter: %w", err)
	}
	if int(v) <= highest {
		// files were written behind the counter's back
		if err := c.rdb.Set(ctx, key, highest+1, 0).Err(); err != nil {
			return 0, fmt.Errorf("reset version counter: %w", err)
		}
		return highest + 1, nil
	}
	return int(v), nil
}
