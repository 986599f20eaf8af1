package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ErronZrz/rank-poll/internal/core"
	goredis "github.com/redis/go-redis/v9"
)

const KeyPollResult = "poll_result"

// ResultCache keeps the latest instant-runoff outcome so page loads skip the recount.
type ResultCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewResultCache(rdb goredis.Cmdable, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// Get reports a miss as (nil, nil).
func (c *ResultCache) Get(ctx context.Context) (*core.Result[core.Item], error) {
	raw, err := c.rdb.Get(ctx, KeyPollResult).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get result: %w", err)
	}
	var res core.Result[core.Item]
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &res, nil
}

func (c *ResultCache) Set(ctx context.Context, res *core.Result[core.Item]) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, KeyPollResult, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set result: %w", err)
	}
	return nil
}

func (c *ResultCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, KeyPollResult).Err(); err != nil {
		return fmt.Errorf("redis invalidate result: %w", err)
	}
	return nil
}
