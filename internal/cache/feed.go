// Package cache is a thin Redis layer in front of the candidate feed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// feedTTL keeps pages fresh enough that staleness from OTHER pets'
// activity (which we can't invalidate per-requester) stays short-lived.
const feedTTL = 30 * time.Second

// FeedCache caches candidate-feed pages per pet.
//
// Invalidation uses a per-pet version counter instead of scanning keys:
// every page key embeds the pet's current version, and Invalidate just
// bumps the counter, orphaning all old pages at once. Orphans expire via
// TTL.
type FeedCache struct {
	client *redis.Client
	log    *zap.Logger
}

// New connects to Redis and pings it. A dead Redis returns an error so
// the caller can decide to run uncached rather than half-broken.
func New(ctx context.Context, redisURL string, log *zap.Logger) (*FeedCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info("redis connection established", zap.String("addr", opts.Addr))
	return &FeedCache{client: client, log: log.With(zap.String("module", "feedcache"))}, nil
}

func (c *FeedCache) Close() error {
	return c.client.Close()
}

func (c *FeedCache) versionKey(petID uuid.UUID) string {
	return "pawmates:feedver:" + petID.String()
}

func (c *FeedCache) pageKey(petID uuid.UUID, version int64, params string) string {
	return fmt.Sprintf("pawmates:feed:%s:%d:%s", petID, version, params)
}

func (c *FeedCache) version(ctx context.Context, petID uuid.UUID) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(petID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// GetFeed implements matching.FeedCache.
func (c *FeedCache) GetFeed(ctx context.Context, petID uuid.UUID, params string, dest any) (bool, error) {
	version, err := c.version(ctx, petID)
	if err != nil {
		return false, fmt.Errorf("read feed version: %w", err)
	}

	data, err := c.client.Get(ctx, c.pageKey(petID, version, params)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read feed page: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode feed page: %w", err)
	}
	return true, nil
}

// SetFeed implements matching.FeedCache.
func (c *FeedCache) SetFeed(ctx context.Context, petID uuid.UUID, params string, value any) error {
	version, err := c.version(ctx, petID)
	if err != nil {
		return fmt.Errorf("read feed version: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode feed page: %w", err)
	}

	if err := c.client.Set(ctx, c.pageKey(petID, version, params), data, feedTTL).Err(); err != nil {
		return fmt.Errorf("write feed page: %w", err)
	}
	return nil
}

// Invalidate implements matching.FeedCache by bumping the pet's version.
func (c *FeedCache) Invalidate(ctx context.Context, petID uuid.UUID) error {
	if err := c.client.Incr(ctx, c.versionKey(petID)).Err(); err != nil {
		return fmt.Errorf("bump feed version: %w", err)
	}
	return nil
}
