// Package cache keeps short-lived push token state in Redis.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const suppressedPrefix = "push:token:suppressed:"

// TokenCache marks push tokens the transport has rejected so they are not
// resolved again before the token directory is cleaned up. A nil *TokenCache
// is valid and suppresses nothing.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to the Redis instance at url (redis://...).
func New(url string, ttl time.Duration, logger *zap.Logger) (*TokenCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewWithClient(redis.NewClient(opts), ttl, logger), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TokenCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenCache{client: client, ttl: ttl, logger: logger}
}

// Ping checks connectivity.
func (c *TokenCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *TokenCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// IsSuppressed reports whether token is currently marked stale.
func (c *TokenCache) IsSuppressed(ctx context.Context, token string) (bool, error) {
	if c == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, suppressedPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Suppress marks tokens stale for the cache TTL.
func (c *TokenCache) Suppress(ctx context.Context, tokens []string) error {
	if c == nil || len(tokens) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, t := range tokens {
		pipe.SetEX(ctx, suppressedPrefix+t, "1", c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// FilterSuppressed drops suppressed tokens. Redis errors fail open.
func (c *TokenCache) FilterSuppressed(ctx context.Context, tokens []string) []string {
	if c == nil || len(tokens) == 0 {
		return tokens
	}
	pipe := c.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(tokens))
	for i, t := range tokens {
		cmds[i] = pipe.Exists(ctx, suppressedPrefix+t)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("token suppression lookup failed", zap.Error(err))
		return tokens
	}

	out := make([]string, 0, len(tokens))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			out = append(out, tokens[i])
		}
	}
	return out
}
