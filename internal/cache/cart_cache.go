package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/climastore/backend/internal/entity"
)

// CartCache is a read-through cache for cart snapshots, keyed by owner.
// Every cart mutation invalidates the owner's entry; a cache failure is
// only ever a miss, never an error surfaced to the caller.
type CartCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartCache(client *redis.Client, ttl time.Duration) *CartCache {
	return &CartCache{client: client, ttl: ttl}
}

func cacheKey(owner entity.CartOwner) string {
	return "cart:" + owner.Key()
}

func (c *CartCache) Get(ctx context.Context, owner entity.CartOwner) (*entity.Cart, bool) {
	data, err := c.client.Get(ctx, cacheKey(owner)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("Cart cache read failed", "owner", owner.Key(), "err", err)
		return nil, false
	}

	var cart entity.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		slog.Warn("Cart cache entry corrupt, dropping", "owner", owner.Key(), "err", err)
		c.Invalidate(ctx, owner)
		return nil, false
	}
	return &cart, true
}

func (c *CartCache) Set(ctx context.Context, cart *entity.Cart) {
	data, err := json.Marshal(cart)
	if err != nil {
		slog.Warn("Failed to marshal cart for cache", "cart_id", cart.ID, "err", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(cart.Owner), data, c.ttl).Err(); err != nil {
		slog.Warn("Cart cache write failed", "cart_id", cart.ID, "err", err)
	}
}

func (c *CartCache) Invalidate(ctx context.Context, owner entity.CartOwner) {
	if err := c.client.Del(ctx, cacheKey(owner)).Err(); err != nil {
		slog.Warn("Cart cache invalidation failed", "owner", owner.Key(), "err", err)
	}
}
