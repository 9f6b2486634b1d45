package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opencartlab/cart-service/internal/entity"
)

const couponTTL = 30 * time.Second

// CouponCache is a short-TTL cache of coupon records keyed by code. Cache
// failures degrade to repository reads rather than failing the request.
type CouponCache interface {
	// Get returns the cached coupon for code, or nil on miss.
	Get(ctx context.Context, code string) *entity.Coupon
	Set(ctx context.Context, coupon *entity.Coupon)
	Invalidate(ctx context.Context, code string)
}

// NewCouponCache returns a redis-backed CouponCache; a nil client disables
// caching entirely.
func NewCouponCache(client *redis.Client) CouponCache {
	if client == nil {
		return NopCache{}
	}
	return &redisCouponCache{client: client}
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, code string) *entity.Coupon { return nil }
func (NopCache) Set(ctx context.Context, coupon *entity.Coupon)      {}
func (NopCache) Invalidate(ctx context.Context, code string)         {}

type redisCouponCache struct {
	client *redis.Client
}

func key(code string) string {
	return "coupon:" + code
}

func (c *redisCouponCache) Get(ctx context.Context, code string) *entity.Coupon {
	raw, err := c.client.Get(ctx, key(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("coupon cache read failed", "code", code, "err", err)
		}
		return nil
	}
	var coupon entity.Coupon
	if err := json.Unmarshal(raw, &coupon); err != nil {
		slog.Warn("coupon cache entry corrupt, dropping", "code", code, "err", err)
		c.Invalidate(ctx, code)
		return nil
	}
	return &coupon
}

func (c *redisCouponCache) Set(ctx context.Context, coupon *entity.Coupon) {
	raw, err := json.Marshal(coupon)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(coupon.Code), raw, couponTTL).Err(); err != nil {
		slog.Warn("coupon cache write failed", "code", coupon.Code, "err", err)
	}
}

func (c *redisCouponCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, key(code)).Err(); err != nil {
		slog.Warn("coupon cache invalidation failed", "code", code, "err", err)
	}
}
