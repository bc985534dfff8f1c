package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/domain/product"
)

// DefaultTTL is the expiry of cached entries when none is configured.
const DefaultTTL = 5 * time.Minute

var _ catalog.Cache = (*Redis)(nil)

// Redis is a catalog.Cache backed by a Redis server. It does not own the
// client: the caller creates it, and closes it on shutdown.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis returns a Redis cache storing keys under prefix with the given
// TTL. A non-positive ttl falls back to DefaultTTL.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// GetProductList implements catalog.Cache.
func (c *Redis) GetProductList(ctx context.Context, categoryID int64, offset, limit int) ([]product.Product, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+ListKey(categoryID, offset, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "redis get product list")
	}

	products, err := DecodeProducts(data)
	if err != nil {
		return nil, false, err
	}
	return products, true, nil
}

// SetProductList implements catalog.Cache.
func (c *Redis) SetProductList(ctx context.Context, products []product.Product, categoryID int64, offset, limit int) error {
	key := c.prefix + ListKey(categoryID, offset, limit)
	if err := c.client.Set(ctx, key, EncodeProducts(products), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set product list")
	}
	return nil
}

// GetProductCount implements catalog.Cache.
func (c *Redis) GetProductCount(ctx context.Context, categoryID int64) (int64, bool, error) {
	n, err := c.client.Get(ctx, c.prefix+CountKey(categoryID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "redis get product count")
	}
	return n, true, nil
}

// SetProductCount implements catalog.Cache.
func (c *Redis) SetProductCount(ctx context.Context, count int64, categoryID int64) error {
	if err := c.client.Set(ctx, c.prefix+CountKey(categoryID), count, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set product count")
	}
	return nil
}

// Ping reports whether the server is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
