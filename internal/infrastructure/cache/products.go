package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/pkg/logger"
)

const keyPrefix = "pharmastock:catalog:products:"

// ProductCatalog is a read-through Redis cache in front of the product table.
//
// Only values that do not go stale with stock movements are cached: the
// code to id index and the product count. Lookups always return the product
// read by id from the underlying catalog, so running totals stay exact.
// Redis failures degrade to the underlying catalog.
type ProductCatalog struct {
	inner  catalogs.ProductCatalog
	client redis.UniversalClient
	ttl    time.Duration
}

var _ catalogs.ProductCatalog = (*ProductCatalog)(nil)

// NewProductCatalog wraps inner.
func NewProductCatalog(inner catalogs.ProductCatalog, client redis.UniversalClient, ttl time.Duration) *ProductCatalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProductCatalog{inner: inner, client: client, ttl: ttl}
}

func codeKey(code string) string { return keyPrefix + "code:" + catalogs.NormalizeCode(code) }

func countKey() string { return keyPrefix + "count" }

// GetByCode resolves code through the cached index.
func (c *ProductCatalog) GetByCode(ctx context.Context, code string) (*catalogs.Product, error) {
	key := codeKey(code)
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if productID, perr := id.Parse(cached); perr == nil {
			p, err := c.inner.GetByID(ctx, productID)
			if err == nil {
				return p, nil
			}
			if !apperror.IsNotFound(err) {
				return nil, err
			}
		}
		c.forget(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "get", err)
	}

	p, err := c.inner.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, p.ID.String(), c.ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
	}
	return p, nil
}

// GetByID is not cached.
func (c *ProductCatalog) GetByID(ctx context.Context, productID id.ID) (*catalogs.Product, error) {
	return c.inner.GetByID(ctx, productID)
}

// SearchByDescription is not cached.
func (c *ProductCatalog) SearchByDescription(ctx context.Context, query string) ([]catalogs.Product, error) {
	return c.inner.SearchByDescription(ctx, query)
}

// List is not cached.
func (c *ProductCatalog) List(ctx context.Context) ([]catalogs.Product, error) {
	return c.inner.List(ctx)
}

// Count caches the product count.
func (c *ProductCatalog) Count(ctx context.Context) (int, error) {
	cached, err := c.client.Get(ctx, countKey()).Result()
	switch {
	case err == nil:
		if n, perr := strconv.Atoi(cached); perr == nil {
			return n, nil
		}
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "get", err)
	}

	n, err := c.inner.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, countKey(), n, c.ttl).Err(); err != nil {
		c.warn(ctx, "set", err)
	}
	return n, nil
}

// Invalidate drops every cached product entry.
func (c *ProductCatalog) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Unlink(ctx, keys...).Err()
}

// Listen returns an InvalidationListener that flushes the cache when the
// product table changes or the listener reconnects.
func (c *ProductCatalog) Listen() InvalidationListener {
	return func(ctx context.Context, channel, payload string) {
		if payload != "cat_products" && payload != "reconnect" {
			return
		}
		if err := c.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "product cache invalidation failed", "error", err)
		}
	}
}

func (c *ProductCatalog) forget(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.warn(ctx, "del", err)
	}
}

func (c *ProductCatalog) warn(ctx context.Context, op string, err error) {
	logger.Warn(ctx, "product cache unavailable", "op", op, "error", err)
}
