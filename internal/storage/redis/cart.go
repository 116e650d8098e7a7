// Package redis implements the durable cart storage backend. Each session's
// cart is one serialized JSON array under a single key, fully overwritten on
// every mutation and deleted on clear.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/sellergate/storefront/internal/domain/cart"
)

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage stores carts in Redis under "cart:<owner>".
type CartStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStorage creates a CartStorage. ttl bounds how long an abandoned
// cart survives; zero means no expiry.
func NewCartStorage(client *redis.Client, ttl time.Duration) *CartStorage {
	return &CartStorage{
		client: client,
		ttl:    ttl,
	}
}

func key(owner string) string {
	return cart.Key + ":" + owner
}

func (s *CartStorage) Read(ctx context.Context, owner string) ([]byte, error) {
	data, err := s.client.Get(ctx, key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}

func (s *CartStorage) Write(ctx context.Context, owner string, data []byte) error {
	if err := s.client.Set(ctx, key(owner), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *CartStorage) Remove(ctx context.Context, owner string) error {
	n, err := s.client.Del(ctx, key(owner)).Result()
	if err != nil {
		return errors.Wrap(err, "redis del")
	}
	if n == 0 {
		return cart.ErrNotFound
	}
	return nil
}
