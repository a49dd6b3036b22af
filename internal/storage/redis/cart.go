// Package redis holds the Redis-backed cart store. Carts are working state,
// not records: they live under a TTL and a corrupt value reads as empty.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/franchiseos/supply-api/internal/domain/cart"
)

const defaultTTL = 30 * 24 * time.Hour

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store on Redis. Each franchise owns two keys:
// the item list and the pending redemption request.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore returns a CartStore with the default TTL.
func NewCartStore(client *redis.Client) *CartStore {
	return &CartStore{client: client, ttl: defaultTTL}
}

func itemsKey(franchiseID string) string      { return "cart:" + franchiseID }
func redemptionKey(franchiseID string) string { return "cart:redeem:" + franchiseID }

// Items returns the franchise's cart lines. A missing key is an empty cart;
// a malformed value is dropped and also reads as empty.
func (s *CartStore) Items(ctx context.Context, franchiseID string) ([]cart.Item, error) {
	key := itemsKey(franchiseID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	var items []cart.Item
	if err := json.Unmarshal(data, &items); err != nil {
		s.dropCorrupt(ctx, key, err)
		return nil, nil
	}
	return items, nil
}

// SaveItems replaces the franchise's cart lines and refreshes the TTL.
func (s *CartStore) SaveItems(ctx context.Context, franchiseID string, items []cart.Item) error {
	key := itemsKey(franchiseID)

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Redemption returns the pending point redemption request, zero when absent
// or corrupt.
func (s *CartStore) Redemption(ctx context.Context, franchiseID string) (cart.Redemption, error) {
	key := redemptionKey(franchiseID)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Redemption{}, nil
	}
	if err != nil {
		return cart.Redemption{}, fmt.Errorf("redis get %q: %w", key, err)
	}

	var r cart.Redemption
	if err := json.Unmarshal(data, &r); err != nil {
		s.dropCorrupt(ctx, key, err)
		return cart.Redemption{}, nil
	}
	return r, nil
}

// SaveRedemption replaces the pending redemption request.
func (s *CartStore) SaveRedemption(ctx context.Context, franchiseID string, r cart.Redemption) error {
	key := redemptionKey(franchiseID)

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal redemption: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Clear removes the cart and any pending redemption, called after checkout.
func (s *CartStore) Clear(ctx context.Context, franchiseID string) error {
	keys := []string{itemsKey(franchiseID), redemptionKey(franchiseID)}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del cart %q: %w", franchiseID, err)
	}
	return nil
}

func (s *CartStore) dropCorrupt(ctx context.Context, key string, cause error) {
	zctx.From(ctx).Warn("dropping corrupt cart key",
		zap.String("key", key), zap.Error(cause))
	if err := s.client.Del(ctx, key).Err(); err != nil {
		zctx.From(ctx).Warn("deleting corrupt cart key", zap.String("key", key), zap.Error(err))
	}
}
