// README: Redis-backed short-lived route cache shared by every API instance.
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rideflow/internal/types"
)

// Cacher stores bundles by key. A miss is (Bundle{}, false, nil).
type Cacher interface {
	Get(ctx context.Context, key types.RouteKey) (Bundle, bool, error)
	Set(ctx context.Context, b Bundle) error
}

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redis *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: redis, ttl: ttl}
}

func cacheKey(key types.RouteKey) string {
	return "rideflow:route:" + strings.ToLower(key.Pickup) + "|" + strings.ToLower(key.Dropoff)
}

func (s *Store) Get(ctx context.Context, key types.RouteKey) (Bundle, bool, error) {
	raw, err := s.redis.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Bundle{}, false, nil
	}
	if err != nil {
		return Bundle{}, false, fmt.Errorf("route cache get: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, false, fmt.Errorf("route cache decode: %w", err)
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, b Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("route cache encode: %w", err)
	}
	if err := s.redis.Set(ctx, cacheKey(b.Key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("route cache set: %w", err)
	}
	return nil
}
