// internal/domain/cart/persister.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persister keeps a durable copy of session carts across restarts
type Persister interface {
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	// Load returns false when nothing is stored for the session
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// NopPersister keeps nothing
type NopPersister struct{}

func (NopPersister) Save(context.Context, string, Snapshot) error { return nil }

func (NopPersister) Load(context.Context, string) (Snapshot, bool, error) {
	return Snapshot{}, false, nil
}

func (NopPersister) Clear(context.Context, string) error { return nil }

// RedisPersister stores each cart as a JSON value with a sliding TTL
type RedisPersister struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPersister creates a Redis backed persister
func NewRedisPersister(client *redis.Client, ttl time.Duration) *RedisPersister {
	return &RedisPersister{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

// Save writes the full cart
func (r *RedisPersister) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Load reads a cart, returning false on a miss
func (r *RedisPersister) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load cart: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return snap, true, nil
}

// Clear deletes the stored cart
func (r *RedisPersister) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
