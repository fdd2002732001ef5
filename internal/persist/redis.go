package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisPersister keeps the engine state as a JSON value under a fixed key.
// No TTL: cart state must survive until the user clears it.
type RedisPersister struct {
	client     *redis.Client
	storageKey string
}

func NewRedisPersister(client *redis.Client, storageKey string) *RedisPersister {
	return &RedisPersister{client: client, storageKey: storageKey}
}

func (p *RedisPersister) Load(ctx context.Context) (*domain.PersistedState, error) {
	data, err := p.client.Get(ctx, p.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load failed: %w", err)
	}

	var state domain.PersistedState
	if e2 := json.Unmarshal(data, &state); e2 != nil {
		return nil, fmt.Errorf("unmarshal cart state failed: %w", e2)
	}
	return &state, nil
}

func (p *RedisPersister) Save(ctx context.Context, state *domain.PersistedState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart state failed: %w", err)
	}

	if ret := p.client.Set(ctx, p.key(), string(payload), 0); ret.Err() != nil {
		return fmt.Errorf("redis save failed: %w", ret.Err())
	}
	return nil
}

func (p *RedisPersister) key() string {
	return fmt.Sprintf("cartsync:%s", p.storageKey)
}
