package redis

import (
	"context"
	"errors"

	"github.com/goodtune/folio/internal/storage"
	"github.com/redis/go-redis/v9"
)

type localStore struct {
	client *redis.Client
	keys   keyspace
}

// Get returns the value stored under key
func (s *localStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.keys.local(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key without expiry
func (s *localStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.keys.local(key), value, 0).Err()
}

// Delete removes keys with a single DEL; missing keys are ignored
func (s *localStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = s.keys.local(key)
	}
	return s.client.Del(ctx, names...).Err()
}
