// Package memory provides a process-local storage.KV. It stands in for
// browser sessionStorage: values live only as long as the process and are
// bounded in number and age, so one-shot values such as a logout reason
// cannot accumulate.
package memory

import (
	"context"
	"time"

	"github.com/goodtune/folio/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Ephemeral is a bounded, expiring key/value store.
type Ephemeral struct {
	cache *expirable.LRU[string, string]
}

// NewEphemeral creates a store holding at most capacity entries, each for
// at most ttl. A zero ttl keeps entries until they are evicted by capacity.
func NewEphemeral(capacity int, ttl time.Duration) *Ephemeral {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ephemeral{
		cache: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

// Get returns the value stored under key.
func (e *Ephemeral) Get(_ context.Context, key string) (string, error) {
	value, ok := e.cache.Get(key)
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set stores value under key.
func (e *Ephemeral) Set(_ context.Context, key, value string) error {
	e.cache.Add(key, value)
	return nil
}

// Delete removes keys; missing keys are ignored.
func (e *Ephemeral) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		e.cache.Remove(key)
	}
	return nil
}

// Len reports the number of live entries.
func (e *Ephemeral) Len() int {
	return e.cache.Len()
}
