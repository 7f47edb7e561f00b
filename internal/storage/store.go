package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Local() KV
	AdminUsers() AdminUserStore
}

// KV is a flat string key/value namespace with the semantics of browser
// Web Storage: values are opaque strings, writes overwrite, and deleting a
// missing key is not an error.
type KV interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// AdminUserStore manages admin user accounts.
type AdminUserStore interface {
	Get(ctx context.Context, username string) (*AdminUser, error)
	List(ctx context.Context) ([]AdminUser, error)
	Upsert(ctx context.Context, user AdminUser) error
	Delete(ctx context.Context, username string) error
	UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error
}
