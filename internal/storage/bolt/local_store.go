package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/folio/internal/storage"
	"go.etcd.io/bbolt"
)

// localStore keeps raw string values in a single bucket. Values are stored
// as-is rather than JSON encoded so the file mirrors what the dashboard
// would have kept in browser storage.
type localStore struct {
	db *bbolt.DB
}

// Get returns the value stored under key.
func (s *localStore) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketLocal))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}

		// bbolt memory is only valid inside the transaction.
		value = string(data)
		return nil
	})

	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *localStore) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketLocal))
		if bucket == nil {
			return fmt.Errorf("bucket missing: %s", bucketLocal)
		}
		return bucket.Put([]byte(key), []byte(value))
	})
}

// Delete removes keys in a single transaction. Missing keys are ignored.
func (s *localStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketLocal))
		if bucket == nil {
			return nil
		}
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}
