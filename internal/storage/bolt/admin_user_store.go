package bolt

import (
	"context"
	"time"

	"github.com/goodtune/folio/internal/storage"
	"go.etcd.io/bbolt"
)

type adminUserStore struct {
	db *bbolt.DB
}

// Get retrieves an admin user by username.
func (s *adminUserStore) Get(ctx context.Context, username string) (*storage.AdminUser, error) {
	return getBucketValue[storage.AdminUser](ctx, s.db, bucketAdminUsers, username)
}

// List retrieves all admin users.
func (s *adminUserStore) List(ctx context.Context) ([]storage.AdminUser, error) {
	return listBucket[storage.AdminUser](ctx, s.db, bucketAdminUsers)
}

// Upsert creates or updates an admin user, keyed by username.
func (s *adminUserStore) Upsert(ctx context.Context, user storage.AdminUser) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	return putBucketValue(ctx, s.db, bucketAdminUsers, user.Username, user)
}

// Delete removes an admin user by username.
func (s *adminUserStore) Delete(ctx context.Context, username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAdminUsers))
		if bucket == nil || bucket.Get([]byte(username)) == nil {
			return storage.ErrNotFound
		}
		return bucket.Delete([]byte(username))
	})
}

// UpdateLastLogin records a successful sign-in for username.
func (s *adminUserStore) UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketAdminUsers))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(username))
		if data == nil {
			return storage.ErrNotFound
		}

		var user storage.AdminUser
		if err := unmarshal(data, &user); err != nil {
			return err
		}

		user.LastLogin = &loginTime
		user.UpdatedAt = time.Now()

		updated, err := marshal(user)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(username), updated)
	})
}
