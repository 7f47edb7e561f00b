package redis

import (
	"context"
	"time"

	"github.com/goodtune/folio/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	upsertAdminUser     = redis.NewScript(upsertAdminUserScript)
	updateLastLogin     = redis.NewScript(updateLastLoginScript)
	deleteAdminUserHash = redis.NewScript(deleteAdminUserScript)
)

type adminUserStore struct {
	client *redis.Client
	keys   keyspace
}

// Get retrieves an admin user by username
func (s *adminUserStore) Get(ctx context.Context, username string) (*storage.AdminUser, error) {
	data, err := s.client.HGetAll(ctx, s.keys.adminUser(username)).Result()
	if err != nil {
		return nil, err
	}
	return parseAdminUser(data)
}

// List retrieves all admin users
func (s *adminUserStore) List(ctx context.Context) ([]storage.AdminUser, error) {
	usernames, err := s.client.SMembers(ctx, s.keys.adminUsers()).Result()
	if err != nil {
		return nil, err
	}

	if len(usernames) == 0 {
		return []storage.AdminUser{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(usernames))
	for i, username := range usernames {
		cmds[i] = pipe.HGetAll(ctx, s.keys.adminUser(username))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	users := make([]storage.AdminUser, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue // set member without a hash
		}
		user, err := parseAdminUser(data)
		if err != nil {
			continue
		}
		users = append(users, *user)
	}

	return users, nil
}

// Upsert creates or updates an admin user. created_at and last_login of an
// existing user are preserved.
func (s *adminUserStore) Upsert(ctx context.Context, user storage.AdminUser) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	keys := []string{s.keys.adminUser(user.Username), s.keys.adminUsers()}
	args := []interface{}{
		user.ID,
		user.Username,
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	}

	return upsertAdminUser.Run(ctx, s.client, keys, args...).Err()
}

// Delete removes an admin user by username
func (s *adminUserStore) Delete(ctx context.Context, username string) error {
	keys := []string{s.keys.adminUser(username), s.keys.adminUsers()}

	deleted, err := deleteAdminUserHash.Run(ctx, s.client, keys, username).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateLastLogin records a successful sign-in for username
func (s *adminUserStore) UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error {
	keys := []string{s.keys.adminUser(username)}

	updated, err := updateLastLogin.Run(ctx, s.client, keys, formatTime(loginTime), formatTime(time.Now())).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return storage.ErrNotFound
	}
	return nil
}
