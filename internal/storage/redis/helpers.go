package redis

import (
	"fmt"
	"time"

	"github.com/goodtune/folio/internal/storage"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseAdminUser converts a Redis hash to AdminUser
func parseAdminUser(data map[string]string) (*storage.AdminUser, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	user := &storage.AdminUser{
		ID:           data["id"],
		Username:     data["username"],
		PasswordHash: data["password_hash"],
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}

	if raw := data["last_login"]; raw != "" {
		lastLogin, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_login: %w", err)
		}
		user.LastLogin = &lastLogin
	}

	return user, nil
}
