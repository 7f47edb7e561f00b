package auth

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/folio/internal/storage"
	"github.com/rs/zerolog"
)

// EnsureInitialUser creates the initial admin user if no users exist.
func EnsureInitialUser(ctx context.Context, users storage.AdminUserStore, username, password string, logger zerolog.Logger) error {
	existing, err := users.List(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		logger.Info().Int("count", len(existing)).Msg("Admin users already exist")
		return nil
	}

	if username == "" {
		username = "admin"
	}

	if password == "" {
		return errors.New("initial admin password cannot be empty")
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now()
	user := storage.AdminUser{
		ID:           "admin-1",
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := users.Upsert(ctx, user); err != nil {
		return err
	}

	logger.Info().
		Str("username", username).
		Msg("Created initial admin user")

	if password == "admin" || password == "password" || password == "changeme" {
		logger.Warn().Msg("Using a default admin password; change it with 'folio user passwd'")
	}

	return nil
}
