package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/folio/internal/storage"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	local := store.Local()

	if _, err := local.Get(ctx, "admin_session_start_time"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := local.Set(ctx, "admin_session_start_time", "1700000000000"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := local.Set(ctx, "admin_session_start_time", "1700000001000"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, err := local.Get(ctx, "admin_session_start_time")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "1700000001000" {
		t.Fatalf("expected overwritten value, got %q", value)
	}
}

func TestLocalStoreDeleteIgnoresMissingKeys(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	local := store.Local()

	_ = local.Set(ctx, "a", "1")
	_ = local.Set(ctx, "b", "2")

	if err := local.Delete(ctx, "a", "b", "never-set"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, key := range []string{"a", "b"} {
		if _, err := local.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected %s to be deleted, got %v", key, err)
		}
	}
}

func TestLocalStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Local().Set(context.Background(), "admin_session_start_time", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	value, err := reopened.Local().Get(context.Background(), "admin_session_start_time")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if value != "42" {
		t.Fatalf("expected 42, got %q", value)
	}
}

func TestAdminUserStore(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	users := store.AdminUsers()

	if err := users.Upsert(ctx, storage.AdminUser{ID: "admin-1", Username: "admin", PasswordHash: "hash"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	user, err := users.Get(ctx, "admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set on upsert")
	}

	loginAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := users.UpdateLastLogin(ctx, "admin", loginAt); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	user, _ = users.Get(ctx, "admin")
	if user.LastLogin == nil || !user.LastLogin.Equal(loginAt) {
		t.Fatalf("expected last login %v, got %v", loginAt, user.LastLogin)
	}

	list, err := users.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 user, got %d", len(list))
	}

	if err := users.Delete(ctx, "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := users.Delete(ctx, "admin"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := users.UpdateLastLogin(ctx, "admin", loginAt); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "folio.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
