package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestUpsertAdminUserScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	keys := []string{"folio:admin_user:admin", "folio:admin_users"}

	err := client.Eval(ctx, upsertAdminUserScript, keys,
		"admin-1", "admin", "hash-1", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z").Err()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}

	err = client.Eval(ctx, upsertAdminUserScript, keys,
		"admin-1", "admin", "hash-2", "2024-02-02T00:00:00Z", "2024-02-02T00:00:00Z").Err()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}

	if got := mr.HGet("folio:admin_user:admin", "created_at"); got != "2024-01-01T00:00:00Z" {
		t.Errorf("Expected original created_at, got %s", got)
	}
	if got := mr.HGet("folio:admin_user:admin", "updated_at"); got != "2024-02-02T00:00:00Z" {
		t.Errorf("Expected new updated_at, got %s", got)
	}
	if got := mr.HGet("folio:admin_user:admin", "password_hash"); got != "hash-2" {
		t.Errorf("Expected hash-2, got %s", got)
	}

	members, err := mr.Members("folio:admin_users")
	if err != nil {
		t.Fatalf("Failed to read set: %v", err)
	}
	if len(members) != 1 || members[0] != "admin" {
		t.Errorf("Expected [admin] in index, got %v", members)
	}
}

func TestUpdateLastLoginScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	tests := []struct {
		name   string
		exists bool
		want   int
	}{
		{name: "missing user", exists: false, want: 0},
		{name: "existing user", exists: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			if tt.exists {
				mr.HSet("folio:admin_user:admin", "username", "admin")
			}

			got, err := client.Eval(ctx, updateLastLoginScript, []string{"folio:admin_user:admin"},
				"2024-03-03T10:00:00Z", "2024-03-03T10:00:00Z").Int()
			if err != nil {
				t.Fatalf("Script execution failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}

			if !tt.exists && mr.Exists("folio:admin_user:admin") {
				t.Error("Script must not create a hash for a missing user")
			}
			if tt.exists && mr.HGet("folio:admin_user:admin", "last_login") != "2024-03-03T10:00:00Z" {
				t.Error("Expected last_login to be set")
			}
		})
	}
}

func TestDeleteAdminUserScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	keys := []string{"folio:admin_user:admin", "folio:admin_users"}

	mr.HSet("folio:admin_user:admin", "username", "admin")
	if _, err := mr.SAdd("folio:admin_users", "admin"); err != nil {
		t.Fatalf("Failed to seed set: %v", err)
	}

	deleted, err := client.Eval(ctx, deleteAdminUserScript, keys, "admin").Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
	if mr.Exists("folio:admin_user:admin") {
		t.Error("Expected hash to be removed")
	}
	if ok, _ := mr.IsMember("folio:admin_users", "admin"); ok {
		t.Error("Expected username to be removed from index")
	}

	deleted, err = client.Eval(ctx, deleteAdminUserScript, keys, "admin").Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted on second run, got %d", deleted)
	}
}
