package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/folio/internal/config"
	"github.com/goodtune/folio/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client     *redis.Client
	localStore *localStore
	adminStore *adminUserStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port ("host:port")
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keys := keyspace{prefix: cfg.KeyPrefix}

	return &Store{
		client:     client,
		localStore: &localStore{client: client, keys: keys},
		adminStore: &adminUserStore{client: client, keys: keys},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Local returns the persistent key/value namespace
func (s *Store) Local() storage.KV {
	return s.localStore
}

// AdminUsers returns the AdminUserStore implementation
func (s *Store) AdminUsers() storage.AdminUserStore {
	return s.adminStore
}

// keyspace builds Redis key names under a configurable prefix
type keyspace struct {
	prefix string
}

func (k keyspace) local(key string) string {
	return k.prefix + "local:" + key
}

func (k keyspace) adminUser(username string) string {
	return k.prefix + "admin_user:" + username
}

func (k keyspace) adminUsers() string {
	return k.prefix + "admin_users"
}
