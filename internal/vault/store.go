package vault

import (
	"context"
	"errors"
	"fmt"
)

// KeyValueStore is a named collection of byte values.
// Implementations serialise their own writes: a Set is fully applied before a later Get can observe it.
type KeyValueStore interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every key in the store. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Backend opens raw (unencrypted) stores on a storage medium.
type Backend interface {
	OpenStore(ctx context.Context, name string) (KeyValueStore, error)
	Close() error
}

// Driver identifiers supported by the vault.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// BackendConfig describes the storage medium selection.
type BackendConfig struct {
	Driver     string
	SQLitePath string
	Redis      *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

var errStoreNameRequired = errors.New("store name required")

// NewBackend creates a storage backend based on the provided configuration.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemoryBackend(), nil
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		return NewSQLiteBackend(cfg.SQLitePath)
	case DriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis configuration missing")
		}
		return NewRedisBackend(ctx, *cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported vault driver: %s", driver)
	}
}
