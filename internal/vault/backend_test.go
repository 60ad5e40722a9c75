package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:vault-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

// exerciseStore runs the KeyValueStore contract against a raw store.
func exerciseStore(t *testing.T, store KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := store.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "a", []byte("2")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := store.Get(ctx, "a")
	if err != nil || !ok || string(v) != "2" {
		t.Fatalf("Get(a) = %q, %v, %v; want 2", v, ok, err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("Get after Delete found the key")
	}
	if err := store.Set(ctx, "b", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear #%d: %v", i+1, err)
		}
	}
	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Fatalf("Get after Clear found the key")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	store, err := NewMemoryBackend().OpenStore(context.Background(), "test")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	exerciseStore(t, store)
}

func TestSQLiteStoreContract(t *testing.T) {
	backend, err := NewSQLiteBackendFromDB(newTestSQLiteDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteBackendFromDB: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	store, err := backend.OpenStore(context.Background(), "test")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	exerciseStore(t, store)
}

func TestRedisStoreContract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	backend, err := NewRedisBackend(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	store, err := backend.OpenStore(context.Background(), "test")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	exerciseStore(t, store)
}

func TestStoresAreIsolatedByName(t *testing.T) {
	ctx := context.Background()
	backend, err := NewSQLiteBackendFromDB(newTestSQLiteDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteBackendFromDB: %v", err)
	}
	one, _ := backend.OpenStore(ctx, "one")
	two, _ := backend.OpenStore(ctx, "two")

	if err := one.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := two.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := one.Get(ctx, "k"); !ok {
		t.Errorf("clearing one store removed another store's entry")
	}
	if _, ok, _ := two.Get(ctx, "k"); ok {
		t.Errorf("store two sees store one's entry")
	}
}

func TestSQLiteVaultHoldsNoPlaintext(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLiteDB(t)
	backend, err := NewSQLiteBackendFromDB(db)
	if err != nil {
		t.Fatalf("NewSQLiteBackendFromDB: %v", err)
	}

	v, err := New(ctx, NewAEADProvider(testKeystore(t), backend), backend, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Save(ctx, "alice@example.com", "s3cr3t-pa55"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := v.Password(ctx); got != "s3cr3t-pa55" {
		t.Fatalf("Password() = %q", got)
	}

	var entries []vaultEntry
	if err := db.Find(&entries).Error; err != nil {
		t.Fatalf("Find: %v", err)
	}
	raw := make(map[string][]byte, len(entries))
	for _, e := range entries {
		raw[e.EntryKey] = e.Value
	}
	assertNoPlaintext(t, raw, "alice@example.com", "s3cr3t-pa55")
}

func TestRedisVaultHoldsNoPlaintext(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	backend, err := NewBackend(ctx, BackendConfig{
		Driver: DriverRedis,
		Redis:  &RedisConfig{Addr: mr.Addr(), Prefix: "test:"},
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	v, err := New(ctx, NewAEADProvider(testKeystore(t), backend), backend, Options{Name: "creds"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = v.Close() })

	if err := v.Save(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fields, err := mr.HKeys("test:creds")
	if err != nil {
		t.Fatalf("HKeys: %v", err)
	}
	raw := make(map[string][]byte, len(fields))
	for _, f := range fields {
		raw[f] = []byte(mr.HGet("test:creds", f))
	}
	assertNoPlaintext(t, raw, "alice", "hunter22")

	if err := v.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if v.HasCredentials(ctx) {
		t.Errorf("HasCredentials() = true after Clear")
	}
}

func TestSQLiteBackendOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")
	keyPath := filepath.Join(t.TempDir(), "keys", "vault.key")

	open := func() *Vault {
		backend, err := NewBackend(ctx, BackendConfig{Driver: DriverSQLite, SQLitePath: path})
		if err != nil {
			t.Fatalf("NewBackend: %v", err)
		}
		v, err := New(ctx, NewAEADProvider(NewFileKeystore(keyPath), backend), backend, Options{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return v
	}

	v := open()
	if err := v.Save(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := open()
	defer reopened.Close()
	if got, ok := reopened.Password(ctx); !ok || got != "secret" {
		t.Errorf("Password() after reopen = %q, %v", got, ok)
	}
}

func TestSQLiteHandleClosedWhenSetupFails(t *testing.T) {
	db := newTestSQLiteDB(t)
	missing := filepath.Join(t.TempDir(), "absent", "vault.db")

	if _, err := attachSQLite(db, missing); err == nil {
		t.Fatalf("attachSQLite() succeeded although the file cannot be restricted")
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	if err := sqlDB.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Ping() after failed setup = %v, want database is closed", err)
	}
}

func TestNewBackendRejectsUnknownDriver(t *testing.T) {
	_, err := NewBackend(context.Background(), BackendConfig{Driver: "etcd"})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("NewBackend(etcd) error = %v, want unsupported driver", err)
	}
}
