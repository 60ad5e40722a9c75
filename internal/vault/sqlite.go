package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// vaultEntry is one stored value. Values written through the encrypted store are sealed and the entry
// key is a keyed hash, so the table never holds plaintext credentials.
type vaultEntry struct {
	Store     string `gorm:"primaryKey;size:128"`
	EntryKey  string `gorm:"primaryKey;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (vaultEntry) TableName() string {
	return "vault_entries"
}

// SQLiteBackend stores every vault store in a single sqlite table.
type SQLiteBackend struct {
	db *gorm.DB
}

// NewSQLiteBackend opens (or creates) the sqlite database at path.
// A database file created here is restricted to the current user.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite vault %s: %w", path, err)
	}
	return attachSQLite(db, path)
}

// attachSQLite migrates db and restricts the file at path. db is closed when either step fails.
func attachSQLite(db *gorm.DB, path string) (*SQLiteBackend, error) {
	b, err := NewSQLiteBackendFromDB(db)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	if isFilePath(path) {
		if err := os.Chmod(path, 0600); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("restrict sqlite vault permissions: %w", err)
		}
	}
	return b, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewSQLiteBackendFromDB uses an existing gorm handle and migrates the vault table.
func NewSQLiteBackendFromDB(db *gorm.DB) (*SQLiteBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite backend requires database handle")
	}
	if err := db.AutoMigrate(&vaultEntry{}); err != nil {
		return nil, fmt.Errorf("migrate vault table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) OpenStore(_ context.Context, name string) (KeyValueStore, error) {
	if name == "" {
		return nil, errStoreNameRequired
	}
	return &sqliteStore{db: b.db, name: name}, nil
}

func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isFilePath(path string) bool {
	return path != ":memory:" && !strings.HasPrefix(path, "file:")
}

type sqliteStore struct {
	db   *gorm.DB
	name string
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry vaultEntry
	err := s.db.WithContext(ctx).
		Where("store = ? AND entry_key = ?", s.name, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	entry := &vaultEntry{
		Store:     s.name,
		EntryKey:  key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(entry).Error
	})
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("store = ? AND entry_key = ?", s.name, key).
		Delete(&vaultEntry{}).Error
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("store = ?", s.name).
		Delete(&vaultEntry{}).Error
}
