package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// Keystore supplies the master key that the vault's encryption keys are derived from.
// Platform keystores (OS keychains, HSMs) plug in here; the vault never generates or stores the key
// itself.
type Keystore interface {
	MasterKey(ctx context.Context) ([]byte, error)
}

// MasterKeySize is the length in bytes of a master key.
const MasterKeySize = chacha20poly1305.KeySize

// StaticKeystore holds a key supplied by configuration.
type StaticKeystore struct {
	key []byte
}

// NewStaticKeystore decodes a base64 encoded 32 byte key.
func NewStaticKeystore(encoded string) (*StaticKeystore, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault key is not valid base64")
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", MasterKeySize, len(key))
	}
	return &StaticKeystore{key: key}, nil
}

func (k *StaticKeystore) MasterKey(context.Context) ([]byte, error) {
	return append([]byte(nil), k.key...), nil
}

// FileKeystore keeps the master key in a file readable only by the current user.
// The key is generated the first time it is requested.
type FileKeystore struct {
	path string
}

func NewFileKeystore(path string) *FileKeystore {
	return &FileKeystore{path: path}
}

func (k *FileKeystore) MasterKey(context.Context) ([]byte, error) {
	key, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return k.create()
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("key file %s is corrupt: expected %d bytes, got %d", k.path, MasterKeySize, len(key))
	}
	return key, nil
}

func (k *FileKeystore) create() ([]byte, error) {
	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", dir, err)
	}

	// the key is complete on disk before it becomes visible under k.path
	tmp, err := os.CreateTemp(dir, ".vault-key-*")
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("restrict key file: %w", err)
	}
	if _, err := tmp.Write(key); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close key file: %w", err)
	}

	// a link never replaces an existing file: if another process won the race, use its key
	if err := os.Link(tmp.Name(), k.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return k.MasterKey(context.Background())
		}
		return nil, fmt.Errorf("install key file: %w", err)
	}
	return key, nil
}
