package vault

import (
	"context"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// EncryptionProvider opens stores whose contents are confidentiality and integrity protected.
type EncryptionProvider interface {
	CreateOrOpenEncryptedStore(ctx context.Context, name string) (KeyValueStore, error)
}

var (
	// ErrSeal is returned when a value could not be encrypted.
	ErrSeal = errors.New("vault: seal failed")
	// ErrKeyMismatch is returned when a store was written with a different master key.
	ErrKeyMismatch = errors.New("vault: master key does not match stored data")
)

const (
	valueKeyInfo = "authcore vault value key v1"
	nameKeyInfo  = "authcore vault name key v1"
	canaryKey    = "__canary"
)

var canaryValue = []byte("authcore")

// AEADProvider encrypts store values with XChaCha20-Poly1305.
//
// Per-store keys are derived from the keystore's master key with HKDF-SHA256 (store name as salt):
// one key seals values, the other blinds entry names with HMAC-SHA256 so that the medium only
// ever holds opaque names and sealed values. Each value is sealed with its logical key as
// additional data, so a ciphertext moved to another entry fails to open.
type AEADProvider struct {
	keystore Keystore
	backend  Backend
	random   io.Reader
}

func NewAEADProvider(keystore Keystore, backend Backend) *AEADProvider {
	return &AEADProvider{
		keystore: keystore,
		backend:  backend,
		random:   rand.Reader,
	}
}

func (p *AEADProvider) CreateOrOpenEncryptedStore(ctx context.Context, name string) (KeyValueStore, error) {
	if name == "" {
		return nil, errStoreNameRequired
	}
	master, err := p.keystore.MasterKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	if len(master) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(master))
	}

	valueKey, err := deriveKey(master, name, valueKeyInfo)
	if err != nil {
		return nil, err
	}
	nameKey, err := deriveKey(master, name, nameKeyInfo)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(valueKey)
	if err != nil {
		return nil, fmt.Errorf("xchacha new: %w", err)
	}

	raw, err := p.backend.OpenStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}

	s := &encryptedStore{
		raw:     raw,
		aead:    aead,
		nameKey: nameKey,
		random:  p.random,
	}
	if err := s.checkCanary(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func deriveKey(master []byte, salt, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, []byte(salt), []byte(info))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

type encryptedStore struct {
	raw     KeyValueStore
	aead    cipher.AEAD
	nameKey []byte
	random  io.Reader
}

// checkCanary writes a known value on first use and verifies it on later opens, so that a store
// written under another master key is detected when the store is opened rather than on every read.
// The canary sits under a fixed entry name; a blinded name would differ per key and never be found.
func (s *encryptedStore) checkCanary(ctx context.Context) error {
	sealed, ok, err := s.raw.Get(ctx, canaryKey)
	if err != nil {
		return fmt.Errorf("read canary: %w", err)
	}
	if !ok {
		return s.writeCanary(ctx)
	}
	v, err := s.open(canaryKey, sealed)
	if err != nil || !hmac.Equal(v, canaryValue) {
		return ErrKeyMismatch
	}
	return nil
}

func (s *encryptedStore) writeCanary(ctx context.Context) error {
	sealed, err := s.seal(canaryKey, canaryValue)
	if err != nil {
		return fmt.Errorf("write canary: %w", err)
	}
	if err := s.raw.Set(ctx, canaryKey, sealed); err != nil {
		return fmt.Errorf("write canary: %w", err)
	}
	return nil
}

var errOpen = errors.New("vault: value failed authentication")

func (s *encryptedStore) entryName(key string) string {
	mac := hmac.New(sha256.New, s.nameKey)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *encryptedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, ok, err := s.raw.Get(ctx, s.entryName(key))
	if err != nil || !ok {
		return nil, ok, err
	}
	plaintext, err := s.open(key, sealed)
	if err != nil {
		return nil, false, err
	}
	return plaintext, true, nil
}

func (s *encryptedStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.raw.Set(ctx, s.entryName(key), sealed)
}

func (s *encryptedStore) Delete(ctx context.Context, key string) error {
	return s.raw.Delete(ctx, s.entryName(key))
}

// Clear removes all entries and re-writes the canary so the store stays bound to its key.
func (s *encryptedStore) Clear(ctx context.Context) error {
	if err := s.raw.Clear(ctx); err != nil {
		return err
	}
	return s.writeCanary(ctx)
}

// seal returns nonce||ciphertext with key as additional data.
func (s *encryptedStore) seal(key string, value []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := io.ReadFull(s.random, nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrSeal, err)
	}
	return s.aead.Seal(nonce, nonce, value, []byte(key)), nil
}

func (s *encryptedStore) open(key string, sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: %s: truncated value", errOpen, key)
	}
	plaintext, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errOpen, key)
	}
	return plaintext, nil
}
