// Package vault persists the client's credentials encrypted at rest.
//
// The vault holds four values: username, password, the last device address reported by the server and
// the server's user id. Values are written through an EncryptionProvider; if the provider cannot be
// initialised the vault either refuses to start (the default) or, when AllowPlaintextFallback is set,
// runs in degraded mode on an unencrypted store and says so in the log and through Degraded().
//
// Read accessors never return errors: a value that cannot be read or decrypted is logged and reported
// as absent.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/information-sharing-networks/authcore/internal/logger"
)

// fixed keys of the persisted layout
const (
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeyDeviceAddress = "mac_address"
	KeyUserID        = "user_id"
)

// NoUserID is returned by UserID when no user id is stored. It is never a valid id.
const NoUserID int64 = -1

// DefaultName is the store name used when Options.Name is empty.
const DefaultName = "auth_credentials"

const plaintextSuffix = ".plaintext"

type Options struct {
	Name string
	// AllowPlaintextFallback trades confidentiality for availability: when encryption is unavailable the
	// credentials are stored unencrypted instead of failing.
	AllowPlaintextFallback bool
	Logger                 *slog.Logger
}

// Vault is safe for concurrent use. Writes are serialised with respect to reads, so a Get never
// observes a partially applied Save.
type Vault struct {
	mutex sync.RWMutex
	store KeyValueStore
	// plain is the unencrypted store. It is the active store in degraded mode and is kept empty otherwise.
	plain KeyValueStore
	// orphan holds the raw entries of the encrypted store when the vault started degraded; Clear empties it.
	orphan   KeyValueStore
	backend  Backend
	name     string
	degraded bool
	fallback bool
	logger   *slog.Logger
}

// New opens the vault's store through provider.
//
// If the provider fails and opts.AllowPlaintextFallback is false the error is returned. Otherwise the raw
// backend is used without encryption and a warning is logged.
//
// When encryption works, values left in the plaintext store by an earlier degraded run are moved into the
// encrypted store and the plaintext store is emptied.
func New(ctx context.Context, provider EncryptionProvider, backend Backend, opts Options) (*Vault, error) {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(slog.String("component", "vault"), slog.String("store", name))

	v := &Vault{
		backend:  backend,
		name:     name,
		fallback: opts.AllowPlaintextFallback,
		logger:   log,
	}

	plain, err := backend.OpenStore(ctx, name+plaintextSuffix)
	if err != nil {
		return nil, fmt.Errorf("open plaintext store: %w", err)
	}
	v.plain = plain

	store, err := provider.CreateOrOpenEncryptedStore(ctx, name)
	if err == nil {
		v.store = store
		moved, err := migrate(ctx, plain, store)
		if err != nil {
			return nil, fmt.Errorf("encrypt values left by degraded mode: %w", err)
		}
		if moved > 0 {
			log.Info("plaintext values moved into the encrypted store", slog.Int("values", moved))
		}
		return v, nil
	}

	if !opts.AllowPlaintextFallback {
		return nil, fmt.Errorf("vault encryption unavailable: %w", err)
	}

	orphan, oerr := backend.OpenStore(ctx, name)
	if oerr != nil {
		return nil, fmt.Errorf("vault encryption unavailable (%v) and plaintext fallback failed: %w", err, oerr)
	}
	v.orphan = orphan
	v.store = plain
	v.degraded = true
	v.warnDegraded(err)
	return v, nil
}

func (v *Vault) warnDegraded(cause error) {
	v.logger.Warn("vault encryption unavailable - credentials will be stored unencrypted",
		slog.String("error", cause.Error()),
	)
}

// layout lists every key the vault writes.
var layout = []string{KeyUsername, KeyPassword, KeyDeviceAddress, KeyUserID}

// migrate copies every value of from into to and then deletes it from from.
// Each value is written to to before it is removed from from, so an interrupted migration loses nothing.
func migrate(ctx context.Context, from, to KeyValueStore) (int, error) {
	moved := 0
	for _, key := range layout {
		value, ok, err := from.Get(ctx, key)
		if err != nil {
			return moved, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := to.Set(ctx, key, value); err != nil {
			return moved, fmt.Errorf("write %s: %w", key, err)
		}
		if err := from.Delete(ctx, key); err != nil {
			return moved, fmt.Errorf("delete %s: %w", key, err)
		}
		moved++
	}
	return moved, nil
}

// Degraded reports whether the vault is storing values unencrypted.
func (v *Vault) Degraded() bool {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.degraded
}

// Save overwrites the stored username and password.
func (v *Vault) Save(ctx context.Context, username, password string) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if err := v.set(ctx, KeyUsername, username); err != nil {
		return err
	}
	return v.set(ctx, KeyPassword, password)
}

func (v *Vault) SaveDeviceAddress(ctx context.Context, addr string) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.set(ctx, KeyDeviceAddress, addr)
}

func (v *Vault) SaveUserID(ctx context.Context, id int64) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.set(ctx, KeyUserID, strconv.FormatInt(id, 10))
}

// set writes one value. A seal failure switches the vault to degraded mode when fallback is allowed: the
// values already stored are moved to the plaintext store first, so the vault keeps its whole contents.
// Callers hold the write lock.
func (v *Vault) set(ctx context.Context, key, value string) error {
	err := v.store.Set(ctx, key, []byte(value))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrSeal) || !v.fallback || v.degraded {
		return fmt.Errorf("save %s: %w", key, err)
	}

	if _, merr := migrate(ctx, v.store, v.plain); merr != nil {
		return fmt.Errorf("save %s: %w (switching to plaintext storage failed: %v)", key, err, merr)
	}
	v.store = v.plain
	v.degraded = true
	v.warnDegraded(err)

	if err := v.store.Set(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (v *Vault) get(ctx context.Context, key string) (string, bool) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	b, ok, err := v.store.Get(ctx, key)
	if err != nil {
		v.logger.Error("vault read failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	if !ok {
		return "", false
	}
	return string(b), true
}

// Username returns the stored username; ok is false when none is stored.
func (v *Vault) Username(ctx context.Context) (string, bool) {
	return v.get(ctx, KeyUsername)
}

// Password returns the stored password; ok is false when none is stored.
func (v *Vault) Password(ctx context.Context) (string, bool) {
	return v.get(ctx, KeyPassword)
}

func (v *Vault) DeviceAddress(ctx context.Context) (string, bool) {
	return v.get(ctx, KeyDeviceAddress)
}

// UserID returns the stored user id or NoUserID.
func (v *Vault) UserID(ctx context.Context) int64 {
	s, ok := v.get(ctx, KeyUserID)
	if !ok {
		return NoUserID
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.logger.Error("vault holds a malformed user id", slog.String("error", err.Error()))
		return NoUserID
	}
	return id
}

// HasCredentials is true when both a username and a password are stored.
// An empty string counts as stored; only absence does not.
func (v *Vault) HasCredentials(ctx context.Context) bool {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	for _, key := range []string{KeyUsername, KeyPassword} {
		_, ok, err := v.store.Get(ctx, key)
		if err != nil {
			v.logger.Error("vault read failed", slog.String("key", key), slog.String("error", err.Error()))
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// ClearSessionIdentifiers removes the device address and user id but keeps remembered credentials.
func (v *Vault) ClearSessionIdentifiers(ctx context.Context) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	for _, key := range []string{KeyDeviceAddress, KeyUserID} {
		if err := v.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Clear erases every stored value, encrypted or not. Clearing an empty vault succeeds.
func (v *Vault) Clear(ctx context.Context) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	for _, store := range []KeyValueStore{v.store, v.plain, v.orphan} {
		if store == nil {
			continue
		}
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear vault: %w", err)
		}
	}
	return nil
}

// Status is a redacted view of the vault for diagnostics. It never contains secrets.
type Status struct {
	Store       string `json:"store"`
	HasUsername bool   `json:"has_username"`
	HasPassword bool   `json:"has_password"`
	HasDevice   bool   `json:"has_device_address"`
	HasUserID   bool   `json:"has_user_id"`
	Degraded    bool   `json:"degraded"`
}

func (v *Vault) Status(ctx context.Context) Status {
	_, hasUsername := v.Username(ctx)
	_, hasPassword := v.Password(ctx)
	_, hasDevice := v.DeviceAddress(ctx)
	return Status{
		Store:       v.name,
		HasUsername: hasUsername,
		HasPassword: hasPassword,
		HasDevice:   hasDevice,
		HasUserID:   v.UserID(ctx) != NoUserID,
		Degraded:    v.Degraded(),
	}
}

// Close releases the storage backend.
func (v *Vault) Close() error {
	return v.backend.Close()
}
