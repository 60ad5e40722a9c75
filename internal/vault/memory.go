package vault

import (
	"context"
	"sync"
)

// MemoryBackend keeps stores in process memory. Nothing survives a restart.
type MemoryBackend struct {
	mutex  sync.RWMutex
	stores map[string]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		stores: make(map[string]map[string][]byte),
	}
}

func (b *MemoryBackend) OpenStore(_ context.Context, name string) (KeyValueStore, error) {
	if name == "" {
		return nil, errStoreNameRequired
	}
	b.mutex.Lock()
	if _, ok := b.stores[name]; !ok {
		b.stores[name] = make(map[string][]byte)
	}
	b.mutex.Unlock()
	return &memoryStore{backend: b, name: name}, nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// raw returns a copy of the bytes held for a store, as they sit on the medium.
func (b *MemoryBackend) raw(name string) map[string][]byte {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	out := make(map[string][]byte, len(b.stores[name]))
	for k, v := range b.stores[name] {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

type memoryStore struct {
	backend *MemoryBackend
	name    string
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.backend.mutex.RLock()
	defer s.backend.mutex.RUnlock()
	v, ok := s.backend.stores[s.name][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.backend.mutex.Lock()
	s.backend.stores[s.name][key] = append([]byte(nil), value...)
	s.backend.mutex.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.backend.mutex.Lock()
	delete(s.backend.stores[s.name], key)
	s.backend.mutex.Unlock()
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.backend.mutex.Lock()
	s.backend.stores[s.name] = make(map[string][]byte)
	s.backend.mutex.Unlock()
	return nil
}
