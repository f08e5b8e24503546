package engine

import (
	"sort"
	"sync"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
)

// MemStore is a thread-safe in-memory slot store.
// When a Persistence is attached every write goes through to disk before
// the in-memory map is updated, so the file on disk and the map never
// disagree about the latest value.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	persister *Persistence
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string][]byte, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string][]byte)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

func (m *MemStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return cloneBytes(val), nil
}

func (m *MemStore) Set(key string, value []byte) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Writes are serialized under the lock so two rapid Sets on the same key
	// reach the disk in call order.
	if m.persister != nil {
		if err := m.persister.SaveKey(key, value); err != nil {
			return err
		}
	}
	m.data[key] = cloneBytes(value)
	return nil
}

func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.RemoveKey(key); err != nil {
			return err
		}
	}
	delete(m.data, key)
	return nil
}

// Keys returns every stored key in lexical order.
func (m *MemStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for k := range m.data {
		list = append(list, k)
	}
	sort.Strings(list)
	return list, nil
}
