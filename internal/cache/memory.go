package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Cache used by tests and single-instance setups.
type Memory struct {
	mu       sync.Mutex
	items    map[string][]byte
	versions map[string]int64
}

// NewMemory creates an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte), versions: make(map[string]int64)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.items[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

// SetIfNewer implements Cache.
func (m *Memory) SetIfNewer(_ context.Context, key string, version int64, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.versions[versionKey(key)]; ok && cur > version {
		return false, nil
	}
	m.items[key] = raw
	m.versions[versionKey(key)] = version
	return true, nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}
