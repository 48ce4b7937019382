package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store
type Memory struct {
	area string
	mu   sync.RWMutex
	data map[string][]byte
	notifier
}

// NewMemory creates an empty in-memory area
func NewMemory(area string) *Memory {
	return &Memory{area: area, data: make(map[string][]byte)}
}

// Get returns copies of the stored values
func (m *Memory) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = bytes.Clone(v)
		}
	}
	return out, nil
}

// Set stores copies of the values
func (m *Memory) Set(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	changes := make([]Change, 0, len(items))
	for _, k := range sortedKeys(items) {
		v := bytes.Clone(items[k])
		changes = append(changes, Change{Area: m.area, Key: k, Old: m.data[k], New: v})
		m.data[k] = v
	}
	m.mu.Unlock()

	m.emit(changes)
	return nil
}

// Remove deletes keys
func (m *Memory) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	var changes []Change
	for _, k := range keys {
		if old, ok := m.data[k]; ok {
			changes = append(changes, Change{Area: m.area, Key: k, Old: old})
			delete(m.data, k)
		}
	}
	m.mu.Unlock()

	m.emit(changes)
	return nil
}

// OnChanged registers a change listener
func (m *Memory) OnChanged(fn func(Change)) func() {
	return m.subscribe(fn)
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

func sortedKeys(items map[string][]byte) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
