/*
SPDX-License-Identifier: Apache-2.0
*/

// Package state provides the key/value world state the auction engine and
// its collaborators read and write, plus a write journal giving every
// operation all-or-nothing semantics over any backend.
package state

import (
	"errors"
	"sort"
	"sync"
)

// ErrEmptyKey is returned when writing under an empty key.
var ErrEmptyKey = errors.New("state: empty key")

// Store is a key/value view of world state. Get returns nil for a missing key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// BatchWriter is implemented by backends that can apply a set of writes
// at once. A nil value deletes the key.
type BatchWriter interface {
	WriteBatch(writes []Write) error
}

// Write is one buffered change.
type Write struct {
	Key   string
	Value []byte
}

// MemStore is an in-memory Store, safe for concurrent use.
type MemStore struct {
	mtx  sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return copyBytes(v), nil
}

func (m *MemStore) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[key] = copyBytes(value)
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all keys in sorted order.
func (m *MemStore) Keys() []string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
