/*
SPDX-License-Identifier: Apache-2.0
*/

package state

import (
	"fmt"
	"sort"
)

// Journal buffers writes on top of a backing Store. Reads observe the
// buffered writes, snapshots allow partial rollback, and nothing reaches
// the backing store before Commit.
//
// A Journal is used by one operation at a time and is not safe for
// concurrent use.
type Journal struct {
	backing Store
	dirty   map[string]*entry
	changes []change
}

type entry struct {
	value   []byte
	deleted bool
}

// change records the previous buffered entry of a key so it can be restored.
type change struct {
	key  string
	prev *entry
}

var _ Store = (*Journal)(nil)

func NewJournal(backing Store) *Journal {
	return &Journal{
		backing: backing,
		dirty:   make(map[string]*entry),
	}
}

func (j *Journal) Get(key string) ([]byte, error) {
	if e, ok := j.dirty[key]; ok {
		if e.deleted {
			return nil, nil
		}
		return copyBytes(e.value), nil
	}
	return j.backing.Get(key)
}

func (j *Journal) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	j.record(key)
	j.dirty[key] = &entry{value: copyBytes(value)}
	return nil
}

func (j *Journal) Delete(key string) error {
	j.record(key)
	j.dirty[key] = &entry{deleted: true}
	return nil
}

func (j *Journal) record(key string) {
	j.changes = append(j.changes, change{key: key, prev: j.dirty[key]})
}

// Snapshot returns an identifier of the current journal position.
func (j *Journal) Snapshot() int {
	return len(j.changes)
}

// RevertToSnapshot undoes every write made since Snapshot returned id.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 || id > len(j.changes) {
		panic(fmt.Sprintf("state: invalid snapshot %d (journal length %d)", id, len(j.changes)))
	}
	for i := len(j.changes) - 1; i >= id; i-- {
		c := j.changes[i]
		if c.prev == nil {
			delete(j.dirty, c.key)
		} else {
			j.dirty[c.key] = c.prev
		}
	}
	j.changes = j.changes[:id]
}

// Writes returns the buffered changes sorted by key. A nil Value marks a
// deletion.
func (j *Journal) Writes() []Write {
	keys := make([]string, 0, len(j.dirty))
	for k := range j.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writes := make([]Write, 0, len(keys))
	for _, k := range keys {
		e := j.dirty[k]
		if e.deleted {
			writes = append(writes, Write{Key: k})
			continue
		}
		writes = append(writes, Write{Key: k, Value: copyBytes(e.value)})
	}
	return writes
}

// Commit flushes the buffered writes to the backing store in key order and
// resets the journal.
func (j *Journal) Commit() error {
	writes := j.Writes()
	if bw, ok := j.backing.(BatchWriter); ok {
		if err := bw.WriteBatch(writes); err != nil {
			return fmt.Errorf("state: commit batch: %w", err)
		}
	} else {
		for _, w := range writes {
			var err error
			if w.Value == nil {
				err = j.backing.Delete(w.Key)
			} else {
				err = j.backing.Set(w.Key, w.Value)
			}
			if err != nil {
				return fmt.Errorf("state: commit %q: %w", w.Key, err)
			}
		}
	}
	j.Discard()
	return nil
}

// Discard drops every buffered write.
func (j *Journal) Discard() {
	j.dirty = make(map[string]*entry)
	j.changes = nil
}
