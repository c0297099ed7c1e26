/*
SPDX-License-Identifier: Apache-2.0
*/

package state

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"
)

// DBStore is a Store over a tm-db database. Commits are applied as one
// synchronous batch.
type DBStore struct {
	db dbm.DB
}

var (
	_ Store       = DBStore{}
	_ BatchWriter = DBStore{}
)

func NewDBStore(db dbm.DB) DBStore {
	return DBStore{db: db}
}

func (s DBStore) Get(key string) ([]byte, error) {
	return s.db.Get([]byte(key))
}

func (s DBStore) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.db.SetSync([]byte(key), value)
}

func (s DBStore) Delete(key string) error {
	return s.db.DeleteSync([]byte(key))
}

// WriteBatch implements BatchWriter.
func (s DBStore) WriteBatch(writes []Write) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, w := range writes {
		var err error
		if w.Value == nil {
			err = batch.Delete([]byte(w.Key))
		} else {
			err = batch.Set([]byte(w.Key), w.Value)
		}
		if err != nil {
			return fmt.Errorf("batch %q: %w", w.Key, err)
		}
	}
	return batch.WriteSync()
}

// Keys returns every key with the given prefix in ascending order.
func (s DBStore) Keys(prefix string) ([]string, error) {
	var start, end []byte
	if prefix != "" {
		start = []byte(prefix)
		end = prefixEnd(start)
	}

	iter, err := s.db.Iterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("cannot create db iterator: %w", err)
	}
	defer iter.Close()

	var keys []string
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
