/*
SPDX-License-Identifier: Apache-2.0
*/

package state_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

func TestJournalReadsOwnWrites(t *testing.T) {
	backing := state.NewMemStore()
	require.NoError(t, backing.Set("a", []byte("1")))

	j := state.NewJournal(backing)
	require.NoError(t, j.Set("a", []byte("2")))
	require.NoError(t, j.Set("b", []byte("3")))

	v, err := j.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	v, err = backing.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v, "backing store must not see uncommitted writes")

	require.NoError(t, j.Delete("a"))
	v, err = j.Get("a")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestJournalRevertToSnapshot(t *testing.T) {
	backing := state.NewMemStore()
	require.NoError(t, backing.Set("k", []byte("base")))

	j := state.NewJournal(backing)
	require.NoError(t, j.Set("k", []byte("one")))
	snap := j.Snapshot()

	require.NoError(t, j.Set("k", []byte("two")))
	require.NoError(t, j.Set("new", []byte("x")))
	require.NoError(t, j.Delete("k"))

	inner := j.Snapshot()
	require.NoError(t, j.Set("other", []byte("y")))
	j.RevertToSnapshot(inner)

	v, err := j.Get("other")
	require.NoError(t, err)
	require.Nil(t, v)

	j.RevertToSnapshot(snap)

	v, err = j.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("one"), v)

	v, err = j.Get("new")
	require.NoError(t, err)
	require.Nil(t, v)

	j.RevertToSnapshot(0)
	v, err = j.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("base"), v)
	require.Empty(t, j.Writes())
}

func TestJournalRevertInvalidSnapshotPanics(t *testing.T) {
	j := state.NewJournal(state.NewMemStore())
	require.Panics(t, func() { j.RevertToSnapshot(3) })
}

func TestJournalCommit(t *testing.T) {
	backing := state.NewMemStore()
	require.NoError(t, backing.Set("gone", []byte("x")))

	j := state.NewJournal(backing)
	require.NoError(t, j.Set("b", []byte("2")))
	require.NoError(t, j.Set("a", []byte("1")))
	require.NoError(t, j.Delete("gone"))

	writes := j.Writes()
	require.Equal(t, []state.Write{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "gone"},
	}, writes)

	require.NoError(t, j.Commit())
	require.Equal(t, []string{"a", "b"}, backing.Keys())
	require.Empty(t, j.Writes())
}

type failingStore struct {
	*state.MemStore
}

func (failingStore) Set(string, []byte) error { return errors.New("disk full") }

func TestJournalCommitError(t *testing.T) {
	j := state.NewJournal(failingStore{state.NewMemStore()})
	require.NoError(t, j.Set("a", []byte("1")))
	require.ErrorContains(t, j.Commit(), "disk full")
}

func TestJournalRejectsEmptyKey(t *testing.T) {
	j := state.NewJournal(state.NewMemStore())
	require.ErrorIs(t, j.Set("", []byte("x")), state.ErrEmptyKey)
}
