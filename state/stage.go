// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"slices"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
)

type change struct {
	key []byte
	val []byte
}

// Stage holds the cumulative storage changes of a State, ordered by key.
type Stage struct {
	changes []change
}

// Stage collapses the journal into the latest value per slot.
func (s *State) Stage() *Stage {
	latest := make(map[storageKey][]byte)
	for _, entry := range s.sm.Journal() {
		latest[entry.Key.(storageKey)] = entry.Value.([]byte)
	}

	changes := make([]change, 0, len(latest))
	for k, v := range latest {
		changes = append(changes, change{k.dbKey(), v})
	}
	slices.SortFunc(changes, func(a, b change) int {
		return bytes.Compare(a.key, b.key)
	})
	return &Stage{changes: changes}
}

// Len returns the number of changed slots.
func (st *Stage) Len() int {
	return len(st.changes)
}

// Hash returns the digest of the staged changes.
func (st *Stage) Hash() hbbft.Bytes32 {
	w := hbbft.NewBlake2b()
	for _, c := range st.changes {
		w.Write(c.key)
		w.Write(c.val)
	}
	var h hbbft.Bytes32
	w.Sum(h[:0])
	return h
}

// Commit writes the staged changes into the bulk and flushes it.
func (st *Stage) Commit(bulk kv.Bulk) error {
	for _, c := range st.changes {
		var err error
		if len(c.val) == 0 {
			err = bulk.Delete(c.key)
		} else {
			err = bulk.Put(c.key, c.val)
		}
		if err != nil {
			return errors.Wrap(err, "stage storage change")
		}
	}
	return errors.Wrap(bulk.Write(), "commit state")
}
