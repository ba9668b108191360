// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
	"github.com/DMDcoin/diamond-contracts-core-sub000/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

type storageKey struct {
	addr hbbft.Address
	key  hbbft.Bytes32
}

func (k storageKey) dbKey() []byte {
	return append(k.addr.Bytes(), k.key.Bytes()...)
}

// State holds contract storage of the built-in contracts.
// Writes are kept in revisions on top of the backing store until staged and committed.
type State struct {
	db kv.Getter
	sm *stackedmap.StackedMap
}

// New create state object on top of db. A nil db starts from empty storage.
func New(db kv.Getter) *State {
	s := &State{db: db}
	s.sm = stackedmap.New(s.dbGetter)
	return s
}

// dbGetter implements stackedmap.MapGetter.
func (s *State) dbGetter(key any) (any, bool, error) {
	if s.db == nil {
		return []byte(nil), false, nil
	}
	val, err := kv.GetOrNil(s.db, key.(storageKey).dbKey())
	if err != nil {
		return nil, false, err
	}
	return val, len(val) > 0, nil
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr hbbft.Address, key hbbft.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.([]byte), nil
}

// SetRawStorage set storage value in rlp raw. An empty value clears the slot.
func (s *State) SetRawStorage(addr hbbft.Address, key hbbft.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, []byte(raw))
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr hbbft.Address, key hbbft.Bytes32) (hbbft.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return hbbft.Bytes32{}, err
	}
	if len(raw) == 0 {
		return hbbft.Bytes32{}, nil
	}
	var content []byte
	if err := rlp.DecodeBytes(raw, &content); err != nil {
		return hbbft.Bytes32{}, &Error{err}
	}
	return hbbft.BytesToBytes32(content), nil
}

// SetStorage set storage value for the given address and key.
func (s *State) SetStorage(addr hbbft.Address, key, value hbbft.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage set storage value encoded by given enc method.
// Error returned by enc will be absorbed by State instance.
func (s *State) EncodeStorage(addr hbbft.Address, key hbbft.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// Error returned by dec will be absorbed by State instance.
func (s *State) DecodeStorage(addr hbbft.Address, key hbbft.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Atomic runs fn inside a new checkpoint. Every change fn made is reverted if it returns an error.
func (s *State) Atomic(fn func() error) error {
	revision := s.NewCheckpoint()
	if err := fn(); err != nil {
		s.RevertTo(revision)
		return err
	}
	return nil
}
