// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Uint256 is a wrapper for storage and retrieval of an uint256. Similar to storing an uint256 in a smart contract.
type Uint256 struct {
	context *Context
	pos     hbbft.Bytes32
}

func NewUint256(context *Context, pos hbbft.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) error {
	if value.Sign() < 0 || value.BitLen() > 256 {
		return errors.Errorf("uint256 out of range: %v", value)
	}
	u.context.state.SetStorage(u.context.address, u.pos, hbbft.BytesToBytes32(value.Bytes()))
	return nil
}

func (u *Uint256) Add(delta *big.Int) error {
	value, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(value.Add(value, delta))
}

func (u *Uint256) Sub(delta *big.Int) error {
	value, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(value.Sub(value, delta))
}

// Uint64 stores an unsigned counter or timestamp in a single slot.
type Uint64 struct {
	context *Context
	pos     hbbft.Bytes32
}

func NewUint64(context *Context, pos hbbft.Bytes32) *Uint64 {
	return &Uint64{context: context, pos: pos}
}

func (u *Uint64) Get() (uint64, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(storage.Bytes()).Uint64(), nil
}

func (u *Uint64) Set(value uint64) {
	u.context.state.SetStorage(u.context.address, u.pos, hbbft.Uint64ToBytes32(value))
}

func (u *Uint64) Add(delta uint64) (uint64, error) {
	value, err := u.Get()
	if err != nil {
		return 0, err
	}
	value += delta
	u.Set(value)
	return value, nil
}

// Address is a wrapper for storage and retrieval of an address.
type Address struct {
	context *Context
	pos     hbbft.Bytes32
}

func NewAddress(context *Context, pos hbbft.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (hbbft.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return hbbft.Address{}, err
	}
	return hbbft.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr hbbft.Address) {
	a.context.state.SetStorage(a.context.address, a.pos, hbbft.BytesToBytes32(addr.Bytes()))
}

// Value stores one RLP encoded value at a fixed position.
type Value[V any] struct {
	mapping *Mapping[hbbft.Bytes32, V]
}

func NewValue[V any](context *Context, pos hbbft.Bytes32) *Value[V] {
	return &Value[V]{mapping: NewMapping[hbbft.Bytes32, V](context, pos)}
}

func (v *Value[V]) Get() (V, error) {
	return v.mapping.Get(hbbft.Bytes32{})
}

func (v *Value[V]) Set(value V) error {
	return v.mapping.Set(hbbft.Bytes32{}, value)
}

func (v *Value[V]) Clear() {
	v.mapping.Delete(hbbft.Bytes32{})
}
