// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

type testRecord struct {
	Field1 uint64
	Addr1  hbbft.Address
	Amount *big.Int
	Blob   []byte
}

func newTestContext() *Context {
	return NewContext(hbbft.Address{1}, state.New(nil))
}

func TestMappingStruct(t *testing.T) {
	m := NewMapping[hbbft.Address, testRecord](newTestContext(), Slot("records"))
	key := hbbft.BytesToAddress([]byte("a"))

	empty, err := m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, testRecord{}, empty)

	rec := testRecord{Field1: 7, Addr1: hbbft.Address{9}, Amount: big.NewInt(100), Blob: []byte{1, 2}}
	require.NoError(t, m.Set(key, rec))

	got, err := m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	m.Delete(key)
	got, err = m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, testRecord{}, got)
}

func TestMappingPointer(t *testing.T) {
	m := NewMapping[hbbft.Bytes32, *big.Int](newTestContext(), Slot("amounts"))
	key := hbbft.Blake2b([]byte("k"))

	got, err := m.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Sign())

	require.NoError(t, m.Set(key, big.NewInt(42)))
	got, err = m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), got)
}

func TestMappingKeysDoNotCollide(t *testing.T) {
	ctx := newTestContext()
	a := NewMapping[hbbft.Address, uint64](ctx, Slot("a"))
	b := NewMapping[hbbft.Address, uint64](ctx, Slot("b"))
	key := hbbft.Address{3}

	require.NoError(t, a.Set(key, 1))
	require.NoError(t, b.Set(key, 2))

	va, _ := a.Get(key)
	vb, _ := b.Get(key)
	assert.Equal(t, uint64(1), va)
	assert.Equal(t, uint64(2), vb)
}

func TestUint256(t *testing.T) {
	u := NewUint256(newTestContext(), Slot("total"))

	v, err := u.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	require.NoError(t, u.Add(big.NewInt(10)))
	require.NoError(t, u.Sub(big.NewInt(3)))
	v, _ = u.Get()
	assert.Equal(t, big.NewInt(7), v)

	assert.Error(t, u.Sub(big.NewInt(8)))
	v, _ = u.Get()
	assert.Equal(t, big.NewInt(7), v)
}

func TestUint64AndAddress(t *testing.T) {
	ctx := newTestContext()
	n := NewUint64(ctx, Slot("epoch"))
	next, err := n.Add(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)
	n.Set(1 << 40)
	v, _ := n.Get()
	assert.Equal(t, uint64(1<<40), v)

	a := NewAddress(ctx, Slot("owner"))
	owner := hbbft.BytesToAddress([]byte("owner"))
	a.Set(owner)
	got, err := a.Get()
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestValue(t *testing.T) {
	v := NewValue[testRecord](newTestContext(), Slot("singleton"))
	require.NoError(t, v.Set(testRecord{Field1: 5, Amount: big.NewInt(1)}))
	got, err := v.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Field1)

	v.Clear()
	got, _ = v.Get()
	assert.Equal(t, testRecord{}, got)
}
