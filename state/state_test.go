// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
)

func TestStorage(t *testing.T) {
	st := New(nil)
	addr := hbbft.BytesToAddress([]byte("contract"))
	key := hbbft.BytesToBytes32([]byte("slot"))

	v, err := st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	value := hbbft.BytesToBytes32([]byte{0x01, 0x02})
	st.SetStorage(addr, key, value)
	v, err = st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, value, v)

	st.SetStorage(addr, key, hbbft.Bytes32{})
	raw, err := st.GetRawStorage(addr, key)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestCheckpointRevert(t *testing.T) {
	st := New(nil)
	addr := hbbft.BytesToAddress([]byte("contract"))
	key := hbbft.BytesToBytes32([]byte("slot"))

	st.SetStorage(addr, key, hbbft.BytesToBytes32([]byte{1}))
	cp := st.NewCheckpoint()
	st.SetStorage(addr, key, hbbft.BytesToBytes32([]byte{2}))
	st.RevertTo(cp)

	v, err := st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, hbbft.BytesToBytes32([]byte{1}), v)
}

func TestAtomic(t *testing.T) {
	st := New(nil)
	addr := hbbft.BytesToAddress([]byte("contract"))
	k1 := hbbft.BytesToBytes32([]byte("k1"))
	k2 := hbbft.BytesToBytes32([]byte("k2"))

	boom := errors.New("boom")
	err := st.Atomic(func() error {
		st.SetStorage(addr, k1, hbbft.BytesToBytes32([]byte{1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	v, _ := st.GetStorage(addr, k1)
	assert.True(t, v.IsZero())

	require.NoError(t, st.Atomic(func() error {
		st.SetStorage(addr, k2, hbbft.BytesToBytes32([]byte{2}))
		return nil
	}))
	v, _ = st.GetStorage(addr, k2)
	assert.Equal(t, hbbft.BytesToBytes32([]byte{2}), v)
}

func TestStageCommit(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	addr := hbbft.BytesToAddress([]byte("contract"))
	k1 := hbbft.BytesToBytes32([]byte("k1"))
	k2 := hbbft.BytesToBytes32([]byte("k2"))

	st := New(db)
	st.SetStorage(addr, k1, hbbft.BytesToBytes32([]byte{1}))
	st.SetStorage(addr, k2, hbbft.BytesToBytes32([]byte{2}))
	st.SetStorage(addr, k1, hbbft.BytesToBytes32([]byte{3}))

	stage := st.Stage()
	assert.Equal(t, 2, stage.Len())
	assert.Equal(t, stage.Hash(), st.Stage().Hash())
	require.NoError(t, stage.Commit(db.Bulk()))

	reloaded := New(db)
	v, err := reloaded.GetStorage(addr, k1)
	require.NoError(t, err)
	assert.Equal(t, hbbft.BytesToBytes32([]byte{3}), v)

	reloaded.SetStorage(addr, k2, hbbft.Bytes32{})
	require.NoError(t, reloaded.Stage().Commit(db.Bulk()))

	has, err := db.Has(append(addr.Bytes(), k2.Bytes()...))
	require.NoError(t, err)
	assert.False(t, has)
}
