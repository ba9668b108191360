// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

var system = hbbft.BytesToAddress([]byte("system"))

func TestAddresses(t *testing.T) {
	seen := map[hbbft.Address]bool{}
	for _, addr := range []hbbft.Address{
		StakingAddress, KeyGenAddress, ValidatorSetAddress, BlockRewardAddress, RandomAddress, ConnectivityAddress,
	} {
		assert.False(t, addr.IsZero())
		assert.False(t, seen[addr])
		seen[addr] = true
	}
}

func TestNew(t *testing.T) {
	c, err := New(state.New(nil), chain.NewMem(1), DefaultConfig(system))
	require.NoError(t, err)

	// every capability is taken
	_, err = c.Staking.GrantRewardAccess(c.BlockReward)
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)
	_, err = c.ValidatorSet.GrantConnectivityAccess()
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)
	_, err = c.ValidatorSet.GrantRewardAccess()
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)
	_, err = c.KeyGen.GrantValidatorSetAccess(c.ValidatorSet)
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig(system).Validate())
	assert.Error(t, DefaultConfig(hbbft.Address{}).Validate())

	cfg := DefaultConfig(system)
	cfg.Random.SystemAddress = hbbft.Address{1}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig(system)
	cfg.Staking.FixedEpochDuration = 0
	assert.Error(t, cfg.Validate())
}
