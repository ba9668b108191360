// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/test/datagen"
)

const genesisTime = 1000

var (
	poolA   = hbbft.BytesToAddress([]byte("pool-a"))
	miningA = hbbft.BytesToAddress([]byte("mining-a"))
	poolB   = hbbft.BytesToAddress([]byte("pool-b"))
	miningB = hbbft.BytesToAddress([]byte("mining-b"))
	alice   = hbbft.BytesToAddress([]byte("alice"))
	bob     = hbbft.BytesToAddress([]byte("bob"))
	op      = hbbft.BytesToAddress([]byte("operator"))

	publicKey = make([]byte, PublicKeyLength)
	ipAddress = make([]byte, IPAddressLength)
)

type fakeView struct {
	busy      map[hbbft.Address]bool
	available map[hbbft.Address]bool
	abandoned map[hbbft.Address]bool
}

func (v *fakeView) IsValidatorOrPending(mining hbbft.Address) (bool, error) {
	return v.busy[mining], nil
}

func (v *fakeView) IsValidatorAvailable(mining hbbft.Address) (bool, error) {
	return v.available[mining], nil
}

func (v *fakeView) IsValidatorAbandoned(pool hbbft.Address) (bool, error) {
	return v.abandoned[pool], nil
}

type fakePots struct {
	reinsert   *big.Int
	governance *big.Int
}

func (p *fakePots) AddToReinsertPot(amount *big.Int) error {
	p.reinsert.Add(p.reinsert, amount)
	return nil
}

func (p *fakePots) AddToGovernancePot(amount *big.Int) error {
	p.governance.Add(p.governance, amount)
	return nil
}

type testLedger struct {
	*Ledger
	chain  *chain.Chain
	view   *fakeView
	pots   *fakePots
	vs     *ValidatorSetAccess
	reward *RewardAccess
}

func testConfig() Config {
	return Config{
		CandidateMinStake:         big.NewInt(100),
		DelegatorMinStake:         big.NewInt(10),
		MaxStake:                  big.NewInt(1000),
		FixedEpochDuration:        1000,
		TransitionTimeframeLength: 10,
		WithdrawDisallowPeriod:    100,
		MaxNodeOperatorShare:      2000,
		GovernanceRecoveryShare:   Ratio{Num: 1, Den: 2},
	}
}

func newTestLedger(t *testing.T) *testLedger {
	c := chain.NewMem(genesisTime)
	l := New(hbbft.BytesToAddress([]byte("staking")), state.New(nil), c, testConfig())
	require.NoError(t, l.Initialize(genesisTime, 0))

	view := &fakeView{
		busy:      map[hbbft.Address]bool{},
		available: map[hbbft.Address]bool{},
		abandoned: map[hbbft.Address]bool{},
	}
	pots := &fakePots{reinsert: new(big.Int), governance: new(big.Int)}
	vs, err := l.GrantValidatorSetAccess(view)
	require.NoError(t, err)
	reward, err := l.GrantRewardAccess(pots)
	require.NoError(t, err)

	return &testLedger{Ledger: l, chain: c, view: view, pots: pots, vs: vs, reward: reward}
}

func (tl *testLedger) addPool(t *testing.T, pool, mining hbbft.Address, amount int64) {
	require.NoError(t, tl.AddPool(pool, mining, hbbft.Address{}, 0, publicKey, ipAddress, big.NewInt(amount)))
}

func (tl *testLedger) stakeOf(t *testing.T, pool, staker hbbft.Address) int64 {
	v, err := tl.StakeAmount(pool, staker)
	require.NoError(t, err)
	return v.Int64()
}

func (tl *testLedger) totalOf(t *testing.T, pool hbbft.Address) int64 {
	v, err := tl.StakeAmountTotal(pool)
	require.NoError(t, err)
	return v.Int64()
}

// assertConserved checks the pool total equals the sum of the stakes held in it.
func (tl *testLedger) assertConserved(t *testing.T, pool hbbft.Address) {
	sum := tl.stakeOf(t, pool, pool)
	delegators, err := tl.PoolDelegators(pool)
	require.NoError(t, err)
	for _, d := range delegators {
		sum += tl.stakeOf(t, pool, d)
	}
	assert.Equal(t, sum, tl.totalOf(t, pool))
}

func TestAddPool(t *testing.T) {
	tl := newTestLedger(t)
	tl.view.available[miningA] = true

	tl.addPool(t, poolA, miningA, 100)

	assert.Equal(t, int64(100), tl.stakeOf(t, poolA, poolA))
	assert.Equal(t, int64(100), tl.totalOf(t, poolA))

	status, err := tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	elected, err := tl.PoolsToBeElected()
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{poolA}, elected)

	mining, err := tl.MiningByStaking(poolA)
	require.NoError(t, err)
	assert.Equal(t, miningA, mining)
	staking, err := tl.StakingByMining(miningA)
	require.NoError(t, err)
	assert.Equal(t, poolA, staking)
}

func TestAddPoolRejected(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	tests := []struct {
		name      string
		caller    hbbft.Address
		mining    hbbft.Address
		operator  hbbft.Address
		share     uint64
		publicKey []byte
		amount    int64
		err       error
	}{
		{"below candidate minimum", poolB, miningB, hbbft.Address{}, 0, publicKey, 99, reverts.ErrInsufficientStakeAmount},
		{"zero amount", poolB, miningB, hbbft.Address{}, 0, publicKey, 0, reverts.ErrZeroAmount},
		{"above max stake", poolB, miningB, hbbft.Address{}, 0, publicKey, 1001, reverts.ErrPoolStakeLimitExceeded},
		{"mining reused", poolB, miningA, hbbft.Address{}, 0, publicKey, 100, reverts.ErrMiningAddressUsed},
		{"staking address is a mining address", miningA, miningB, hbbft.Address{}, 0, publicKey, 100, reverts.ErrStakingAddressUsed},
		{"mining address is a pool", poolB, poolA, hbbft.Address{}, 0, publicKey, 100, reverts.ErrMiningAddressUsed},
		{"same pool twice", poolA, miningB, hbbft.Address{}, 0, publicKey, 100, reverts.ErrPoolAlreadyExists},
		{"short public key", poolB, miningB, hbbft.Address{}, 0, publicKey[1:], 100, reverts.ErrInvalidPublicKey},
		{"share without operator", poolB, miningB, hbbft.Address{}, 100, publicKey, 100, reverts.ErrInvalidNodeOperatorFee},
		{"share above max", poolB, miningB, op, 2001, publicKey, 100, reverts.ErrInvalidNodeOperatorFee},
		{"zero mining", poolB, hbbft.Address{}, hbbft.Address{}, 0, publicKey, 100, reverts.ErrZeroAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tl.AddPool(tt.caller, tt.mining, tt.operator, tt.share, tt.publicKey, ipAddress, big.NewInt(tt.amount))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// nothing of the failed attempts is left behind
	p, err := tl.Pool(poolB)
	require.NoError(t, err)
	assert.False(t, p.Exists())
	all, err := tl.AllPools()
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{poolA}, all)
}

func TestDelegate(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	assert.ErrorIs(t, tl.Stake(alice, poolA, big.NewInt(5)), reverts.ErrInsufficientStakeAmount)
	assert.ErrorIs(t, tl.Stake(alice, poolB, big.NewInt(50)), reverts.ErrPoolNotExist)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(10)))
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(5)), "later stakes only need the sum above minimum")
	assert.ErrorIs(t, tl.Stake(bob, poolA, big.NewInt(900)), reverts.ErrPoolStakeLimitExceeded)

	assert.Equal(t, int64(15), tl.stakeOf(t, poolA, alice))
	assert.Equal(t, int64(115), tl.totalOf(t, poolA))
	delegators, err := tl.PoolDelegators(poolA)
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{alice}, delegators)
	tl.assertConserved(t, poolA)
}

func TestRandomDelegations(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	stakers := datagen.RandomAddresses(8)
	total := int64(100)
	for _, staker := range stakers {
		amount := datagen.RandAmount(big.NewInt(10), big.NewInt(100))
		require.NoError(t, tl.Stake(staker, poolA, amount))
		total += amount.Int64()
	}
	assert.Equal(t, total, tl.totalOf(t, poolA))
	tl.assertConserved(t, poolA)

	var kept []hbbft.Address
	for i, staker := range stakers {
		if i%2 == 0 {
			require.NoError(t, tl.Withdraw(staker, poolA, big.NewInt(tl.stakeOf(t, poolA, staker))))
			continue
		}
		kept = append(kept, staker)
	}
	delegators, err := tl.PoolDelegators(poolA)
	require.NoError(t, err)
	assert.ElementsMatch(t, kept, delegators)
	tl.assertConserved(t, poolA)
}

func TestDelegateToInactivePool(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(20)))
	require.NoError(t, tl.Withdraw(poolA, poolA, big.NewInt(100)))

	status, err := tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status, "delegated stake keeps the pool inactive")

	assert.ErrorIs(t, tl.Stake(bob, poolA, big.NewInt(20)), reverts.ErrPoolInactive)

	require.NoError(t, tl.Withdraw(alice, poolA, big.NewInt(20)))
	status, err = tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)
}

func TestWithdraw(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(30)))

	assert.ErrorIs(t, tl.Withdraw(alice, poolA, big.NewInt(25)), reverts.ErrInsufficientStakeAmount)
	assert.ErrorIs(t, tl.Withdraw(alice, poolA, big.NewInt(31)), reverts.ErrMaxWithdrawExceeded)
	require.NoError(t, tl.Withdraw(alice, poolA, big.NewInt(20)))
	require.NoError(t, tl.Withdraw(alice, poolA, big.NewInt(10)))

	delegators, err := tl.PoolDelegators(poolA)
	require.NoError(t, err)
	assert.Empty(t, delegators)
	assert.ErrorIs(t, tl.Withdraw(poolA, poolA, big.NewInt(50)), reverts.ErrInsufficientStakeAmount)
	tl.assertConserved(t, poolA)
}

func TestWithdrawWhileValidator(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(30)))
	tl.view.busy[miningA] = true

	// stake of the current epoch can still leave
	limit, err := tl.MaxWithdrawAllowed(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), limit.Int64())

	require.NoError(t, tl.vs.IncrementStakingEpoch())
	limit, err = tl.MaxWithdrawAllowed(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.Int64())
	assert.ErrorIs(t, tl.Withdraw(alice, poolA, big.NewInt(10)), reverts.ErrMaxWithdrawExceeded)

	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(15)))
	limit, err = tl.MaxWithdrawAllowed(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(15), limit.Int64())

	order, err := tl.MaxWithdrawOrderAllowed(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(30), order.Int64())
}

func TestStakeAndWithdrawWindow(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	end, err := tl.FixedEpochEndTime()
	require.NoError(t, err)
	assert.Equal(t, uint64(genesisTime+999), end)

	_, err = tl.chain.Append(end-100, hbbft.Address{})
	require.NoError(t, err)
	allowed, err := tl.AreStakeAndWithdrawAllowed()
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(10)))

	_, err = tl.chain.Append(end-99, hbbft.Address{})
	require.NoError(t, err)
	allowed, err = tl.AreStakeAndWithdrawAllowed()
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.ErrorIs(t, tl.Stake(alice, poolA, big.NewInt(10)), reverts.ErrWithdrawNotAllowed)

	limit, err := tl.MaxWithdrawAllowed(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.Int64())
	assert.Equal(t, reverts.KindValidation, reverts.KindOf(tl.Withdraw(alice, poolA, big.NewInt(10))))
}

func TestOrderedWithdraw(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(30)))
	tl.view.busy[miningA] = true

	assert.ErrorIs(t, tl.OrderWithdraw(alice, poolA, big.NewInt(10)), reverts.ErrMaxWithdrawExceeded,
		"stake of the current epoch is withdrawn directly")
	require.NoError(t, tl.vs.IncrementStakingEpoch())

	require.NoError(t, tl.OrderWithdraw(alice, poolA, big.NewInt(10)))
	assert.Equal(t, int64(20), tl.stakeOf(t, poolA, alice))
	assert.Equal(t, int64(120), tl.totalOf(t, poolA))

	// cancel part of the order
	require.NoError(t, tl.OrderWithdraw(alice, poolA, big.NewInt(-4)))
	amount, epoch, err := tl.OrderedWithdrawAmount(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(6), amount.Int64())
	assert.Equal(t, uint64(1), epoch)
	assert.Equal(t, int64(24), tl.stakeOf(t, poolA, alice))
	assert.ErrorIs(t, tl.OrderWithdraw(alice, poolA, big.NewInt(-7)), reverts.ErrMaxWithdrawExceeded)

	_, err = tl.ClaimOrderedWithdraw(alice, poolA)
	assert.ErrorIs(t, err, reverts.ErrClaimTooEarly)

	require.NoError(t, tl.vs.IncrementStakingEpoch())
	claimed, err := tl.ClaimOrderedWithdraw(alice, poolA)
	require.NoError(t, err)
	assert.Equal(t, int64(6), claimed.Int64())

	_, err = tl.ClaimOrderedWithdraw(alice, poolA)
	assert.ErrorIs(t, err, reverts.ErrNoOrderedWithdraw)
	tl.assertConserved(t, poolA)
}

func TestOrderWithdrawWholeOwnStake(t *testing.T) {
	tl := newTestLedger(t)
	tl.view.available[miningA] = true
	tl.addPool(t, poolA, miningA, 100)
	tl.view.busy[miningA] = true
	require.NoError(t, tl.vs.IncrementStakingEpoch())

	require.NoError(t, tl.OrderWithdraw(poolA, poolA, big.NewInt(100)))
	status, err := tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusToBeRemoved, status)
	elected, err := tl.PoolsToBeElected()
	require.NoError(t, err)
	assert.Empty(t, elected)

	// the validator left the set, so the next epoch drops the pool
	tl.view.busy[miningA] = false
	require.NoError(t, tl.vs.IncrementStakingEpoch())
	status, err = tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)

	claimed, err := tl.ClaimOrderedWithdraw(poolA, poolA)
	require.NoError(t, err)
	assert.Equal(t, int64(100), claimed.Int64())
}

func TestMoveStake(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	tl.addPool(t, poolB, miningB, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(20)))

	assert.ErrorIs(t, tl.MoveStake(alice, poolA, poolA, big.NewInt(10)), reverts.ErrSamePool)
	assert.ErrorIs(t, tl.MoveStake(alice, poolA, poolB, big.NewInt(15)), reverts.ErrInsufficientStakeAmount)
	assert.Equal(t, int64(20), tl.stakeOf(t, poolA, alice))

	require.NoError(t, tl.MoveStake(alice, poolA, poolB, big.NewInt(10)))
	assert.Equal(t, int64(10), tl.stakeOf(t, poolA, alice))
	assert.Equal(t, int64(10), tl.stakeOf(t, poolB, alice))
	tl.assertConserved(t, poolA)
	tl.assertConserved(t, poolB)
}

func TestRemoveMyPoolAndNotifyAvailable(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	elected, err := tl.PoolsToBeElected()
	require.NoError(t, err)
	assert.Empty(t, elected, "unavailable validators are not electable")

	tl.view.available[miningA] = true
	require.NoError(t, tl.vs.NotifyAvailable(poolA))
	elected, err = tl.PoolsToBeElected()
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{poolA}, elected)

	require.NoError(t, tl.RemoveMyPool(poolA))
	status, err := tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status)
	assert.ErrorIs(t, tl.RemoveMyPool(bob), reverts.ErrPoolNotExist)
}

func TestPoolsLikelihood(t *testing.T) {
	tl := newTestLedger(t)
	tl.view.available[miningA] = true
	tl.view.available[miningB] = true
	tl.addPool(t, poolA, miningA, 100)
	tl.addPool(t, poolB, miningB, 120)
	require.NoError(t, tl.Stake(alice, poolB, big.NewInt(30)))

	res, err := tl.PoolsLikelihood()
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{poolA, poolB}, res.Pools)
	assert.Equal(t, int64(100), res.Likelihoods[0].Int64())
	assert.Equal(t, int64(150), res.Likelihoods[1].Int64())
	assert.Equal(t, int64(250), res.Sum.Int64())
}

func TestPoolInfoAndOperator(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)

	key := make([]byte, PublicKeyLength)
	key[0] = 7
	require.NoError(t, tl.SetPoolInfo(poolA, key, ipAddress, 30303))
	assert.ErrorIs(t, tl.SetPoolInfo(poolA, key, ipAddress[:4], 1), reverts.ErrInvalidIPAddress)
	require.NoError(t, tl.SetNodeOperator(poolA, op, 1500))
	assert.ErrorIs(t, tl.SetNodeOperator(poolA, op, 2500), reverts.ErrInvalidNodeOperatorFee)

	p, err := tl.Pool(poolA)
	require.NoError(t, err)
	assert.Equal(t, key, p.PublicKey)
	assert.Equal(t, uint64(30303), p.Port)
	assert.Equal(t, op, p.Operator)
	assert.Equal(t, uint64(1500), p.OperatorShare)
}

func TestRestake(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(100)))
	require.NoError(t, tl.reward.SnapshotPoolStakeAmounts(0, poolA))

	// later stakes do not change the snapshot
	require.NoError(t, tl.Stake(bob, poolA, big.NewInt(50)))
	require.NoError(t, tl.reward.SnapshotPoolStakeAmounts(0, poolA))
	snap, err := tl.Snapshot(0, poolA)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.TotalStake.Int64())

	distributed, err := tl.reward.Restake(poolA, big.NewInt(1000), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), distributed.Int64())

	// validator: 300 fixed + 700*100/200, delegator: 700*100/200
	assert.Equal(t, int64(750), tl.stakeOf(t, poolA, poolA))
	assert.Equal(t, int64(450), tl.stakeOf(t, poolA, alice))
	assert.Equal(t, int64(50), tl.stakeOf(t, poolA, bob))
	tl.assertConserved(t, poolA)

	thisEpoch, err := tl.StakeAmountThisEpoch(poolA, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), thisEpoch.Int64(), "rewards are not new stake")
}

func TestRestakeWithOperator(t *testing.T) {
	tl := newTestLedger(t)
	require.NoError(t, tl.AddPool(poolA, miningA, op, 1000, publicKey, ipAddress, big.NewInt(100)))
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(100)))

	distributed, err := tl.reward.Restake(poolA, big.NewInt(1000), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), distributed.Int64())

	assert.Equal(t, int64(100), tl.stakeOf(t, poolA, op))
	assert.Equal(t, int64(100+550), tl.stakeOf(t, poolA, poolA))
	assert.Equal(t, int64(100+350), tl.stakeOf(t, poolA, alice))
	tl.assertConserved(t, poolA)
}

// A node operator reward may leave the operator holding less than the delegator minimum.
// Such a residue can only leave in full or grow past the minimum.
func TestOperatorRewardResidue(t *testing.T) {
	tl := newTestLedger(t)
	require.NoError(t, tl.AddPool(poolA, miningA, op, 500, publicKey, ipAddress, big.NewInt(100)))

	distributed, err := tl.reward.Restake(poolA, big.NewInt(100), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(100), distributed.Int64())
	assert.Equal(t, int64(5), tl.stakeOf(t, poolA, op))
	assert.Equal(t, int64(195), tl.stakeOf(t, poolA, poolA))
	tl.assertConserved(t, poolA)

	assert.ErrorIs(t, tl.Withdraw(op, poolA, big.NewInt(2)), reverts.ErrInsufficientStakeAmount)
	assert.ErrorIs(t, tl.Stake(op, poolA, big.NewInt(4)), reverts.ErrInsufficientStakeAmount)
	require.NoError(t, tl.Stake(op, poolA, big.NewInt(5)))
	require.NoError(t, tl.Withdraw(op, poolA, big.NewInt(10)))
	assert.Equal(t, int64(0), tl.stakeOf(t, poolA, op))

	delegators, err := tl.PoolDelegators(poolA)
	require.NoError(t, err)
	assert.Empty(t, delegators)
	tl.assertConserved(t, poolA)
}

func TestRecoverAbandonedStakes(t *testing.T) {
	tl := newTestLedger(t)
	tl.addPool(t, poolA, miningA, 100)
	tl.addPool(t, poolB, miningB, 100)
	require.NoError(t, tl.Stake(alice, poolA, big.NewInt(21)))

	_, err := tl.RecoverAbandonedStakes()
	assert.ErrorIs(t, err, reverts.ErrNoStakesToRecover)

	tl.view.abandoned[poolA] = true
	recovered, err := tl.RecoverAbandonedStakes()
	require.NoError(t, err)
	assert.Equal(t, int64(121), recovered.Int64())
	assert.Equal(t, int64(60), tl.pots.governance.Int64())
	assert.Equal(t, int64(61), tl.pots.reinsert.Int64())

	assert.Equal(t, int64(0), tl.stakeOf(t, poolA, alice))
	assert.Equal(t, int64(0), tl.totalOf(t, poolA))
	status, err := tl.PoolStatus(poolA)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, status)
	assert.ErrorIs(t, tl.Stake(alice, poolA, big.NewInt(10)), reverts.ErrPoolAbandoned)
	assert.Equal(t, int64(100), tl.totalOf(t, poolB))

	_, err = tl.RecoverAbandonedStakes()
	assert.ErrorIs(t, err, reverts.ErrNoStakesToRecover, "pools are recovered once")
}

func TestGrantOnce(t *testing.T) {
	tl := newTestLedger(t)
	_, err := tl.GrantValidatorSetAccess(tl.view)
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)
	_, err = tl.GrantRewardAccess(tl.pots)
	assert.ErrorIs(t, err, reverts.ErrAlreadyGranted)

	l := New(hbbft.Address{1}, state.New(nil), tl.chain, testConfig())
	_, err = l.RecoverAbandonedStakes()
	assert.ErrorIs(t, err, reverts.ErrRecoveryNotAllowed)
}

func TestEpochBookkeeping(t *testing.T) {
	tl := newTestLedger(t)
	require.NoError(t, tl.vs.NotifyKeyGenFailed())
	require.NoError(t, tl.vs.NotifyKeyGenFailed())
	window, err := tl.KeyGenExtraTimeWindow()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), window)

	blk, err := tl.chain.Append(genesisTime+1200, hbbft.Address{})
	require.NoError(t, err)
	require.NoError(t, tl.vs.IncrementStakingEpoch())

	epoch, err := tl.StakingEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)
	start, err := tl.EpochStartTime()
	require.NoError(t, err)
	assert.Equal(t, blk.Time, start)
	startBlock, err := tl.EpochStartBlock()
	require.NoError(t, err)
	assert.Equal(t, blk.Number, startBlock)
	window, err = tl.KeyGenExtraTimeWindow()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), window)

	assert.Error(t, tl.Initialize(1, 0))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := testConfig()
	cfg.WithdrawDisallowPeriod = cfg.FixedEpochDuration
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.GovernanceRecoveryShare = Ratio{Num: 3, Den: 2}
	assert.Error(t, cfg.Validate())
}
