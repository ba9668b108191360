// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package connectivity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/keygen"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

const genesisTime = 10_000

type fixedSeed hbbft.Bytes32

func (s fixedSeed) CurrentSeed() (hbbft.Bytes32, error) { return hbbft.Bytes32(s), nil }

func stakingAddr(i int) hbbft.Address { return hbbft.BytesToAddress([]byte{'s', byte(i)}) }
func miningAddr(i int) hbbft.Address  { return hbbft.BytesToAddress([]byte{'m', byte(i)}) }

type fixture struct {
	chain   *chain.Chain
	ledger  *staking.Ledger
	vs      *validatorset.Controller
	tracker *Tracker
}

func newFixture(t *testing.T, n int, cfg Config) *fixture {
	c := chain.NewMem(genesisTime)
	st := state.New(nil)
	ledger := staking.New(hbbft.BytesToAddress([]byte("staking")), st, c, staking.Config{
		CandidateMinStake:         big.NewInt(100),
		DelegatorMinStake:         big.NewInt(10),
		MaxStake:                  big.NewInt(10_000),
		FixedEpochDuration:        1000,
		TransitionTimeframeLength: 50,
		WithdrawDisallowPeriod:    100,
		MaxNodeOperatorShare:      2000,
		GovernanceRecoveryShare:   staking.Ratio{Num: 1, Den: 2},
	})
	require.NoError(t, ledger.Initialize(genesisTime, 0))
	kg := keygen.New(hbbft.BytesToAddress([]byte("keygen")), st, ledger)
	vs, err := validatorset.New(hbbft.BytesToAddress([]byte("validatorset")), st, c, ledger, kg, fixedSeed{1},
		validatorset.DefaultConfig())
	require.NoError(t, err)
	tracker, err := New(hbbft.BytesToAddress([]byte("connectivity")), st, ledger, vs, cfg)
	require.NoError(t, err)

	var genesis []hbbft.Address
	for i := 0; i < n; i++ {
		genesis = append(genesis, miningAddr(i))
	}
	require.NoError(t, vs.Initialize(genesis))
	for i := 0; i < n; i++ {
		require.NoError(t, ledger.AddPool(stakingAddr(i), miningAddr(i), hbbft.Address{}, 0,
			make([]byte, staking.PublicKeyLength), make([]byte, staking.IPAddressLength), big.NewInt(100)))
	}
	_, err = c.Append(genesisTime+1, hbbft.Address{})
	require.NoError(t, err)
	return &fixture{chain: c, ledger: ledger, vs: vs, tracker: tracker}
}

// ref returns a fresh block reference.
func (f *fixture) ref(t *testing.T) (uint64, hbbft.Bytes32) {
	n := f.chain.Current().Number - 1
	hash, ok, err := f.chain.BlockHash(n)
	require.NoError(t, err)
	require.True(t, ok)
	return n, hash
}

func (f *fixture) report(t *testing.T, reporter, validator int) error {
	n, hash := f.ref(t)
	return f.tracker.ReportMissingConnectivity(miningAddr(reporter), miningAddr(validator), n, hash)
}

func TestThresholds(t *testing.T) {
	cases := []struct{ n, threshold, tolerance uint64 }{
		{1, 1, 0},
		{3, 3, 0},
		{4, 3, 1},
		{7, 5, 2},
		{25, 17, 8},
	}
	tracker := &Tracker{}
	for _, c := range cases {
		assert.Equal(t, c.threshold, FaultyThreshold(c.n), "n=%d", c.n)
		assert.Equal(t, c.tolerance, tracker.Tolerance(c.n), "n=%d", c.n)
	}
	assert.Equal(t, uint64(5), (&Tracker{cfg: Config{EarlyEpochEndTolerance: 5}}).Tolerance(4))
}

func TestReportPreconditions(t *testing.T) {
	f := newFixture(t, 4, Config{})
	n, hash := f.ref(t)

	assert.ErrorIs(t, f.tracker.ReportMissingConnectivity(hbbft.Address{9}, miningAddr(0), n, hash), reverts.ErrNotCurrentValidator)
	assert.ErrorIs(t, f.tracker.ReportMissingConnectivity(miningAddr(0), hbbft.Address{9}, n, hash), reverts.ErrNotCurrentValidator)
	assert.ErrorIs(t, f.tracker.ReportMissingConnectivity(miningAddr(0), miningAddr(0), n, hash), reverts.ErrUnauthorized)
	assert.ErrorIs(t, f.tracker.ReportMissingConnectivity(miningAddr(0), miningAddr(1), n, hbbft.Bytes32{1}), reverts.ErrInvalidAnnounceHash)
	assert.ErrorIs(t, f.tracker.ReportMissingConnectivity(miningAddr(0), miningAddr(1), n+1, hash), reverts.ErrInvalidAnnounceBlockNum)

	require.NoError(t, f.report(t, 0, 1))
	assert.ErrorIs(t, f.report(t, 0, 1), reverts.ErrAlreadyReported)

	reporters, err := f.tracker.Reporters(0, miningAddr(1))
	require.NoError(t, err)
	assert.Equal(t, []hbbft.Address{miningAddr(0)}, reporters)
}

func TestReconnect(t *testing.T) {
	f := newFixture(t, 4, Config{})
	n, hash := f.ref(t)
	assert.ErrorIs(t, f.tracker.ReportReconnect(miningAddr(0), miningAddr(1), n, hash), reverts.ErrUnknownReport)

	require.NoError(t, f.report(t, 0, 1))
	require.NoError(t, f.tracker.ReportReconnect(miningAddr(0), miningAddr(1), n, hash))
	reporters, err := f.tracker.Reporters(0, miningAddr(1))
	require.NoError(t, err)
	assert.Empty(t, reporters)

	// reports can be made again after a reconnect
	require.NoError(t, f.report(t, 0, 1))
}

func TestFaultyValidator(t *testing.T) {
	f := newFixture(t, 4, Config{})

	require.NoError(t, f.report(t, 1, 0))
	require.NoError(t, f.report(t, 2, 0))
	faulty, err := f.tracker.IsFaulty(0, miningAddr(0))
	require.NoError(t, err)
	assert.False(t, faulty, "two of four is below the threshold")

	require.NoError(t, f.report(t, 3, 0))
	faulty, err = f.tracker.IsFaulty(0, miningAddr(0))
	require.NoError(t, err)
	assert.True(t, faulty)

	available, err := f.vs.IsValidatorAvailable(miningAddr(0))
	require.NoError(t, err)
	assert.False(t, available)
	status, err := f.ledger.PoolStatus(stakingAddr(0))
	require.NoError(t, err)
	assert.Equal(t, staking.StatusToBeRemoved, status)

	// one faulty validator is tolerated in a set of four
	trigger, err := f.vs.EarlyEpochEndTriggerTime()
	require.NoError(t, err)
	assert.Zero(t, trigger)

	// unflagged when a reporter reconnects
	n, hash := f.ref(t)
	require.NoError(t, f.tracker.ReportReconnect(miningAddr(3), miningAddr(0), n, hash))
	faulty, err = f.tracker.IsFaulty(0, miningAddr(0))
	require.NoError(t, err)
	assert.False(t, faulty)
}

func TestEarlyEpochEnd(t *testing.T) {
	f := newFixture(t, 4, Config{})
	for _, reporter := range []int{1, 2, 3} {
		require.NoError(t, f.report(t, reporter, 0))
	}
	for _, reporter := range []int{0, 2, 3} {
		require.NoError(t, f.report(t, reporter, 1))
	}

	faulty, err := f.tracker.FaultyValidators(0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []hbbft.Address{miningAddr(0), miningAddr(1)}, faulty)

	trigger, err := f.vs.EarlyEpochEndTriggerTime()
	require.NoError(t, err)
	assert.Equal(t, f.chain.Current().Time, trigger)
	eligible, err := f.vs.IsEarlyEpochEndEligible(0)
	require.NoError(t, err)
	assert.False(t, eligible)

	// a third faulty validator does not signal twice
	for _, reporter := range []int{0, 1, 3} {
		require.NoError(t, f.report(t, reporter, 2))
	}
}

func TestConfiguredTolerance(t *testing.T) {
	f := newFixture(t, 4, Config{EarlyEpochEndTolerance: 2})
	for _, reporter := range []int{1, 2, 3} {
		require.NoError(t, f.report(t, reporter, 0))
	}
	for _, reporter := range []int{0, 2, 3} {
		require.NoError(t, f.report(t, reporter, 1))
	}
	trigger, err := f.vs.EarlyEpochEndTriggerTime()
	require.NoError(t, err)
	assert.Zero(t, trigger)
}
