// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/linkedlist"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

var (
	slotPools           = solidity.Slot("pools")
	slotStakingByMining = solidity.Slot("staking-by-mining")
	slotStakes          = solidity.Slot("stakes")
	slotStakesThisEpoch = solidity.Slot("stakes-this-epoch")
	slotOrders          = solidity.Slot("ordered-withdrawals")
	slotSnapshots       = solidity.Slot("snapshots")

	slotStakingEpoch    = solidity.Slot("staking-epoch")
	slotEpochStartTime  = solidity.Slot("epoch-start-time")
	slotEpochStartBlock = solidity.Slot("epoch-start-block")
	slotExtraTimeWindow = solidity.Slot("keygen-extra-time-window")
)

type storage struct {
	sctx *solidity.Context

	pools           *solidity.Mapping[hbbft.Address, Pool]
	stakingByMining *solidity.Mapping[hbbft.Address, hbbft.Address]
	stakes          *solidity.Mapping[hbbft.Bytes32, *big.Int]
	stakesThisEpoch *solidity.Mapping[hbbft.Bytes32, epochStake]
	orders          *solidity.Mapping[hbbft.Bytes32, orderedWithdraw]
	snapshots       *solidity.Mapping[hbbft.Bytes32, Snapshot]

	all         *linkedlist.LinkedList
	active      *linkedlist.LinkedList
	toBeElected *linkedlist.LinkedList
	toBeRemoved *linkedlist.LinkedList
	inactive    *linkedlist.LinkedList
	abandoned   *linkedlist.LinkedList

	stakingEpoch    *solidity.Uint64
	epochStartTime  *solidity.Uint64
	epochStartBlock *solidity.Uint64
	extraTimeWindow *solidity.Uint64
}

func newStorage(sctx *solidity.Context) *storage {
	return &storage{
		sctx: sctx,

		pools:           solidity.NewMapping[hbbft.Address, Pool](sctx, slotPools),
		stakingByMining: solidity.NewMapping[hbbft.Address, hbbft.Address](sctx, slotStakingByMining),
		stakes:          solidity.NewMapping[hbbft.Bytes32, *big.Int](sctx, slotStakes),
		stakesThisEpoch: solidity.NewMapping[hbbft.Bytes32, epochStake](sctx, slotStakesThisEpoch),
		orders:          solidity.NewMapping[hbbft.Bytes32, orderedWithdraw](sctx, slotOrders),
		snapshots:       solidity.NewMapping[hbbft.Bytes32, Snapshot](sctx, slotSnapshots),

		all:         linkedlist.New(sctx, "pools-all"),
		active:      linkedlist.New(sctx, "pools-active"),
		toBeElected: linkedlist.New(sctx, "pools-to-be-elected"),
		toBeRemoved: linkedlist.New(sctx, "pools-to-be-removed"),
		inactive:    linkedlist.New(sctx, "pools-inactive"),
		abandoned:   linkedlist.New(sctx, "pools-abandoned"),

		stakingEpoch:    solidity.NewUint64(sctx, slotStakingEpoch),
		epochStartTime:  solidity.NewUint64(sctx, slotEpochStartTime),
		epochStartBlock: solidity.NewUint64(sctx, slotEpochStartBlock),
		extraTimeWindow: solidity.NewUint64(sctx, slotExtraTimeWindow),
	}
}

func stakeKey(pool, staker hbbft.Address) hbbft.Bytes32 {
	return hbbft.Blake2b(pool.Bytes(), staker.Bytes())
}

func snapshotKey(epoch uint64, pool hbbft.Address) hbbft.Bytes32 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], epoch)
	return hbbft.Blake2b(b[:], pool.Bytes())
}

func (s *storage) delegators(pool hbbft.Address) *linkedlist.LinkedList {
	return linkedlist.New(s.sctx, "delegators-"+pool.String())
}

func (s *storage) getPool(pool hbbft.Address) (*Pool, error) {
	p, err := s.pools.Get(pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool")
	}
	return &p, nil
}

func (s *storage) setPool(pool hbbft.Address, p *Pool) error {
	if err := s.pools.Set(pool, *p); err != nil {
		return errors.Wrap(err, "failed to set pool")
	}
	return nil
}

func (s *storage) getStake(pool, staker hbbft.Address) (*big.Int, error) {
	v, err := s.stakes.Get(stakeKey(pool, staker))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stake")
	}
	return v, nil
}

func (s *storage) setStake(pool, staker hbbft.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		s.stakes.Delete(stakeKey(pool, staker))
		return nil
	}
	if err := s.stakes.Set(stakeKey(pool, staker), amount); err != nil {
		return errors.Wrap(err, "failed to set stake")
	}
	return nil
}

// stakeThisEpoch returns the amount staked during the given epoch.
func (s *storage) stakeThisEpoch(pool, staker hbbft.Address, epoch uint64) (*big.Int, error) {
	v, err := s.stakesThisEpoch.Get(stakeKey(pool, staker))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get epoch stake")
	}
	if v.Epoch != epoch || v.Amount == nil {
		return new(big.Int), nil
	}
	return v.Amount, nil
}

func (s *storage) setStakeThisEpoch(pool, staker hbbft.Address, epoch uint64, amount *big.Int) error {
	if amount.Sign() == 0 {
		s.stakesThisEpoch.Delete(stakeKey(pool, staker))
		return nil
	}
	if err := s.stakesThisEpoch.Set(stakeKey(pool, staker), epochStake{Epoch: epoch, Amount: amount}); err != nil {
		return errors.Wrap(err, "failed to set epoch stake")
	}
	return nil
}

func (s *storage) getOrder(pool, staker hbbft.Address) (*orderedWithdraw, error) {
	o, err := s.orders.Get(stakeKey(pool, staker))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ordered withdraw")
	}
	if o.Amount == nil {
		o.Amount = new(big.Int)
	}
	return &o, nil
}

func (s *storage) setOrder(pool, staker hbbft.Address, o *orderedWithdraw) error {
	if o.Amount.Sign() == 0 {
		s.orders.Delete(stakeKey(pool, staker))
		return nil
	}
	if err := s.orders.Set(stakeKey(pool, staker), *o); err != nil {
		return errors.Wrap(err, "failed to set ordered withdraw")
	}
	return nil
}

func (s *storage) getSnapshot(epoch uint64, pool hbbft.Address) (*Snapshot, error) {
	snap, err := s.snapshots.Get(snapshotKey(epoch, pool))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get snapshot")
	}
	return &snap, nil
}

func (s *storage) setSnapshot(epoch uint64, pool hbbft.Address, snap *Snapshot) error {
	if err := s.snapshots.Set(snapshotKey(epoch, pool), *snap); err != nil {
		return errors.Wrap(err, "failed to set snapshot")
	}
	return nil
}
