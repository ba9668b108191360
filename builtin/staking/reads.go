// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

func (l *Ledger) StakeAmount(pool, staker hbbft.Address) (*big.Int, error) {
	return l.st.getStake(pool, staker)
}

func (l *Ledger) StakeAmountTotal(pool hbbft.Address) (*big.Int, error) {
	p, err := l.st.getPool(pool)
	if err != nil {
		return nil, err
	}
	return p.total(), nil
}

// StakeAmountThisEpoch returns how much the staker added to pool during the current staking epoch.
func (l *Ledger) StakeAmountThisEpoch(pool, staker hbbft.Address) (*big.Int, error) {
	epoch, err := l.epoch()
	if err != nil {
		return nil, err
	}
	return l.st.stakeThisEpoch(pool, staker, epoch)
}

// OrderedWithdrawAmount returns the pending ordered amount and the epoch it was last ordered in.
func (l *Ledger) OrderedWithdrawAmount(pool, staker hbbft.Address) (*big.Int, uint64, error) {
	o, err := l.st.getOrder(pool, staker)
	if err != nil {
		return nil, 0, err
	}
	return o.Amount, o.Epoch, nil
}

// MaxWithdrawAllowed returns how much of the staker's stake can leave pool right now.
func (l *Ledger) MaxWithdrawAllowed(pool, staker hbbft.Address) (*big.Int, error) {
	allowed, err := l.AreStakeAndWithdrawAllowed()
	if err != nil || !allowed {
		return new(big.Int), err
	}
	p, err := l.st.getPool(pool)
	if err != nil {
		return nil, err
	}
	if !p.Exists() || p.Abandoned {
		return new(big.Int), nil
	}
	stake, err := l.st.getStake(pool, staker)
	if err != nil {
		return nil, err
	}
	busy, err := l.view.IsValidatorOrPending(p.Mining)
	if err != nil {
		return nil, err
	}
	if !busy {
		return stake, nil
	}
	// stake of a running validator is locked, except what arrived in this epoch
	thisEpoch, err := l.StakeAmountThisEpoch(pool, staker)
	if err != nil {
		return nil, err
	}
	if thisEpoch.Cmp(stake) < 0 {
		return thisEpoch, nil
	}
	return stake, nil
}

// MaxWithdrawOrderAllowed returns how much of the staker's stake can be ordered for withdrawal.
func (l *Ledger) MaxWithdrawOrderAllowed(pool, staker hbbft.Address) (*big.Int, error) {
	allowed, err := l.AreStakeAndWithdrawAllowed()
	if err != nil || !allowed {
		return new(big.Int), err
	}
	p, err := l.st.getPool(pool)
	if err != nil {
		return nil, err
	}
	if !p.Exists() || p.Abandoned {
		return new(big.Int), nil
	}
	active, err := l.st.active.Contains(pool)
	if err != nil {
		return nil, err
	}
	if !active {
		return new(big.Int), nil
	}
	busy, err := l.view.IsValidatorOrPending(p.Mining)
	if err != nil {
		return nil, err
	}
	if !busy {
		return new(big.Int), nil
	}
	stake, err := l.st.getStake(pool, staker)
	if err != nil {
		return nil, err
	}
	thisEpoch, err := l.StakeAmountThisEpoch(pool, staker)
	if err != nil {
		return nil, err
	}
	if thisEpoch.Cmp(stake) > 0 {
		return new(big.Int), nil
	}
	return stake.Sub(stake, thisEpoch), nil
}

// Pool returns the record of pool. The record is zero if the pool was never added.
func (l *Ledger) Pool(pool hbbft.Address) (*Pool, error) {
	return l.st.getPool(pool)
}

// Pools returns the active pools.
func (l *Ledger) Pools() ([]hbbft.Address, error) {
	return l.st.active.Values()
}

// AllPools returns every pool ever added, in order of creation.
func (l *Ledger) AllPools() ([]hbbft.Address, error) {
	return l.st.all.Values()
}

func (l *Ledger) PoolsToBeElected() ([]hbbft.Address, error) {
	return l.st.toBeElected.Values()
}

func (l *Ledger) PoolsToBeRemoved() ([]hbbft.Address, error) {
	return l.st.toBeRemoved.Values()
}

func (l *Ledger) PoolsInactive() ([]hbbft.Address, error) {
	return l.st.inactive.Values()
}

func (l *Ledger) PoolsAbandoned() ([]hbbft.Address, error) {
	return l.st.abandoned.Values()
}

// PoolDelegators returns the delegators that hold stake or a pending order in pool.
func (l *Ledger) PoolDelegators(pool hbbft.Address) ([]hbbft.Address, error) {
	return l.st.delegators(pool).Values()
}

// PoolsLikelihood returns the election candidates weighted by their total stake.
// Pools whose own stake fell below the candidate minimum are excluded.
func (l *Ledger) PoolsLikelihood() (*Likelihood, error) {
	res := &Likelihood{Sum: new(big.Int)}
	err := l.st.toBeElected.Iter(func(pool hbbft.Address) error {
		own, err := l.st.getStake(pool, pool)
		if err != nil {
			return err
		}
		if own.Cmp(l.cfg.CandidateMinStake) < 0 {
			return nil
		}
		p, err := l.st.getPool(pool)
		if err != nil {
			return err
		}
		weight := p.total()
		if weight.Sign() == 0 {
			return nil
		}
		res.Pools = append(res.Pools, pool)
		res.Likelihoods = append(res.Likelihoods, weight)
		res.Sum.Add(res.Sum, weight)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Snapshot returns the frozen stakes of pool for epoch. Taken is false when none was recorded.
func (l *Ledger) Snapshot(epoch uint64, pool hbbft.Address) (*Snapshot, error) {
	return l.st.getSnapshot(epoch, pool)
}

// MiningByStaking returns the mining address of pool, zero if unknown.
func (l *Ledger) MiningByStaking(pool hbbft.Address) (hbbft.Address, error) {
	p, err := l.st.getPool(pool)
	if err != nil {
		return hbbft.Address{}, err
	}
	return p.Mining, nil
}

// StakingByMining returns the pool that registered mining, zero if unknown.
func (l *Ledger) StakingByMining(mining hbbft.Address) (hbbft.Address, error) {
	return l.st.stakingByMining.Get(mining)
}

func (l *Ledger) IsPoolActive(pool hbbft.Address) (bool, error) {
	return l.st.active.Contains(pool)
}

// PoolStatus derives the status of pool from the list it belongs to.
func (l *Ledger) PoolStatus(pool hbbft.Address) (Status, error) {
	checks := []struct {
		contains func(hbbft.Address) (bool, error)
		status   Status
	}{
		{l.st.abandoned.Contains, StatusAbandoned},
		{l.st.toBeRemoved.Contains, StatusToBeRemoved},
		{l.st.active.Contains, StatusActive},
		{l.st.inactive.Contains, StatusInactive},
	}
	for _, c := range checks {
		ok, err := c.contains(pool)
		if err != nil {
			return StatusNone, err
		}
		if ok {
			return c.status, nil
		}
	}
	return StatusNone, nil
}

func (l *Ledger) StakingEpoch() (uint64, error) {
	return l.st.stakingEpoch.Get()
}

func (l *Ledger) EpochStartTime() (uint64, error) {
	return l.st.epochStartTime.Get()
}

func (l *Ledger) EpochStartBlock() (uint64, error) {
	return l.st.epochStartBlock.Get()
}

// FixedEpochEndTime is the last second of the current epoch's fixed duration.
func (l *Ledger) FixedEpochEndTime() (uint64, error) {
	start, err := l.st.epochStartTime.Get()
	if err != nil {
		return 0, err
	}
	return start + l.cfg.FixedEpochDuration - 1, nil
}

// KeyGenExtraTimeWindow is the time added to the current epoch by failed key generation rounds.
func (l *Ledger) KeyGenExtraTimeWindow() (uint64, error) {
	return l.st.extraTimeWindow.Get()
}

// AreStakeAndWithdrawAllowed reports whether stake movements are open. They close
// WithdrawDisallowPeriod before the fixed epoch end, ahead of the key generation phase.
func (l *Ledger) AreStakeAndWithdrawAllowed() (bool, error) {
	end, err := l.FixedEpochEndTime()
	if err != nil {
		return false, err
	}
	return l.now()+l.cfg.WithdrawDisallowPeriod <= end, nil
}
