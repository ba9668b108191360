// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Initialize sets the start of epoch 0. It can only run once, at genesis.
func (l *Ledger) Initialize(startTime, startBlock uint64) error {
	return l.state.Atomic(func() error {
		current, err := l.st.epochStartTime.Get()
		if err != nil {
			return err
		}
		if current != 0 {
			return errors.New("staking already initialized")
		}
		if startTime == 0 {
			return errors.New("zero epoch start time")
		}
		l.st.epochStartTime.Set(startTime)
		l.st.epochStartBlock.Set(startBlock)
		return nil
	})
}

// GrantValidatorSetAccess hands out the operations reserved to the validator set.
// The view replaces the default one that treats every address as a non-validator.
func (l *Ledger) GrantValidatorSetAccess(view ValidatorView) (*ValidatorSetAccess, error) {
	if l.validatorSetAccess != nil {
		return nil, reverts.ErrAlreadyGranted
	}
	if view == nil {
		return nil, errors.New("nil validator view")
	}
	l.view = view
	l.validatorSetAccess = &ValidatorSetAccess{ledger: l}
	return l.validatorSetAccess, nil
}

// GrantRewardAccess hands out the operations reserved to the block reward distributor.
func (l *Ledger) GrantRewardAccess(pots Pots) (*RewardAccess, error) {
	if l.rewardAccess != nil {
		return nil, reverts.ErrAlreadyGranted
	}
	if pots == nil {
		return nil, errors.New("nil pots")
	}
	l.pots = pots
	l.rewardAccess = &RewardAccess{ledger: l}
	return l.rewardAccess, nil
}

// ValidatorSetAccess carries the staking operations only the validator set may perform.
type ValidatorSetAccess struct {
	ledger *Ledger
}

// RemovePool takes pool out of future elections, as if its owner called RemoveMyPool.
func (a *ValidatorSetAccess) RemovePool(pool hbbft.Address) error {
	l := a.ledger
	return l.state.Atomic(func() error {
		p, err := l.st.getPool(pool)
		if err != nil {
			return err
		}
		if !p.Exists() {
			return reverts.ErrPoolNotExist
		}
		if err := l.retirePool(pool, p); err != nil {
			return err
		}
		logger.Debug("pool removed", "pool", pool)
		return nil
	})
}

// NotifyAvailable makes a pool electable again once its validator announced availability.
func (a *ValidatorSetAccess) NotifyAvailable(pool hbbft.Address) error {
	l := a.ledger
	return l.state.Atomic(func() error {
		p, err := l.st.getPool(pool)
		if err != nil {
			return err
		}
		if !p.Exists() || p.Abandoned {
			return nil
		}
		own, err := l.st.getStake(pool, pool)
		if err != nil {
			return err
		}
		if own.Cmp(l.cfg.CandidateMinStake) < 0 {
			return nil
		}
		return l.activatePool(pool, p)
	})
}

// NotifyKeyGenFailed extends the current epoch by one transition timeframe.
func (a *ValidatorSetAccess) NotifyKeyGenFailed() error {
	l := a.ledger
	window, err := l.st.extraTimeWindow.Add(l.cfg.TransitionTimeframeLength)
	if err != nil {
		return err
	}
	logger.Debug("key generation extra time", "window", window)
	return nil
}

// IncrementStakingEpoch starts the next staking epoch at the current block.
// Pools waiting for removal leave the active lists once their validator is out of the set.
func (a *ValidatorSetAccess) IncrementStakingEpoch() error {
	l := a.ledger
	return l.state.Atomic(func() error {
		epoch, err := l.st.stakingEpoch.Add(1)
		if err != nil {
			return err
		}
		head := l.chain.Current()
		l.st.epochStartTime.Set(head.Time)
		l.st.epochStartBlock.Set(head.Number)
		l.st.extraTimeWindow.Set(0)

		pending, err := l.st.toBeRemoved.Values()
		if err != nil {
			return err
		}
		for _, pool := range pending {
			p, err := l.st.getPool(pool)
			if err != nil {
				return err
			}
			busy, err := l.view.IsValidatorOrPending(p.Mining)
			if err != nil {
				return err
			}
			if !busy {
				if err := l.removePool(pool, p); err != nil {
					return err
				}
			}
		}

		metricStakingEpoch().Set(int64(epoch))
		logger.Info("staking epoch started", "epoch", epoch, "time", head.Time, "block", head.Number)
		return nil
	})
}

// RewardAccess carries the staking operations only the block reward distributor may perform.
type RewardAccess struct {
	ledger *Ledger
}
