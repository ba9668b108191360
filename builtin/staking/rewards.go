// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// currentStakes builds a snapshot from the live stakes of pool.
func (l *Ledger) currentStakes(pool hbbft.Address) (*Snapshot, error) {
	own, err := l.st.getStake(pool, pool)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Taken:          true,
		ValidatorStake: own,
		TotalStake:     new(big.Int).Set(own),
	}
	err = l.st.delegators(pool).Iter(func(delegator hbbft.Address) error {
		stake, err := l.st.getStake(pool, delegator)
		if err != nil {
			return err
		}
		if stake.Sign() == 0 {
			return nil
		}
		snap.Delegators = append(snap.Delegators, delegator)
		snap.DelegatorStakes = append(snap.DelegatorStakes, stake)
		snap.TotalStake.Add(snap.TotalStake, stake)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// SnapshotPoolStakeAmounts freezes the stakes of pool for epoch. Later calls for the same pair are no-ops.
func (a *RewardAccess) SnapshotPoolStakeAmounts(epoch uint64, pool hbbft.Address) error {
	l := a.ledger
	return l.state.Atomic(func() error {
		existing, err := l.st.getSnapshot(epoch, pool)
		if err != nil {
			return err
		}
		if existing.Taken {
			return nil
		}
		snap, err := l.currentStakes(pool)
		if err != nil {
			return err
		}
		return l.st.setSnapshot(epoch, pool, snap)
	})
}

// credit adds amount to the stake of staker in pool without counting it as new stake of the epoch.
func (l *Ledger) credit(pool, staker hbbft.Address, p *Pool, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	current, err := l.st.getStake(pool, staker)
	if err != nil {
		return err
	}
	if err := l.st.setStake(pool, staker, current.Add(current, amount)); err != nil {
		return err
	}
	p.Total = new(big.Int).Add(p.total(), amount)
	if staker != pool {
		if _, err := l.st.delegators(pool).Add(staker); err != nil {
			return err
		}
	}
	return nil
}

// Restake credits reward to the stakers of pool as stake and returns the amount actually credited.
// validatorMinPercent of the reward is reserved to the validator, minus the node operator share,
// and the rest is split in proportion to the stakes snapshotted for the current epoch.
func (a *RewardAccess) Restake(pool hbbft.Address, reward *big.Int, validatorMinPercent uint64) (*big.Int, error) {
	l := a.ledger
	if validatorMinPercent > 100 {
		return nil, errors.Errorf("validator min percent %d above 100", validatorMinPercent)
	}
	distributed := new(big.Int)
	err := l.state.Atomic(func() error {
		if reward == nil || reward.Sign() == 0 {
			return nil
		}
		p, err := l.st.getPool(pool)
		if err != nil {
			return err
		}
		if !p.Exists() {
			return reverts.ErrPoolNotExist
		}
		if p.Abandoned {
			return nil
		}

		epoch, err := l.epoch()
		if err != nil {
			return err
		}
		snap, err := l.st.getSnapshot(epoch, pool)
		if err != nil {
			return err
		}
		if !snap.Taken {
			if snap, err = l.currentStakes(pool); err != nil {
				return err
			}
		}

		fixed := new(big.Int).Mul(reward, new(big.Int).SetUint64(validatorMinPercent))
		fixed.Div(fixed, big.NewInt(100))
		rest := new(big.Int).Sub(reward, fixed)

		operatorPart := new(big.Int)
		if !p.Operator.IsZero() && p.OperatorShare > 0 {
			operatorPart.Mul(reward, new(big.Int).SetUint64(p.OperatorShare))
			operatorPart.Div(operatorPart, big.NewInt(BasisPoints))
			if operatorPart.Cmp(fixed) > 0 {
				operatorPart.Set(fixed)
			}
		}

		total := snap.TotalStake
		validatorPart := new(big.Int)
		if total == nil || total.Sign() == 0 {
			validatorPart.Sub(reward, operatorPart)
		} else {
			validatorPart.Sub(fixed, operatorPart)
			share := new(big.Int).Mul(rest, snap.ValidatorStake)
			validatorPart.Add(validatorPart, share.Div(share, total))

			for i, delegator := range snap.Delegators {
				part := new(big.Int).Mul(rest, snap.DelegatorStakes[i])
				part.Div(part, total)
				if err := l.credit(pool, delegator, p, part); err != nil {
					return err
				}
				distributed.Add(distributed, part)
			}
		}

		if err := l.credit(pool, p.Operator, p, operatorPart); err != nil {
			return err
		}
		if err := l.credit(pool, pool, p, validatorPart); err != nil {
			return err
		}
		distributed.Add(distributed, operatorPart)
		distributed.Add(distributed, validatorPart)

		if err := l.st.setPool(pool, p); err != nil {
			return err
		}
		logger.Debug("reward restaked", "pool", pool, "reward", reward, "distributed", distributed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return distributed, nil
}

// RecoverAbandonedStakes confiscates the stakes of every pool whose validator has been
// inactive past the abandonment threshold. The sum is split between the governance pot
// and the reinsert pot.
func (l *Ledger) RecoverAbandonedStakes() (*big.Int, error) {
	if l.pots == nil {
		return nil, reverts.ErrRecoveryNotAllowed
	}
	recovered := new(big.Int)
	err := l.state.Atomic(func() error {
		pools, err := l.st.all.Values()
		if err != nil {
			return err
		}
		epoch, err := l.epoch()
		if err != nil {
			return err
		}
		for _, pool := range pools {
			p, err := l.st.getPool(pool)
			if err != nil {
				return err
			}
			if p.Abandoned {
				continue
			}
			abandoned, err := l.view.IsValidatorAbandoned(pool)
			if err != nil {
				return err
			}
			if !abandoned {
				continue
			}
			amount, err := l.confiscate(pool, p, epoch)
			if err != nil {
				return err
			}
			recovered.Add(recovered, amount)
			logger.Info("abandoned pool recovered", "pool", pool, "amount", amount)
		}
		if recovered.Sign() == 0 {
			return reverts.ErrNoStakesToRecover
		}

		governance := l.cfg.GovernanceRecoveryShare.Of(recovered)
		if err := l.pots.AddToGovernancePot(governance); err != nil {
			return err
		}
		return l.pots.AddToReinsertPot(new(big.Int).Sub(recovered, governance))
	})
	if err != nil {
		return nil, err
	}
	return recovered, nil
}

// confiscate zeroes every stake and pending order of pool and marks it abandoned.
// It returns the total taken.
func (l *Ledger) confiscate(pool hbbft.Address, p *Pool, epoch uint64) (*big.Int, error) {
	taken := new(big.Int)
	stakers, err := l.st.delegators(pool).Values()
	if err != nil {
		return nil, err
	}
	stakers = append(stakers, pool)
	for _, staker := range stakers {
		order, err := l.st.getOrder(pool, staker)
		if err != nil {
			return nil, err
		}
		// ordered amounts already left the pool total
		taken.Add(taken, order.Amount)
		if err := l.st.setOrder(pool, staker, &orderedWithdraw{Amount: new(big.Int)}); err != nil {
			return nil, err
		}
		if err := l.st.setStake(pool, staker, new(big.Int)); err != nil {
			return nil, err
		}
		if err := l.st.setStakeThisEpoch(pool, staker, epoch, new(big.Int)); err != nil {
			return nil, err
		}
	}
	if err := l.st.delegators(pool).Clear(); err != nil {
		return nil, err
	}

	taken.Add(taken, p.total())
	p.Total = new(big.Int)
	p.Abandoned = true
	if err := l.st.setPool(pool, p); err != nil {
		return nil, err
	}
	if err := l.removePool(pool, p); err != nil {
		return nil, err
	}
	if _, err := l.st.abandoned.Add(pool); err != nil {
		return nil, err
	}
	return taken, nil
}
