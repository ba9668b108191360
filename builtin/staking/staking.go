// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

var (
	logger = log.WithContext("pkg", "staking")

	metricStakeOps     = metrics.LazyLoadCounterVec("staking_ops_count", []string{"op"})
	metricStakingEpoch = metrics.LazyLoadGauge("staking_epoch")
)

// Ledger implements the staking pool ledger contract.
type Ledger struct {
	state *state.State
	chain xenv.Chain
	cfg   Config
	st    *storage

	view ValidatorView
	pots Pots

	validatorSetAccess *ValidatorSetAccess
	rewardAccess       *RewardAccess
}

// New create a new instance.
func New(addr hbbft.Address, st *state.State, chain xenv.Chain, cfg Config) *Ledger {
	return &Ledger{
		state: st,
		chain: chain,
		cfg:   cfg,
		st:    newStorage(solidity.NewContext(addr, st)),
		view:  noValidators{},
	}
}

// Config returns the staking parameters.
func (l *Ledger) Config() Config {
	return l.cfg
}

func (l *Ledger) now() uint64 {
	return l.chain.Current().Time
}

func (l *Ledger) epoch() (uint64, error) {
	return l.st.stakingEpoch.Get()
}

// existingPool returns the pool record, rejecting unknown and abandoned pools.
func (l *Ledger) existingPool(pool hbbft.Address) (*Pool, error) {
	p, err := l.st.getPool(pool)
	if err != nil {
		return nil, err
	}
	if !p.Exists() {
		return nil, reverts.ErrPoolNotExist
	}
	if p.Abandoned {
		return nil, reverts.ErrPoolAbandoned
	}
	return p, nil
}

func (l *Ledger) minStake(pool, staker hbbft.Address) *big.Int {
	if pool == staker {
		return l.cfg.CandidateMinStake
	}
	return l.cfg.DelegatorMinStake
}

// checkRemainingStake allows a stake to drop to zero or stay at or above the minimum.
func (l *Ledger) checkRemainingStake(pool, staker hbbft.Address, remaining *big.Int) error {
	if remaining.Sign() != 0 && remaining.Cmp(l.minStake(pool, staker)) < 0 {
		return reverts.ErrInsufficientStakeAmount
	}
	return nil
}

func validatePoolInfo(publicKey, ip []byte) error {
	if len(publicKey) != PublicKeyLength {
		return reverts.ErrInvalidPublicKey
	}
	if len(ip) != IPAddressLength {
		return reverts.ErrInvalidIPAddress
	}
	return nil
}

func (l *Ledger) validateOperator(operator hbbft.Address, share uint64) error {
	if share > l.cfg.MaxNodeOperatorShare || (operator.IsZero() && share != 0) {
		return reverts.ErrInvalidNodeOperatorFee
	}
	return nil
}

// AddPool registers a pool for the caller and stakes amount as the validator's own stake.
func (l *Ledger) AddPool(
	caller hbbft.Address,
	mining hbbft.Address,
	operator hbbft.Address,
	operatorShare uint64,
	publicKey []byte,
	ip []byte,
	amount *big.Int,
) error {
	return l.state.Atomic(func() error {
		if caller.IsZero() || mining.IsZero() {
			return reverts.ErrZeroAddress
		}
		if caller == mining {
			return errors.Wrap(reverts.ErrMiningAddressUsed, "mining address equals staking address")
		}
		if err := validatePoolInfo(publicKey, ip); err != nil {
			return err
		}
		if err := l.validateOperator(operator, operatorShare); err != nil {
			return err
		}

		existing, err := l.st.getPool(caller)
		if err != nil {
			return err
		}
		if existing.Exists() {
			return reverts.ErrPoolAlreadyExists
		}
		if owner, err := l.st.stakingByMining.Get(mining); err != nil {
			return err
		} else if !owner.IsZero() {
			return reverts.ErrMiningAddressUsed
		}
		// addresses of both roles must stay disjoint
		if p, err := l.st.getPool(mining); err != nil {
			return err
		} else if p.Exists() {
			return reverts.ErrMiningAddressUsed
		}
		if owner, err := l.st.stakingByMining.Get(caller); err != nil {
			return err
		} else if !owner.IsZero() {
			return reverts.ErrStakingAddressUsed
		}

		p := &Pool{
			Mining:        mining,
			Operator:      operator,
			OperatorShare: operatorShare,
			PublicKey:     publicKey,
			IP:            ip,
			Total:         new(big.Int),
		}
		if err := l.st.setPool(caller, p); err != nil {
			return err
		}
		if err := l.st.stakingByMining.Set(mining, caller); err != nil {
			return err
		}
		if _, err := l.st.all.Add(caller); err != nil {
			return err
		}
		if err := l.stake(caller, caller, amount); err != nil {
			return err
		}

		metricStakeOps().AddWithLabel(1, map[string]string{"op": "add_pool"})
		logger.Info("pool added", "pool", caller, "mining", mining, "amount", amount)
		return nil
	})
}

// Stake adds amount to the caller's stake in pool.
func (l *Ledger) Stake(caller, pool hbbft.Address, amount *big.Int) error {
	return l.state.Atomic(func() error {
		return l.stake(pool, caller, amount)
	})
}

func (l *Ledger) stake(pool, staker hbbft.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.ErrZeroAmount
	}
	p, err := l.existingPool(pool)
	if err != nil {
		return err
	}
	allowed, err := l.AreStakeAndWithdrawAllowed()
	if err != nil {
		return err
	}
	if !allowed {
		return reverts.ErrWithdrawNotAllowed
	}

	if staker != pool {
		own, err := l.st.getStake(pool, pool)
		if err != nil {
			return err
		}
		active, err := l.st.active.Contains(pool)
		if err != nil {
			return err
		}
		if own.Sign() == 0 || !active {
			return reverts.ErrPoolInactive
		}
	}

	current, err := l.st.getStake(pool, staker)
	if err != nil {
		return err
	}
	newStake := new(big.Int).Add(current, amount)
	if newStake.Cmp(l.minStake(pool, staker)) < 0 {
		return reverts.ErrInsufficientStakeAmount
	}
	newTotal := new(big.Int).Add(p.total(), amount)
	if newTotal.Cmp(l.cfg.MaxStake) > 0 {
		return reverts.ErrPoolStakeLimitExceeded
	}

	epoch, err := l.epoch()
	if err != nil {
		return err
	}
	thisEpoch, err := l.st.stakeThisEpoch(pool, staker, epoch)
	if err != nil {
		return err
	}

	if err := l.st.setStake(pool, staker, newStake); err != nil {
		return err
	}
	if err := l.st.setStakeThisEpoch(pool, staker, epoch, thisEpoch.Add(thisEpoch, amount)); err != nil {
		return err
	}
	p.Total = newTotal
	if err := l.st.setPool(pool, p); err != nil {
		return err
	}

	if staker == pool {
		if err := l.activatePool(pool, p); err != nil {
			return err
		}
	} else if _, err := l.st.delegators(pool).Add(staker); err != nil {
		return err
	}

	metricStakeOps().AddWithLabel(1, map[string]string{"op": "stake"})
	logger.Debug("staked", "pool", pool, "staker", staker, "amount", amount, "total", newTotal)
	return nil
}

// activatePool puts a pool with sufficient own stake back into the active list,
// and into the election list when its validator is available.
func (l *Ledger) activatePool(pool hbbft.Address, p *Pool) error {
	if _, err := l.st.active.Add(pool); err != nil {
		return err
	}
	if _, err := l.st.inactive.Remove(pool); err != nil {
		return err
	}
	if _, err := l.st.toBeRemoved.Remove(pool); err != nil {
		return err
	}
	available, err := l.view.IsValidatorAvailable(p.Mining)
	if err != nil {
		return err
	}
	if available {
		if _, err := l.st.toBeElected.Add(pool); err != nil {
			return err
		}
	}
	return nil
}

// retirePool takes a pool out of future elections. Pools currently in the validator set
// stay active until the next epoch starts.
func (l *Ledger) retirePool(pool hbbft.Address, p *Pool) error {
	busy, err := l.view.IsValidatorOrPending(p.Mining)
	if err != nil {
		return err
	}
	if !busy {
		return l.removePool(pool, p)
	}
	if _, err := l.st.toBeElected.Remove(pool); err != nil {
		return err
	}
	_, err = l.st.toBeRemoved.Add(pool)
	return err
}

// removePool drops a pool from the active lists, keeping it inactive while it holds stake.
func (l *Ledger) removePool(pool hbbft.Address, p *Pool) error {
	for _, list := range []interface {
		Remove(hbbft.Address) (bool, error)
	}{l.st.active, l.st.toBeElected, l.st.toBeRemoved} {
		if _, err := list.Remove(pool); err != nil {
			return err
		}
	}
	if p.total().Sign() > 0 && !p.Abandoned {
		_, err := l.st.inactive.Add(pool)
		return err
	}
	_, err := l.st.inactive.Remove(pool)
	return err
}

// afterStakeDecrease keeps lists consistent once a stake shrank to remaining.
func (l *Ledger) afterStakeDecrease(pool, staker hbbft.Address, p *Pool, remaining *big.Int) error {
	if staker == pool {
		if remaining.Sign() == 0 {
			return l.retirePool(pool, p)
		}
		if active, err := l.st.active.Contains(pool); err != nil || active {
			return err
		}
		// an inactive pool may become empty
		return l.removePool(pool, p)
	}
	if remaining.Sign() != 0 {
		return nil
	}
	order, err := l.st.getOrder(pool, staker)
	if err != nil {
		return err
	}
	if order.Amount.Sign() == 0 {
		if _, err := l.st.delegators(pool).Remove(staker); err != nil {
			return err
		}
	}
	if active, err := l.st.active.Contains(pool); err != nil || active {
		return err
	}
	return l.removePool(pool, p)
}

// Withdraw returns amount of the caller's stake in pool immediately.
func (l *Ledger) Withdraw(caller, pool hbbft.Address, amount *big.Int) error {
	return l.state.Atomic(func() error {
		return l.withdraw(pool, caller, amount)
	})
}

func (l *Ledger) withdraw(pool, staker hbbft.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.ErrZeroAmount
	}
	p, err := l.existingPool(pool)
	if err != nil {
		return err
	}
	maxAllowed, err := l.MaxWithdrawAllowed(pool, staker)
	if err != nil {
		return err
	}
	if amount.Cmp(maxAllowed) > 0 {
		return reverts.ErrMaxWithdrawExceeded
	}

	current, err := l.st.getStake(pool, staker)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(current, amount)
	if err := l.checkRemainingStake(pool, staker, remaining); err != nil {
		return err
	}

	epoch, err := l.epoch()
	if err != nil {
		return err
	}
	thisEpoch, err := l.st.stakeThisEpoch(pool, staker, epoch)
	if err != nil {
		return err
	}
	if thisEpoch.Cmp(amount) > 0 {
		thisEpoch.Sub(thisEpoch, amount)
	} else {
		thisEpoch.SetUint64(0)
	}

	if err := l.st.setStake(pool, staker, remaining); err != nil {
		return err
	}
	if err := l.st.setStakeThisEpoch(pool, staker, epoch, thisEpoch); err != nil {
		return err
	}
	p.Total = new(big.Int).Sub(p.total(), amount)
	if err := l.st.setPool(pool, p); err != nil {
		return err
	}
	if err := l.afterStakeDecrease(pool, staker, p, remaining); err != nil {
		return err
	}

	metricStakeOps().AddWithLabel(1, map[string]string{"op": "withdraw"})
	logger.Debug("withdrawn", "pool", pool, "staker", staker, "amount", amount, "total", p.Total)
	return nil
}

// OrderWithdraw orders a withdrawal of stake that can only leave at the next epoch.
// A negative amount cancels that much of an existing order and restakes it.
func (l *Ledger) OrderWithdraw(caller, pool hbbft.Address, amount *big.Int) error {
	return l.state.Atomic(func() error {
		if amount == nil || amount.Sign() == 0 {
			return reverts.ErrZeroAmount
		}
		p, err := l.existingPool(pool)
		if err != nil {
			return err
		}
		allowed, err := l.AreStakeAndWithdrawAllowed()
		if err != nil {
			return err
		}
		if !allowed {
			return reverts.ErrWithdrawNotAllowed
		}

		epoch, err := l.epoch()
		if err != nil {
			return err
		}
		current, err := l.st.getStake(pool, caller)
		if err != nil {
			return err
		}
		order, err := l.st.getOrder(pool, caller)
		if err != nil {
			return err
		}

		var newStake *big.Int
		if amount.Sign() > 0 {
			maxAllowed, err := l.MaxWithdrawOrderAllowed(pool, caller)
			if err != nil {
				return err
			}
			if amount.Cmp(maxAllowed) > 0 {
				return reverts.ErrMaxWithdrawExceeded
			}
			newStake = new(big.Int).Sub(current, amount)
			if err := l.checkRemainingStake(pool, caller, newStake); err != nil {
				return err
			}
			order.Amount.Add(order.Amount, amount)
			order.Epoch = epoch
			p.Total = new(big.Int).Sub(p.total(), amount)
		} else {
			cancel := new(big.Int).Neg(amount)
			if cancel.Cmp(order.Amount) > 0 {
				return reverts.ErrMaxWithdrawExceeded
			}
			newStake = new(big.Int).Add(current, cancel)
			if newStake.Cmp(l.minStake(pool, caller)) < 0 {
				return reverts.ErrInsufficientStakeAmount
			}
			order.Amount.Sub(order.Amount, cancel)
			p.Total = new(big.Int).Add(p.total(), cancel)
			if p.Total.Cmp(l.cfg.MaxStake) > 0 {
				return reverts.ErrPoolStakeLimitExceeded
			}
		}

		if err := l.st.setStake(pool, caller, newStake); err != nil {
			return err
		}
		if err := l.st.setOrder(pool, caller, order); err != nil {
			return err
		}
		if err := l.st.setPool(pool, p); err != nil {
			return err
		}

		if amount.Sign() > 0 {
			if caller != pool {
				// kept as delegator while the order is pending
				if _, err := l.st.delegators(pool).Add(caller); err != nil {
					return err
				}
			}
			if err := l.afterStakeDecrease(pool, caller, p, newStake); err != nil {
				return err
			}
		} else if caller == pool {
			if err := l.activatePool(pool, p); err != nil {
				return err
			}
		}

		metricStakeOps().AddWithLabel(1, map[string]string{"op": "order_withdraw"})
		logger.Debug("withdraw ordered", "pool", pool, "staker", caller, "amount", amount, "ordered", order.Amount)
		return nil
	})
}

// ClaimOrderedWithdraw releases an order placed in an earlier epoch and returns its amount.
func (l *Ledger) ClaimOrderedWithdraw(caller, pool hbbft.Address) (*big.Int, error) {
	var claimed *big.Int
	err := l.state.Atomic(func() error {
		p, err := l.st.getPool(pool)
		if err != nil {
			return err
		}
		if !p.Exists() {
			return reverts.ErrPoolNotExist
		}
		order, err := l.st.getOrder(pool, caller)
		if err != nil {
			return err
		}
		if order.Amount.Sign() == 0 {
			return reverts.ErrNoOrderedWithdraw
		}
		epoch, err := l.epoch()
		if err != nil {
			return err
		}
		if epoch <= order.Epoch {
			return reverts.ErrClaimTooEarly
		}
		allowed, err := l.AreStakeAndWithdrawAllowed()
		if err != nil {
			return err
		}
		if !allowed {
			return reverts.ErrWithdrawNotAllowed
		}

		claimed = new(big.Int).Set(order.Amount)
		order.Amount.SetUint64(0)
		if err := l.st.setOrder(pool, caller, order); err != nil {
			return err
		}
		if caller != pool {
			stake, err := l.st.getStake(pool, caller)
			if err != nil {
				return err
			}
			if stake.Sign() == 0 {
				if _, err := l.st.delegators(pool).Remove(caller); err != nil {
					return err
				}
			}
		}

		metricStakeOps().AddWithLabel(1, map[string]string{"op": "claim"})
		logger.Debug("ordered withdraw claimed", "pool", pool, "staker", caller, "amount", claimed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MoveStake withdraws amount from one pool and stakes it into another in one step.
func (l *Ledger) MoveStake(caller, from, to hbbft.Address, amount *big.Int) error {
	return l.state.Atomic(func() error {
		if from == to {
			return reverts.ErrSamePool
		}
		if err := l.withdraw(from, caller, amount); err != nil {
			return errors.Wrap(err, "move stake")
		}
		if err := l.stake(to, caller, amount); err != nil {
			return errors.Wrap(err, "move stake")
		}
		logger.Debug("stake moved", "staker", caller, "from", from, "to", to, "amount", amount)
		return nil
	})
}

// RemoveMyPool takes the caller's pool out of future elections. Stakes stay in place.
func (l *Ledger) RemoveMyPool(caller hbbft.Address) error {
	return l.state.Atomic(func() error {
		p, err := l.existingPool(caller)
		if err != nil {
			return err
		}
		if err := l.retirePool(caller, p); err != nil {
			return err
		}
		logger.Info("pool removed by owner", "pool", caller)
		return nil
	})
}

// SetPoolInfo updates the public key and network endpoint of the caller's pool.
func (l *Ledger) SetPoolInfo(caller hbbft.Address, publicKey, ip []byte, port uint16) error {
	return l.state.Atomic(func() error {
		p, err := l.existingPool(caller)
		if err != nil {
			return err
		}
		if err := validatePoolInfo(publicKey, ip); err != nil {
			return err
		}
		p.PublicKey = publicKey
		p.IP = ip
		p.Port = uint64(port)
		return l.st.setPool(caller, p)
	})
}

// SetNodeOperator sets who operates the node of the caller's pool and the reward share they get.
func (l *Ledger) SetNodeOperator(caller, operator hbbft.Address, share uint64) error {
	return l.state.Atomic(func() error {
		p, err := l.existingPool(caller)
		if err != nil {
			return err
		}
		if err := l.validateOperator(operator, share); err != nil {
			return err
		}
		p.Operator = operator
		p.OperatorShare = share
		if err := l.st.setPool(caller, p); err != nil {
			return err
		}
		logger.Debug("node operator set", "pool", caller, "operator", operator, "share", share)
		return nil
	})
}
