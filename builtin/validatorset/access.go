// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validatorset

import (
	"math/big"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// GrantRewardAccess hands out the epoch transitions driven by the block reward distributor.
func (c *Controller) GrantRewardAccess() (*RewardAccess, error) {
	if c.rewardAccess != nil {
		return nil, reverts.ErrAlreadyGranted
	}
	c.rewardAccess = &RewardAccess{c: c}
	return c.rewardAccess, nil
}

// GrantConnectivityAccess hands out the operations reserved to the connectivity tracker.
func (c *Controller) GrantConnectivityAccess() (*ConnectivityAccess, error) {
	if c.connectivityAccess != nil {
		return nil, reverts.ErrAlreadyGranted
	}
	c.connectivityAccess = &ConnectivityAccess{c: c}
	return c.connectivityAccess, nil
}

// RewardAccess carries the epoch transitions only the block reward distributor may perform.
type RewardAccess struct {
	c *Controller
}

// NewValidatorSet selects the pending validators of the next epoch. If an early epoch
// end was requested, the transition is recorded as started now.
func (a *RewardAccess) NewValidatorSet() error {
	c := a.c
	return c.state.Atomic(func() error {
		if err := c.selectPending(); err != nil {
			return err
		}
		trigger, err := c.earlyEndTrigger.Get()
		if err != nil {
			return err
		}
		if trigger != 0 {
			c.earlyEndTime.Set(c.now())
		}
		return nil
	})
}

// selectPending fills the pending list by weighted sampling over the electable pools.
// Without candidates the current validators stay on.
func (c *Controller) selectPending() error {
	likelihood, err := c.ledger.PoolsLikelihood()
	if err != nil {
		return err
	}

	var (
		pools   []hbbft.Address
		weights []*big.Int
	)
	for i, pool := range likelihood.Pools {
		mining, err := c.ledger.MiningByStaking(pool)
		if err != nil {
			return err
		}
		if banned, err := c.IsValidatorBanned(mining); err != nil {
			return err
		} else if banned {
			continue
		}
		pools = append(pools, mining)
		weights = append(weights, likelihood.Likelihoods[i])
	}

	if err := c.pending.Clear(); err != nil {
		return err
	}

	var selected []hbbft.Address
	if len(pools) == 0 {
		if selected, err = c.current.Values(); err != nil {
			return err
		}
		logger.Warn("no candidates, keeping current validators", "count", len(selected))
	} else {
		n := uint64(len(pools))
		if n > c.cfg.MaxValidators {
			n = c.cfg.MaxValidators
		}
		seed, err := c.seeds.CurrentSeed()
		if err != nil {
			return err
		}
		for _, i := range Sample(weights, int(SweetSpot(n)), seed) {
			selected = append(selected, pools[i])
		}
	}

	for _, mining := range selected {
		if _, err := c.pending.Add(mining); err != nil {
			return err
		}
	}
	metricPendingSize().Set(int64(len(selected)))
	logger.Info("new validator set", "candidates", len(pools), "selected", len(selected))
	return nil
}

// FinalizeChange promotes the pending validators to current and starts the next epoch.
// It does nothing when no validators are pending.
func (a *RewardAccess) FinalizeChange() error {
	c := a.c
	return c.state.Atomic(func() error {
		pending, err := c.pending.Values()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		previous, err := c.current.Values()
		if err != nil {
			return err
		}

		if err := c.current.Clear(); err != nil {
			return err
		}
		for _, mining := range pending {
			if _, err := c.current.Add(mining); err != nil {
				return err
			}
		}
		if err := c.pending.Clear(); err != nil {
			return err
		}
		c.earlyEndTrigger.Set(0)
		c.earlyEndTime.Set(0)

		if err := c.keyGenAccess.ClearPrevKeyGenState(append(previous, pending...)); err != nil {
			return err
		}
		if err := c.keyGenAccess.NotifyNewEpoch(); err != nil {
			return err
		}
		if err := c.stakingAccess.IncrementStakingEpoch(); err != nil {
			return err
		}

		metricEpochChanges().Add(1)
		metricCurrentSize().Set(int64(len(pending)))
		metricPendingSize().Set(0)
		logger.Info("validator set finalized", "validators", len(pending), "previous", len(previous))
		return nil
	})
}

// HandleFailedKeyGeneration drops the pending validators that did not complete the
// running round and opens the next one. It returns the dropped mining addresses.
func (a *RewardAccess) HandleFailedKeyGeneration() ([]hbbft.Address, error) {
	c := a.c
	var dropped []hbbft.Address
	err := c.state.Atomic(func() error {
		pending, err := c.pending.Values()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		out, err := c.keyGen.Outcome(pending)
		if err != nil {
			return err
		}
		for _, mining := range out.NonResponsive {
			if _, err := c.pending.Remove(mining); err != nil {
				return err
			}
			if err := c.markUnavailable(mining, "keygen"); err != nil {
				return err
			}
		}
		dropped = out.NonResponsive

		if err := c.keyGenAccess.NotifyKeyGenFailed(); err != nil {
			return err
		}
		if err := c.stakingAccess.NotifyKeyGenFailed(); err != nil {
			return err
		}

		if n, err := c.pending.Len(); err != nil {
			return err
		} else if n == 0 {
			if err := c.selectPending(); err != nil {
				return err
			}
		}
		logger.Warn("key generation failed", "dropped", len(dropped))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dropped, nil
}

// ConnectivityAccess carries the operations only the connectivity tracker may perform.
type ConnectivityAccess struct {
	c *Controller
}

// NotifyUnavailability marks the validator of pool unavailable and removes the pool from the elections.
func (a *ConnectivityAccess) NotifyUnavailability(pool hbbft.Address) error {
	c := a.c
	return c.state.Atomic(func() error {
		mining, err := c.ledger.MiningByStaking(pool)
		if err != nil {
			return err
		}
		if mining.IsZero() {
			return reverts.ErrPoolNotExist
		}
		return c.markUnavailable(mining, "connectivity")
	})
}

// NotifyEarlyEpochEnd requests the transition to start at the next block.
func (a *ConnectivityAccess) NotifyEarlyEpochEnd() error {
	c := a.c
	return c.state.Atomic(func() error {
		epoch, err := c.ledger.StakingEpoch()
		if err != nil {
			return err
		}
		eligible, err := c.IsEarlyEpochEndEligible(epoch)
		if err != nil {
			return err
		}
		if !eligible {
			return reverts.ErrEarlyEpochEndIneligible
		}
		c.earlyEndTrigger.Set(c.now())
		logger.Info("early epoch end requested", "epoch", epoch)
		return nil
	})
}
