// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package blockreward drives the epoch lifecycle from the per-block system call and
// pays the epoch rewards out of the delta and reinsert pots.
package blockreward

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/keygen"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

var logger = log.WithContext("pkg", "blockreward")

var (
	metricTransitions = metrics.LazyLoadCounterVec("epoch_transitions_count", []string{"kind"})
	metricRewardsPaid = metrics.LazyLoadCounter("rewards_paid_count")
	metricDeltaPot    = metrics.LazyLoadGauge("delta_pot")
)

var (
	slotDeltaPot     = solidity.Slot("delta-pot")
	slotReinsertPot  = solidity.Slot("reinsert-pot")
	slotPaid         = solidity.Slot("paid")
	slotEpochBlocks  = solidity.Slot("epoch-blocks")
	slotAuthorBlocks = solidity.Slot("author-blocks")
	slotEpochPayout  = solidity.Slot("epoch-payout")
)

const percentDivisor = 100

// Distributor is the block reward contract.
type Distributor struct {
	state      *state.State
	chain      xenv.Chain
	cfg        Config
	ledger     *staking.Ledger
	validators *validatorset.Controller
	keyGen     *keygen.Coordinator
	governance Governance

	stakingAccess *staking.RewardAccess
	setAccess     *validatorset.RewardAccess

	deltaPot     *solidity.Uint256
	reinsertPot  *solidity.Uint256
	paid         *solidity.Mapping[hbbft.Address, *big.Int]
	epochBlocks  *solidity.Mapping[hbbft.Bytes32, uint64]
	authorBlocks *solidity.Mapping[hbbft.Bytes32, uint64]
	epochPayout  *solidity.Mapping[hbbft.Bytes32, *big.Int]
}

// New create a new instance. It takes the reward capabilities of the ledger and the validator set,
// so only one distributor can exist per network.
func New(
	addr hbbft.Address,
	st *state.State,
	chain xenv.Chain,
	ledger *staking.Ledger,
	validators *validatorset.Controller,
	keyGen *keygen.Coordinator,
	governance Governance,
	cfg Config,
) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "block reward config")
	}
	if governance == nil {
		return nil, errors.New("nil governance")
	}
	sctx := solidity.NewContext(addr, st)
	d := &Distributor{
		state:      st,
		chain:      chain,
		cfg:        cfg,
		ledger:     ledger,
		validators: validators,
		keyGen:     keyGen,
		governance: governance,

		deltaPot:     solidity.NewUint256(sctx, slotDeltaPot),
		reinsertPot:  solidity.NewUint256(sctx, slotReinsertPot),
		paid:         solidity.NewMapping[hbbft.Address, *big.Int](sctx, slotPaid),
		epochBlocks:  solidity.NewMapping[hbbft.Bytes32, uint64](sctx, slotEpochBlocks),
		authorBlocks: solidity.NewMapping[hbbft.Bytes32, uint64](sctx, slotAuthorBlocks),
		epochPayout:  solidity.NewMapping[hbbft.Bytes32, *big.Int](sctx, slotEpochPayout),
	}

	var err error
	if d.stakingAccess, err = ledger.GrantRewardAccess(d); err != nil {
		return nil, errors.Wrap(err, "staking reward access")
	}
	if d.setAccess, err = validators.GrantRewardAccess(); err != nil {
		return nil, errors.Wrap(err, "validator set reward access")
	}
	return d, nil
}

func (d *Distributor) Config() Config {
	return d.cfg
}

func (d *Distributor) DeltaPot() (*big.Int, error) {
	return d.deltaPot.Get()
}

func (d *Distributor) ReinsertPot() (*big.Int, error) {
	return d.reinsertPot.Get()
}

// Paid returns the total paid out to addr, which is where governance shares end up.
func (d *Distributor) Paid(addr hbbft.Address) (*big.Int, error) {
	return d.paid.Get(addr)
}

// EpochBlocks returns the number of regular blocks produced in epoch.
func (d *Distributor) EpochBlocks(epoch uint64) (uint64, error) {
	return d.epochBlocks.Get(hbbft.Uint64ToBytes32(epoch))
}

// BlocksCreated returns the number of blocks author produced in epoch.
func (d *Distributor) BlocksCreated(epoch uint64, author hbbft.Address) (uint64, error) {
	return d.authorBlocks.Get(authorKey(epoch, author))
}

// EpochPayout returns the amount taken from the pots when epoch closed.
func (d *Distributor) EpochPayout(epoch uint64) (*big.Int, error) {
	return d.epochPayout.Get(hbbft.Uint64ToBytes32(epoch))
}

func authorKey(epoch uint64, author hbbft.Address) hbbft.Bytes32 {
	return hbbft.Blake2b(hbbft.Uint64ToBytes32(epoch).Bytes(), author.Bytes())
}

// AddToDeltaPot funds the delta pot.
func (d *Distributor) AddToDeltaPot(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.ErrZeroAmount
	}
	return d.state.Atomic(func() error {
		return d.deltaPot.Add(amount)
	})
}

// AddToReinsertPot funds the reinsert pot.
func (d *Distributor) AddToReinsertPot(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return reverts.ErrZeroAmount
	}
	return d.state.Atomic(func() error {
		return d.reinsertPot.Add(amount)
	})
}

// AddToGovernancePot pays amount to the current governance destination.
func (d *Distributor) AddToGovernancePot(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return reverts.ErrZeroAmount
	}
	return d.state.Atomic(func() error {
		return d.payGovernance(amount)
	})
}

func (d *Distributor) payGovernance(amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	to, err := d.governance.GovernancePot()
	if err != nil {
		return errors.Wrap(err, "resolve governance pot")
	}
	if to.IsZero() {
		// without a destination the share stays in the reinsert pot
		return d.reinsertPot.Add(amount)
	}
	return d.pay(to, amount)
}

func (d *Distributor) pay(to hbbft.Address, amount *big.Int) error {
	current, err := d.paid.Get(to)
	if err != nil {
		return err
	}
	return d.paid.Set(to, current.Add(current, amount))
}

// OnBlock is the system call made once per block. On a regular block it counts the
// block and advances the transition when its deadlines pass. On the epoch end block it
// either closes the epoch or, if key generation did not complete, restarts it.
func (d *Distributor) OnBlock(caller hbbft.Address, isEpochEndBlock bool) error {
	if caller != d.cfg.SystemAddress {
		return reverts.ErrUnauthorized
	}
	return d.state.Atomic(func() error {
		if isEpochEndBlock {
			return d.onEpochEndBlock()
		}
		return d.onRegularBlock()
	})
}

func (d *Distributor) onRegularBlock() error {
	head := d.chain.Current()
	epoch, err := d.ledger.StakingEpoch()
	if err != nil {
		return err
	}
	blocks, err := d.EpochBlocks(epoch)
	if err != nil {
		return err
	}
	if err := d.epochBlocks.Set(hbbft.Uint64ToBytes32(epoch), blocks+1); err != nil {
		return err
	}
	if !head.Author.IsZero() {
		key := authorKey(epoch, head.Author)
		n, err := d.authorBlocks.Get(key)
		if err != nil {
			return err
		}
		if err := d.authorBlocks.Set(key, n+1); err != nil {
			return err
		}
	}

	pending, err := d.validators.PendingValidators()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		end, err := d.ledger.FixedEpochEndTime()
		if err != nil {
			return err
		}
		trigger, err := d.validators.EarlyEpochEndTriggerTime()
		if err != nil {
			return err
		}
		if head.Time > end || trigger != 0 {
			metricTransitions().AddWithLabel(1, map[string]string{"kind": "select"})
			return d.setAccess.NewValidatorSet()
		}
		return nil
	}

	deadline, err := d.validators.KeyGenDeadline()
	if err != nil {
		return err
	}
	if head.Time > deadline {
		dropped, err := d.setAccess.HandleFailedKeyGeneration()
		if err != nil {
			return err
		}
		metricTransitions().AddWithLabel(1, map[string]string{"kind": "keygen_timeout"})
		logger.Info("key generation timed out", "epoch", epoch, "dropped", len(dropped))
	}
	return nil
}

func (d *Distributor) onEpochEndBlock() error {
	pending, err := d.validators.PendingValidators()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Warn("epoch end block without pending validators")
		return nil
	}
	out, err := d.keyGen.Outcome(pending)
	if err != nil {
		return err
	}
	if !out.Complete {
		dropped, err := d.setAccess.HandleFailedKeyGeneration()
		if err != nil {
			return err
		}
		metricTransitions().AddWithLabel(1, map[string]string{"kind": "keygen_failed"})
		logger.Warn("epoch end with incomplete key generation", "dropped", len(dropped))
		return nil
	}

	epoch, err := d.ledger.StakingEpoch()
	if err != nil {
		return err
	}
	if err := d.closeEpoch(epoch); err != nil {
		return err
	}
	if err := d.snapshot(epoch+1, pending); err != nil {
		return err
	}
	if err := d.setAccess.FinalizeChange(); err != nil {
		return err
	}
	metricTransitions().AddWithLabel(1, map[string]string{"kind": "finalize"})
	return nil
}

// snapshot freezes the stakes of the pools behind the given validators for epoch.
func (d *Distributor) snapshot(epoch uint64, validators []hbbft.Address) error {
	for _, mining := range validators {
		pool, err := d.ledger.StakingByMining(mining)
		if err != nil {
			return err
		}
		if pool.IsZero() {
			continue
		}
		if err := d.stakingAccess.SnapshotPoolStakeAmounts(epoch, pool); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotGenesis freezes the stakes of the initial validators for epoch 0.
func (d *Distributor) SnapshotGenesis(caller hbbft.Address) error {
	if caller != d.cfg.SystemAddress {
		return reverts.ErrUnauthorized
	}
	return d.state.Atomic(func() error {
		epoch, err := d.ledger.StakingEpoch()
		if err != nil {
			return err
		}
		if epoch != 0 {
			return errors.Wrapf(reverts.ErrIncorrectEpoch, "genesis snapshot in epoch %d", epoch)
		}
		current, err := d.validators.Validators()
		if err != nil {
			return err
		}
		return d.snapshot(0, current)
	})
}

// potShare returns pot·percent / (100·fraction).
func potShare(pot *big.Int, percent, fraction uint64) *big.Int {
	share := new(big.Int).Mul(pot, new(big.Int).SetUint64(percent))
	return share.Div(share, new(big.Int).SetUint64(percentDivisor*fraction))
}

// epochPercent is the share of the nominal epoch duration that elapsed, capped at 100.
func (d *Distributor) epochPercent() (uint64, error) {
	start, err := d.ledger.EpochStartTime()
	if err != nil {
		return 0, err
	}
	now := d.chain.Current().Time
	if now <= start {
		return 0, nil
	}
	duration := d.ledger.Config().FixedEpochDuration
	if duration == 0 {
		return 100, nil
	}
	percent := (now - start) * 100 / duration
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

// closeEpoch takes the epoch payout from the pots, sends the governance share and
// restakes the rest evenly across the current validators that are still available.
// Whatever could not be distributed flows back into the delta pot.
func (d *Distributor) closeEpoch(epoch uint64) error {
	percent, err := d.epochPercent()
	if err != nil {
		return err
	}
	delta, err := d.deltaPot.Get()
	if err != nil {
		return err
	}
	reinsert, err := d.reinsertPot.Get()
	if err != nil {
		return err
	}
	fromDelta := potShare(delta, percent, d.cfg.DeltaPotPayoutFraction)
	fromReinsert := potShare(reinsert, percent, d.cfg.ReinsertPotPayoutFraction)
	if err := d.deltaPot.Sub(fromDelta); err != nil {
		return err
	}
	if err := d.reinsertPot.Sub(fromReinsert); err != nil {
		return err
	}
	total := new(big.Int).Add(fromDelta, fromReinsert)
	if err := d.epochPayout.Set(hbbft.Uint64ToBytes32(epoch), total); err != nil {
		return err
	}

	governance := d.cfg.GovernancePotShare.Of(total)
	if err := d.payGovernance(governance); err != nil {
		return err
	}
	rest := new(big.Int).Sub(total, governance)

	current, err := d.validators.Validators()
	if err != nil {
		return err
	}
	var pools []hbbft.Address
	for _, mining := range current {
		available, err := d.validators.IsValidatorAvailable(mining)
		if err != nil {
			return err
		}
		if !available {
			continue
		}
		pool, err := d.ledger.StakingByMining(mining)
		if err != nil {
			return err
		}
		if pool.IsZero() {
			continue
		}
		pools = append(pools, pool)
	}

	distributed := new(big.Int)
	if len(pools) > 0 && rest.Sign() > 0 {
		each := new(big.Int).Div(rest, big.NewInt(int64(len(pools))))
		for _, pool := range pools {
			n, err := d.stakingAccess.Restake(pool, each, d.cfg.ValidatorMinRewardPercent)
			if err != nil {
				return errors.Wrapf(err, "restake %v", pool)
			}
			distributed.Add(distributed, n)
		}
	}
	if residue := new(big.Int).Sub(rest, distributed); residue.Sign() > 0 {
		if err := d.deltaPot.Add(residue); err != nil {
			return err
		}
	}

	if pot, err := d.deltaPot.Get(); err == nil && pot.IsInt64() {
		metricDeltaPot().Set(pot.Int64())
	}
	metricRewardsPaid().Add(int64(len(pools)))
	logger.Info("epoch closed",
		"epoch", epoch,
		"percent", percent,
		"payout", total,
		"governance", governance,
		"validators", len(pools),
		"distributed", distributed,
	)
	return nil
}
