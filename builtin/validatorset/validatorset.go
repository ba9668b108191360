// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validatorset

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/keygen"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/linkedlist"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

var (
	logger = log.WithContext("pkg", "validatorset")

	metricPendingSize  = metrics.LazyLoadGauge("validatorset_pending_size")
	metricCurrentSize  = metrics.LazyLoadGauge("validatorset_current_size")
	metricUnavailable  = metrics.LazyLoadCounterVec("validatorset_unavailable_count", []string{"reason"})
	metricEpochChanges = metrics.LazyLoadCounter("validatorset_epoch_changes_count")
)

var (
	slotValidators      = solidity.Slot("validators")
	slotEarlyEndTrigger = solidity.Slot("early-epoch-end-trigger-time")
	slotEarlyEndTime    = solidity.Slot("early-epoch-end-time")
)

// Membership of a mining address in the validator lists.
type Membership uint8

const (
	MembershipNone Membership = iota
	MembershipCurrent
	MembershipPending
)

func (m Membership) String() string {
	switch m {
	case MembershipCurrent:
		return "current"
	case MembershipPending:
		return "pending"
	default:
		return "none"
	}
}

// Phase of the epoch lifecycle.
type Phase uint8

const (
	PhaseStable Phase = iota
	PhaseTransitioning
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseTransitioning:
		return "transitioning"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "stable"
	}
}

// Validator is the availability record of a mining address.
type Validator struct {
	AvailableSince          uint64 // 0 when unavailable
	AvailableSinceLastWrite uint64
	BannedUntil             uint64
}

// SeedSource provides the random seed for validator selection.
type SeedSource interface {
	CurrentSeed() (hbbft.Bytes32, error)
}

// Controller decides the validator set of every epoch.
type Controller struct {
	state  *state.State
	chain  xenv.Chain
	cfg    Config
	ledger *staking.Ledger
	keyGen *keygen.Coordinator
	seeds  SeedSource

	stakingAccess *staking.ValidatorSetAccess
	keyGenAccess  *keygen.ValidatorSetAccess

	validators      *solidity.Mapping[hbbft.Address, Validator]
	current         *linkedlist.LinkedList
	pending         *linkedlist.LinkedList
	earlyEndTrigger *solidity.Uint64
	earlyEndTime    *solidity.Uint64

	rewardAccess       *RewardAccess
	connectivityAccess *ConnectivityAccess
}

// New creates the controller and attaches it to the ledger and key generation coordinator.
func New(
	addr hbbft.Address,
	st *state.State,
	chain xenv.Chain,
	ledger *staking.Ledger,
	keyGen *keygen.Coordinator,
	seeds SeedSource,
	cfg Config,
) (*Controller, error) {
	sctx := solidity.NewContext(addr, st)
	c := &Controller{
		state:           st,
		chain:           chain,
		cfg:             cfg,
		ledger:          ledger,
		keyGen:          keyGen,
		seeds:           seeds,
		validators:      solidity.NewMapping[hbbft.Address, Validator](sctx, slotValidators),
		current:         linkedlist.New(sctx, "current"),
		pending:         linkedlist.New(sctx, "pending"),
		earlyEndTrigger: solidity.NewUint64(sctx, slotEarlyEndTrigger),
		earlyEndTime:    solidity.NewUint64(sctx, slotEarlyEndTime),
	}

	var err error
	if c.stakingAccess, err = ledger.GrantValidatorSetAccess(c); err != nil {
		return nil, errors.Wrap(err, "staking access")
	}
	if c.keyGenAccess, err = keyGen.GrantValidatorSetAccess(c); err != nil {
		return nil, errors.Wrap(err, "keygen access")
	}
	return c, nil
}

func (c *Controller) now() uint64 {
	return c.chain.Current().Time
}

// Initialize installs the genesis validators, available since the current block.
func (c *Controller) Initialize(validators []hbbft.Address) error {
	return c.state.Atomic(func() error {
		n, err := c.current.Len()
		if err != nil {
			return err
		}
		if n != 0 {
			return errors.New("validator set already initialized")
		}
		if len(validators) == 0 {
			return errors.New("no initial validators")
		}
		now := c.now()
		for _, mining := range validators {
			inserted, err := c.current.Add(mining)
			if err != nil {
				return err
			}
			if !inserted {
				return errors.Errorf("duplicate initial validator %v", mining)
			}
			if err := c.validators.Set(mining, Validator{AvailableSince: now, AvailableSinceLastWrite: now}); err != nil {
				return err
			}
		}
		metricCurrentSize().Set(int64(len(validators)))
		return nil
	})
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Validator returns the availability record of mining.
func (c *Controller) Validator(mining hbbft.Address) (Validator, error) {
	return c.validators.Get(mining)
}

func (c *Controller) setValidator(mining hbbft.Address, v Validator) error {
	if err := c.validators.Set(mining, v); err != nil {
		return errors.Wrap(err, "failed to set validator")
	}
	return nil
}

// Validators returns the current validator set.
func (c *Controller) Validators() ([]hbbft.Address, error) {
	return c.current.Values()
}

// PendingValidators returns the set selected for the next epoch, in order of selection.
func (c *Controller) PendingValidators() ([]hbbft.Address, error) {
	return c.pending.Values()
}

func (c *Controller) IsValidator(mining hbbft.Address) (bool, error) {
	return c.current.Contains(mining)
}

func (c *Controller) IsPendingValidator(mining hbbft.Address) (bool, error) {
	return c.pending.Contains(mining)
}

func (c *Controller) IsValidatorOrPending(mining hbbft.Address) (bool, error) {
	if ok, err := c.current.Contains(mining); err != nil || ok {
		return ok, err
	}
	return c.pending.Contains(mining)
}

// Membership reports the role of mining. A current validator re-elected for the
// next epoch reports pending until the change is finalized.
func (c *Controller) Membership(mining hbbft.Address) (Membership, error) {
	if ok, err := c.pending.Contains(mining); err != nil {
		return MembershipNone, err
	} else if ok {
		return MembershipPending, nil
	}
	if ok, err := c.current.Contains(mining); err != nil {
		return MembershipNone, err
	} else if ok {
		return MembershipCurrent, nil
	}
	return MembershipNone, nil
}

func (c *Controller) IsValidatorBanned(mining hbbft.Address) (bool, error) {
	v, err := c.validators.Get(mining)
	if err != nil {
		return false, err
	}
	return c.now() < v.BannedUntil, nil
}

// IsValidatorAvailable reports whether mining announced availability and is not banned.
func (c *Controller) IsValidatorAvailable(mining hbbft.Address) (bool, error) {
	v, err := c.validators.Get(mining)
	if err != nil {
		return false, err
	}
	return v.AvailableSince != 0 && c.now() >= v.BannedUntil, nil
}

// IsValidatorAbandoned reports whether the validator of pool has been unavailable for
// longer than the inactivity threshold. Validators that never had their availability
// written are not abandoned.
func (c *Controller) IsValidatorAbandoned(pool hbbft.Address) (bool, error) {
	mining, err := c.ledger.MiningByStaking(pool)
	if err != nil {
		return false, err
	}
	if mining.IsZero() {
		return false, nil
	}
	v, err := c.validators.Get(mining)
	if err != nil {
		return false, err
	}
	if v.AvailableSince != 0 || v.AvailableSinceLastWrite == 0 {
		return false, nil
	}
	now := c.now()
	return now > v.AvailableSinceLastWrite && now-v.AvailableSinceLastWrite > c.cfg.ValidatorInactivityThreshold, nil
}

// AnnounceAvailability marks the caller available. The block reference must be one
// of the last AnnounceBlockWindow blocks before the current one.
func (c *Controller) AnnounceAvailability(caller hbbft.Address, blockNumber uint64, blockHash hbbft.Bytes32) error {
	return c.state.Atomic(func() error {
		pool, err := c.ledger.StakingByMining(caller)
		if err != nil {
			return err
		}
		if pool.IsZero() {
			return reverts.ErrUnauthorized
		}
		p, err := c.ledger.Pool(pool)
		if err != nil {
			return err
		}
		if p.Abandoned {
			return errors.Wrap(reverts.ErrUnauthorized, "pool abandoned")
		}
		if banned, err := c.IsValidatorBanned(caller); err != nil {
			return err
		} else if banned {
			return reverts.ErrValidatorBanned
		}
		if err := c.checkBlockRef(blockNumber, blockHash); err != nil {
			return err
		}

		now := c.now()
		if err := c.setValidator(caller, Validator{AvailableSince: now, AvailableSinceLastWrite: now}); err != nil {
			return err
		}
		if err := c.stakingAccess.NotifyAvailable(pool); err != nil {
			return err
		}
		logger.Debug("validator available", "mining", caller, "pool", pool, "since", now)
		return nil
	})
}

// CheckBlockRef validates a reference to a recent block, as carried by liveness reports.
func (c *Controller) CheckBlockRef(blockNumber uint64, blockHash hbbft.Bytes32) error {
	return c.checkBlockRef(blockNumber, blockHash)
}

func (c *Controller) checkBlockRef(blockNumber uint64, blockHash hbbft.Bytes32) error {
	head := c.chain.Current()
	if blockNumber >= head.Number {
		return reverts.ErrInvalidAnnounceBlockNum
	}
	if head.Number-blockNumber > c.cfg.AnnounceBlockWindow {
		return reverts.ErrAnnounceBlockTooOld
	}
	hash, ok, err := c.chain.BlockHash(blockNumber)
	if err != nil {
		return err
	}
	if !ok || hash != blockHash {
		return reverts.ErrInvalidAnnounceHash
	}
	return nil
}

// markUnavailable resets the availability of mining and takes its pool out of the elections.
func (c *Controller) markUnavailable(mining hbbft.Address, reason string) error {
	v, err := c.validators.Get(mining)
	if err != nil {
		return err
	}
	v.AvailableSince = 0
	v.AvailableSinceLastWrite = c.now()
	if err := c.setValidator(mining, v); err != nil {
		return err
	}
	pool, err := c.ledger.StakingByMining(mining)
	if err != nil {
		return err
	}
	if !pool.IsZero() {
		if err := c.stakingAccess.RemovePool(pool); err != nil {
			return err
		}
	}
	metricUnavailable().AddWithLabel(1, map[string]string{"reason": reason})
	logger.Info("validator unavailable", "mining", mining, "pool", pool, "reason", reason)
	return nil
}

// BanValidator bans mining until the given time. Only the owner may ban.
func (c *Controller) BanValidator(caller, mining hbbft.Address, until uint64) error {
	return c.state.Atomic(func() error {
		if caller != c.cfg.Owner || c.cfg.Owner.IsZero() {
			return reverts.ErrOwnableUnauthorizedAccount
		}
		if err := c.markUnavailable(mining, "banned"); err != nil {
			return err
		}
		v, err := c.validators.Get(mining)
		if err != nil {
			return err
		}
		v.BannedUntil = until
		return c.setValidator(mining, v)
	})
}

// UnbanValidator lifts a ban. The validator still has to announce availability.
func (c *Controller) UnbanValidator(caller, mining hbbft.Address) error {
	return c.state.Atomic(func() error {
		if caller != c.cfg.Owner || c.cfg.Owner.IsZero() {
			return reverts.ErrOwnableUnauthorizedAccount
		}
		v, err := c.validators.Get(mining)
		if err != nil {
			return err
		}
		v.BannedUntil = 0
		return c.setValidator(mining, v)
	})
}

// KeyGenDeadline is the last moment the running key generation may complete.
func (c *Controller) KeyGenDeadline() (uint64, error) {
	base, err := c.earlyEndTime.Get()
	if err != nil {
		return 0, err
	}
	if base == 0 {
		if base, err = c.ledger.FixedEpochEndTime(); err != nil {
			return 0, err
		}
	}
	extra, err := c.ledger.KeyGenExtraTimeWindow()
	if err != nil {
		return 0, err
	}
	return base + c.ledger.Config().TransitionTimeframeLength + extra, nil
}

// Phase derives the lifecycle phase from the pending set and the key generation progress.
func (c *Controller) Phase() (Phase, error) {
	pending, err := c.pending.Values()
	if err != nil {
		return PhaseStable, err
	}
	if len(pending) == 0 {
		return PhaseStable, nil
	}
	out, err := c.keyGen.Outcome(pending)
	if err != nil {
		return PhaseStable, err
	}
	if out.Complete {
		return PhaseFinalizing, nil
	}
	return PhaseTransitioning, nil
}

// IsEarlyEpochEndEligible reports whether the epoch may still be ended early:
// it is the running epoch, no transition started and no early end was requested.
func (c *Controller) IsEarlyEpochEndEligible(epoch uint64) (bool, error) {
	current, err := c.ledger.StakingEpoch()
	if err != nil {
		return false, err
	}
	if epoch != current {
		return false, nil
	}
	if n, err := c.pending.Len(); err != nil || n != 0 {
		return false, err
	}
	trigger, err := c.earlyEndTrigger.Get()
	if err != nil {
		return false, err
	}
	return trigger == 0, nil
}

// EarlyEpochEndTriggerTime is when an early epoch end was requested, 0 if none.
func (c *Controller) EarlyEpochEndTriggerTime() (uint64, error) {
	return c.earlyEndTrigger.Get()
}

// EarlyEpochEndTime is when the transition of an early ended epoch started, 0 if none.
func (c *Controller) EarlyEpochEndTime() (uint64, error) {
	return c.earlyEndTime.Get()
}

// EpochInfo summarizes the epoch state.
type EpochInfo struct {
	StakingEpoch              uint64
	EpochStartTime            uint64
	FixedEpochEndTime         uint64
	TransitionTimeframeLength uint64
	KeyGenExtraTimeWindow     uint64
	KeyGenRound               uint64
	KeyGenDeadline            uint64
	EarlyEpochEndTriggerTime  uint64
	EarlyEpochEndTime         uint64
	Phase                     Phase
	Validators                []hbbft.Address
	PendingValidators         []hbbft.Address
}

func (c *Controller) EpochInfo() (*EpochInfo, error) {
	info := &EpochInfo{TransitionTimeframeLength: c.ledger.Config().TransitionTimeframeLength}
	var err error
	steps := []func() error{
		func() (err error) { info.StakingEpoch, err = c.ledger.StakingEpoch(); return },
		func() (err error) { info.EpochStartTime, err = c.ledger.EpochStartTime(); return },
		func() (err error) { info.FixedEpochEndTime, err = c.ledger.FixedEpochEndTime(); return },
		func() (err error) { info.KeyGenExtraTimeWindow, err = c.ledger.KeyGenExtraTimeWindow(); return },
		func() (err error) { info.KeyGenRound, err = c.keyGen.CurrentKeyGenRound(); return },
		func() (err error) { info.KeyGenDeadline, err = c.KeyGenDeadline(); return },
		func() (err error) { info.EarlyEpochEndTriggerTime, err = c.earlyEndTrigger.Get(); return },
		func() (err error) { info.EarlyEpochEndTime, err = c.earlyEndTime.Get(); return },
		func() (err error) { info.Phase, err = c.Phase(); return },
		func() (err error) { info.Validators, err = c.current.Values(); return },
		func() (err error) { info.PendingValidators, err = c.pending.Values(); return },
	}
	for _, step := range steps {
		if err = step(); err != nil {
			return nil, err
		}
	}
	return info, nil
}
