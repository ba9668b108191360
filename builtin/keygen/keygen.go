// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package keygen coordinates the rounds of the distributed key generation
// the pending validator set runs before it takes office.
package keygen

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/linkedlist"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

var (
	logger = log.WithContext("pkg", "keygen")

	metricWrites = metrics.LazyLoadCounterVec("keygen_writes_count", []string{"kind"})
	metricRound  = metrics.LazyLoadGauge("keygen_round")
)

var (
	slotFailedRounds = solidity.Slot("failed-rounds")
	slotParts        = solidity.Slot("parts")
	slotAcks         = solidity.Slot("acks")
	slotPartsCount   = solidity.Slot("parts-written")
	slotAcksCount    = solidity.Slot("acks-written")
)

// Phase of the current key generation round.
type Phase uint8

const (
	PhaseNotStarted Phase = iota
	PhasePartsPending
	PhaseAcksPending
	PhaseRoundComplete
)

func (p Phase) String() string {
	switch p {
	case PhasePartsPending:
		return "partsPending"
	case PhaseAcksPending:
		return "acksPending"
	case PhaseRoundComplete:
		return "roundComplete"
	default:
		return "notStarted"
	}
}

// EpochSource provides the current staking epoch.
type EpochSource interface {
	StakingEpoch() (uint64, error)
}

// PendingView tells whether a mining address belongs to the pending validator set.
type PendingView interface {
	IsPendingValidator(mining hbbft.Address) (bool, error)
}

// Outcome is the evaluation of a round against the pending set.
type Outcome struct {
	Complete      bool
	NonResponsive []hbbft.Address
}

// Coordinator stores the parts and acks of the running round.
type Coordinator struct {
	state  *state.State
	epochs EpochSource

	failedRounds *solidity.Uint64
	parts        *solidity.Mapping[hbbft.Address, []byte]
	acks         *solidity.Mapping[hbbft.Address, [][]byte]
	partsCount   *solidity.Uint64
	acksCount    *solidity.Uint64
	writers      *linkedlist.LinkedList

	pending PendingView
	access  *ValidatorSetAccess
}

// New create a new instance.
func New(addr hbbft.Address, st *state.State, epochs EpochSource) *Coordinator {
	sctx := solidity.NewContext(addr, st)
	return &Coordinator{
		state:        st,
		epochs:       epochs,
		failedRounds: solidity.NewUint64(sctx, slotFailedRounds),
		parts:        solidity.NewMapping[hbbft.Address, []byte](sctx, slotParts),
		acks:         solidity.NewMapping[hbbft.Address, [][]byte](sctx, slotAcks),
		partsCount:   solidity.NewUint64(sctx, slotPartsCount),
		acksCount:    solidity.NewUint64(sctx, slotAcksCount),
		writers:      linkedlist.New(sctx, "writers"),
	}
}

// CurrentKeyGenRound returns the round accepting writes. It starts at 1 every epoch.
func (c *Coordinator) CurrentKeyGenRound() (uint64, error) {
	failed, err := c.failedRounds.Get()
	if err != nil {
		return 0, err
	}
	return failed + 1, nil
}

// NumberOfKeyFragmentsWritten returns how many parts and acks the current round received.
func (c *Coordinator) NumberOfKeyFragmentsWritten() (parts uint64, acks uint64, err error) {
	if parts, err = c.partsCount.Get(); err != nil {
		return
	}
	acks, err = c.acksCount.Get()
	return
}

// Part returns the part written by mining in the current round, empty if none.
func (c *Coordinator) Part(mining hbbft.Address) ([]byte, error) {
	return c.parts.Get(mining)
}

// Acks returns the acks written by mining in the current round.
func (c *Coordinator) Acks(mining hbbft.Address) ([][]byte, error) {
	return c.acks.Get(mining)
}

func (c *Coordinator) AcksLength(mining hbbft.Address) (int, error) {
	acks, err := c.acks.Get(mining)
	if err != nil {
		return 0, err
	}
	return len(acks), nil
}

// Phase reports the progress of the round for a pending set of the given size.
func (c *Coordinator) Phase(pendingCount uint64) (Phase, error) {
	if pendingCount == 0 {
		return PhaseNotStarted, nil
	}
	parts, acks, err := c.NumberOfKeyFragmentsWritten()
	if err != nil {
		return PhaseNotStarted, err
	}
	switch {
	case parts < pendingCount:
		return PhasePartsPending, nil
	case acks < pendingCount:
		return PhaseAcksPending, nil
	default:
		return PhaseRoundComplete, nil
	}
}

// checkWrite runs the preconditions shared by parts and acks.
func (c *Coordinator) checkWrite(caller hbbft.Address, epoch, round uint64, size int) error {
	if c.pending == nil {
		return errors.New("validator set not attached")
	}
	pending, err := c.pending.IsPendingValidator(caller)
	if err != nil {
		return err
	}
	if !pending {
		return reverts.ErrNotPendingValidator
	}
	current, err := c.epochs.StakingEpoch()
	if err != nil {
		return err
	}
	if epoch != current+1 {
		return errors.Wrapf(reverts.ErrIncorrectEpoch, "expected %d, got %d", current+1, epoch)
	}
	expected, err := c.CurrentKeyGenRound()
	if err != nil {
		return err
	}
	if round != expected {
		return errors.Wrapf(reverts.ErrIncorrectRound, "expected %d, got %d", expected, round)
	}
	if size == 0 {
		return reverts.ErrEmptyPayload
	}
	return nil
}

// WritePart records the part of a pending validator for the upcoming epoch.
func (c *Coordinator) WritePart(caller hbbft.Address, epoch, round uint64, part []byte) error {
	return c.state.Atomic(func() error {
		if err := c.checkWrite(caller, epoch, round, len(part)); err != nil {
			return err
		}
		existing, err := c.parts.Get(caller)
		if err != nil {
			return err
		}
		if len(existing) != 0 {
			return reverts.ErrPartsAlreadySubmitted
		}
		if err := c.parts.Set(caller, part); err != nil {
			return err
		}
		if _, err := c.partsCount.Add(1); err != nil {
			return err
		}
		if _, err := c.writers.Add(caller); err != nil {
			return err
		}
		metricWrites().AddWithLabel(1, map[string]string{"kind": "part"})
		logger.Debug("part written", "validator", caller, "epoch", epoch, "round", round, "size", len(part))
		return nil
	})
}

// WriteAcks records the acks of a pending validator for the upcoming epoch.
func (c *Coordinator) WriteAcks(caller hbbft.Address, epoch, round uint64, acks [][]byte) error {
	return c.state.Atomic(func() error {
		if err := c.checkWrite(caller, epoch, round, len(acks)); err != nil {
			return err
		}
		existing, err := c.acks.Get(caller)
		if err != nil {
			return err
		}
		if len(existing) != 0 {
			return reverts.ErrAcksAlreadySubmitted
		}
		if err := c.acks.Set(caller, acks); err != nil {
			return err
		}
		if _, err := c.acksCount.Add(1); err != nil {
			return err
		}
		if _, err := c.writers.Add(caller); err != nil {
			return err
		}
		metricWrites().AddWithLabel(1, map[string]string{"kind": "acks"})
		logger.Debug("acks written", "validator", caller, "epoch", epoch, "round", round, "count", len(acks))
		return nil
	})
}

// Outcome evaluates the current round. It is complete when every pending validator
// wrote both its part and its acks.
func (c *Coordinator) Outcome(pending []hbbft.Address) (*Outcome, error) {
	out := &Outcome{}
	for _, mining := range pending {
		part, err := c.parts.Get(mining)
		if err != nil {
			return nil, err
		}
		acks, err := c.AcksLength(mining)
		if err != nil {
			return nil, err
		}
		if len(part) == 0 || acks == 0 {
			out.NonResponsive = append(out.NonResponsive, mining)
		}
	}
	parts, acks, err := c.NumberOfKeyFragmentsWritten()
	if err != nil {
		return nil, err
	}
	n := uint64(len(pending))
	out.Complete = n > 0 && len(out.NonResponsive) == 0 && parts == n && acks == n
	return out, nil
}

// clear drops everything written in the current round.
func (c *Coordinator) clear(extra []hbbft.Address) error {
	for _, mining := range extra {
		c.parts.Delete(mining)
		c.acks.Delete(mining)
	}
	for {
		mining, err := c.writers.Pop()
		if errors.Is(err, linkedlist.ErrEmpty) {
			break
		}
		if err != nil {
			return err
		}
		c.parts.Delete(mining)
		c.acks.Delete(mining)
	}
	c.partsCount.Set(0)
	c.acksCount.Set(0)
	return nil
}

// GrantValidatorSetAccess attaches the pending view and hands out the operations reserved to the validator set.
func (c *Coordinator) GrantValidatorSetAccess(view PendingView) (*ValidatorSetAccess, error) {
	if c.access != nil {
		return nil, reverts.ErrAlreadyGranted
	}
	if view == nil {
		return nil, errors.New("nil pending view")
	}
	c.pending = view
	c.access = &ValidatorSetAccess{c: c}
	return c.access, nil
}

// ValidatorSetAccess carries the round transitions only the validator set may trigger.
type ValidatorSetAccess struct {
	c *Coordinator
}

// NotifyKeyGenFailed opens the next round of the same epoch with empty maps.
func (a *ValidatorSetAccess) NotifyKeyGenFailed() error {
	c := a.c
	return c.state.Atomic(func() error {
		failed, err := c.failedRounds.Add(1)
		if err != nil {
			return err
		}
		if err := c.clear(nil); err != nil {
			return err
		}
		metricRound().Set(int64(failed + 1))
		logger.Info("key generation round failed", "next round", failed+1)
		return nil
	})
}

// ClearPrevKeyGenState drops parts and acks of the given validators and of every writer of the round.
func (a *ValidatorSetAccess) ClearPrevKeyGenState(validators []hbbft.Address) error {
	c := a.c
	return c.state.Atomic(func() error {
		return c.clear(validators)
	})
}

// NotifyNewEpoch resets the round counter to 1 for the new epoch.
func (a *ValidatorSetAccess) NotifyNewEpoch() error {
	c := a.c
	return c.state.Atomic(func() error {
		c.failedRounds.Set(0)
		if err := c.clear(nil); err != nil {
			return err
		}
		metricRound().Set(1)
		return nil
	})
}
