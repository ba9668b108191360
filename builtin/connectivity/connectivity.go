// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package connectivity collects reports of validators losing connectivity to each other.
// A validator reported by a supermajority is flagged faulty and taken out of the elections.
// Too many faulty validators end the epoch early.
package connectivity

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/linkedlist"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

var logger = log.WithContext("pkg", "connectivity")

var (
	metricReports = metrics.LazyLoadCounterVec("connectivity_reports_count", []string{"kind"})
	metricFaulty  = metrics.LazyLoadGauge("connectivity_faulty")
)

var slotEarlyEndSignaled = solidity.Slot("early-end-signaled")

// Config of the tracker.
type Config struct {
	// Faulty validators tolerated before the epoch ends early.
	// Zero means the HBBFT fault tolerance ⌊(n-1)/3⌋.
	EarlyEpochEndTolerance uint64
}

// Tracker is the connectivity tracker contract.
type Tracker struct {
	state      *state.State
	sctx       *solidity.Context
	cfg        Config
	ledger     *staking.Ledger
	validators *validatorset.Controller
	access     *validatorset.ConnectivityAccess

	earlyEndSignaled *solidity.Mapping[hbbft.Bytes32, bool]
}

// New create a new instance holding the connectivity capability of the validator set.
func New(
	addr hbbft.Address,
	st *state.State,
	ledger *staking.Ledger,
	validators *validatorset.Controller,
	cfg Config,
) (*Tracker, error) {
	access, err := validators.GrantConnectivityAccess()
	if err != nil {
		return nil, errors.Wrap(err, "connectivity access")
	}
	sctx := solidity.NewContext(addr, st)
	return &Tracker{
		state:            st,
		sctx:             sctx,
		cfg:              cfg,
		ledger:           ledger,
		validators:       validators,
		access:           access,
		earlyEndSignaled: solidity.NewMapping[hbbft.Bytes32, bool](sctx, slotEarlyEndSignaled),
	}, nil
}

// reporters are scoped by epoch, so nothing carries over into the next one.
func (t *Tracker) reporters(epoch uint64, validator hbbft.Address) *linkedlist.LinkedList {
	return linkedlist.New(t.sctx, fmt.Sprintf("reporters-%d-%s", epoch, validator))
}

func (t *Tracker) faulty(epoch uint64) *linkedlist.LinkedList {
	return linkedlist.New(t.sctx, fmt.Sprintf("faulty-%d", epoch))
}

// FaultyThreshold is the number of reporters that flags a validator in a set of n.
func FaultyThreshold(n uint64) uint64 {
	return 2*n/3 + 1
}

// Tolerance is the number of faulty validators accepted in a set of n.
func (t *Tracker) Tolerance(n uint64) uint64 {
	if t.cfg.EarlyEpochEndTolerance != 0 {
		return t.cfg.EarlyEpochEndTolerance
	}
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

// Reporters returns who reported validator in epoch.
func (t *Tracker) Reporters(epoch uint64, validator hbbft.Address) ([]hbbft.Address, error) {
	return t.reporters(epoch, validator).Values()
}

// FaultyValidators returns the validators flagged in epoch.
func (t *Tracker) FaultyValidators(epoch uint64) ([]hbbft.Address, error) {
	return t.faulty(epoch).Values()
}

func (t *Tracker) IsFaulty(epoch uint64, validator hbbft.Address) (bool, error) {
	return t.faulty(epoch).Contains(validator)
}

// checkReport validates a report about validator made by caller.
func (t *Tracker) checkReport(caller, validator hbbft.Address, blockNumber uint64, blockHash hbbft.Bytes32) error {
	if ok, err := t.validators.IsValidator(caller); err != nil {
		return err
	} else if !ok {
		return reverts.ErrNotCurrentValidator
	}
	if ok, err := t.validators.IsValidator(validator); err != nil {
		return err
	} else if !ok {
		return errors.Wrapf(reverts.ErrNotCurrentValidator, "reported %v", validator)
	}
	if caller == validator {
		return errors.Wrap(reverts.ErrUnauthorized, "self report")
	}
	return t.validators.CheckBlockRef(blockNumber, blockHash)
}

// ReportMissingConnectivity records that caller lost connectivity to validator.
// blockNumber and blockHash must reference a recent block.
func (t *Tracker) ReportMissingConnectivity(caller, validator hbbft.Address, blockNumber uint64, blockHash hbbft.Bytes32) error {
	return t.state.Atomic(func() error {
		if err := t.checkReport(caller, validator, blockNumber, blockHash); err != nil {
			return err
		}
		epoch, err := t.ledger.StakingEpoch()
		if err != nil {
			return err
		}
		reporters := t.reporters(epoch, validator)
		added, err := reporters.Add(caller)
		if err != nil {
			return err
		}
		if !added {
			return reverts.ErrAlreadyReported
		}
		metricReports().AddWithLabel(1, map[string]string{"kind": "missing"})

		count, err := reporters.Len()
		if err != nil {
			return err
		}
		current, err := t.validators.Validators()
		if err != nil {
			return err
		}
		n := uint64(len(current))
		if count < FaultyThreshold(n) {
			return nil
		}
		flagged, err := t.faulty(epoch).Add(validator)
		if err != nil {
			return err
		}
		if !flagged {
			return nil
		}
		pool, err := t.ledger.StakingByMining(validator)
		if err != nil {
			return err
		}
		if err := t.access.NotifyUnavailability(pool); err != nil {
			return err
		}
		logger.Info("validator flagged faulty", "epoch", epoch, "validator", validator, "reporters", count)
		return t.maybeEndEpoch(epoch, n)
	})
}

// maybeEndEpoch signals an early epoch end once the faulty validators exceed the tolerance.
func (t *Tracker) maybeEndEpoch(epoch, n uint64) error {
	faulty, err := t.faulty(epoch).Len()
	if err != nil {
		return err
	}
	metricFaulty().Set(int64(faulty))
	if faulty <= t.Tolerance(n) {
		return nil
	}
	key := hbbft.Uint64ToBytes32(epoch)
	signaled, err := t.earlyEndSignaled.Get(key)
	if err != nil {
		return err
	}
	if signaled {
		return nil
	}
	eligible, err := t.validators.IsEarlyEpochEndEligible(epoch)
	if err != nil {
		return err
	}
	if !eligible {
		return nil
	}
	if err := t.access.NotifyEarlyEpochEnd(); err != nil {
		return err
	}
	logger.Warn("too many faulty validators, ending epoch early", "epoch", epoch, "faulty", faulty)
	return t.earlyEndSignaled.Set(key, true)
}

// ReportReconnect withdraws an earlier report of caller. A faulty validator falling
// below the threshold is unflagged; it still has to announce availability again.
func (t *Tracker) ReportReconnect(caller, validator hbbft.Address, blockNumber uint64, blockHash hbbft.Bytes32) error {
	return t.state.Atomic(func() error {
		if err := t.checkReport(caller, validator, blockNumber, blockHash); err != nil {
			return err
		}
		epoch, err := t.ledger.StakingEpoch()
		if err != nil {
			return err
		}
		reporters := t.reporters(epoch, validator)
		removed, err := reporters.Remove(caller)
		if err != nil {
			return err
		}
		if !removed {
			return reverts.ErrUnknownReport
		}
		metricReports().AddWithLabel(1, map[string]string{"kind": "reconnect"})

		count, err := reporters.Len()
		if err != nil {
			return err
		}
		current, err := t.validators.Validators()
		if err != nil {
			return err
		}
		if count >= FaultyThreshold(uint64(len(current))) {
			return nil
		}
		if unflagged, err := t.faulty(epoch).Remove(validator); err != nil {
			return err
		} else if unflagged {
			logger.Info("validator no longer faulty", "epoch", epoch, "validator", validator)
		}
		return nil
	})
}
