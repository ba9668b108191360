// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blockreward

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Config holds the reward policy of a network.
type Config struct {
	// the only account allowed to call OnBlock
	SystemAddress hbbft.Address
	// percent of a validator reward reserved to the validator before the pro-rata split
	ValidatorMinRewardPercent uint64
	// a full epoch pays out 1/fraction of each pot
	DeltaPotPayoutFraction    uint64
	ReinsertPotPayoutFraction uint64
	// part of the epoch payout sent to governance
	GovernancePotShare staking.Ratio
}

func DefaultConfig() Config {
	return Config{
		ValidatorMinRewardPercent: 30,
		DeltaPotPayoutFraction:    6000,
		ReinsertPotPayoutFraction: 6000,
		GovernancePotShare:        staking.Ratio{Num: 1, Den: 10},
	}
}

func (c Config) Validate() error {
	if c.SystemAddress.IsZero() {
		return errors.New("system address not set")
	}
	if c.ValidatorMinRewardPercent > 100 {
		return errors.Errorf("validator min reward percent %d above 100", c.ValidatorMinRewardPercent)
	}
	if c.DeltaPotPayoutFraction == 0 || c.ReinsertPotPayoutFraction == 0 {
		return errors.New("pot payout fractions must be positive")
	}
	if c.GovernancePotShare.Den == 0 || c.GovernancePotShare.Num > c.GovernancePotShare.Den {
		return errors.New("invalid governance pot share")
	}
	return nil
}

// Governance resolves where the governance share is paid.
type Governance interface {
	GovernancePot() (hbbft.Address, error)
}

// FixedGovernance pays the governance share to a constant address.
type FixedGovernance hbbft.Address

func (g FixedGovernance) GovernancePot() (hbbft.Address, error) {
	return hbbft.Address(g), nil
}
