// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validatorset

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

const week = 7 * 24 * 60 * 60

// Config holds the validator set rules of a network.
type Config struct {
	MaxValidators uint64
	// seconds a validator must stay unavailable before its pool counts as abandoned
	ValidatorInactivityThreshold uint64
	// how many blocks back an availability announcement may point
	AnnounceBlockWindow uint64
	// allowed to ban and unban validators
	Owner hbbft.Address
}

func DefaultConfig() Config {
	return Config{
		MaxValidators:                25,
		ValidatorInactivityThreshold: 365 * 24 * 60 * 60,
		AnnounceBlockWindow:          16,
	}
}

func (c Config) Validate() error {
	if c.MaxValidators == 0 {
		return errors.New("max validators must be positive")
	}
	if c.ValidatorInactivityThreshold < week {
		return errors.Errorf("inactivity threshold %ds shorter than a week", c.ValidatorInactivityThreshold)
	}
	if c.AnnounceBlockWindow == 0 {
		return errors.New("announce block window must be positive")
	}
	return nil
}
