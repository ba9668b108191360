// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Status of a pool, derived from the pool lists.
type Status uint8

const (
	StatusNone Status = iota
	StatusActive
	StatusToBeRemoved
	StatusInactive
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusToBeRemoved:
		return "toBeRemoved"
	case StatusInactive:
		return "inactive"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "none"
	}
}

// Pool is the record of a staking pool, keyed by the staking address of its validator.
type Pool struct {
	Mining        hbbft.Address
	Operator      hbbft.Address
	OperatorShare uint64 // basis points
	PublicKey     []byte
	IP            []byte
	Port          uint64
	Total         *big.Int
	Abandoned     bool // abandoned and removed, stakes recovered
}

// Exists reports whether the record was ever created.
func (p *Pool) Exists() bool {
	return !p.Mining.IsZero()
}

func (p *Pool) total() *big.Int {
	if p.Total == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.Total)
}

// Snapshot freezes the stakes of a pool for reward computation of one epoch.
type Snapshot struct {
	Taken           bool
	ValidatorStake  *big.Int
	TotalStake      *big.Int
	Delegators      []hbbft.Address
	DelegatorStakes []*big.Int
}

// Likelihood lists the election candidates with their weights.
type Likelihood struct {
	Pools       []hbbft.Address
	Likelihoods []*big.Int
	Sum         *big.Int
}

type epochStake struct {
	Epoch  uint64
	Amount *big.Int
}

type orderedWithdraw struct {
	Amount *big.Int
	Epoch  uint64
}

// ValidatorView answers questions about validator status owned by the validator set.
type ValidatorView interface {
	IsValidatorOrPending(mining hbbft.Address) (bool, error)
	IsValidatorAvailable(mining hbbft.Address) (bool, error)
	IsValidatorAbandoned(pool hbbft.Address) (bool, error)
}

// Pots receives recovered abandoned stake.
type Pots interface {
	AddToReinsertPot(amount *big.Int) error
	AddToGovernancePot(amount *big.Int) error
}

type noValidators struct{}

func (noValidators) IsValidatorOrPending(hbbft.Address) (bool, error) { return false, nil }
func (noValidators) IsValidatorAvailable(hbbft.Address) (bool, error) { return false, nil }
func (noValidators) IsValidatorAbandoned(hbbft.Address) (bool, error) { return false, nil }
