// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/pkg/errors"
)

const (
	// PublicKeyLength is the length of an uncompressed secp256k1 public key without prefix.
	PublicKeyLength = 64
	// IPAddressLength holds an IPv6 address or an IPv4-mapped one.
	IPAddressLength = 16
	// BasisPoints is the denominator of node operator shares.
	BasisPoints = 10000
)

var coin = big.NewInt(1e18)

// Ratio is a fraction Num/Den.
type Ratio struct {
	Num uint64 `yaml:"num"`
	Den uint64 `yaml:"den"`
}

// Of returns floor(amount * Num / Den).
func (r Ratio) Of(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(r.Num))
	return out.Div(out, new(big.Int).SetUint64(r.Den))
}

// Config holds the staking rules of a network.
type Config struct {
	CandidateMinStake *big.Int
	DelegatorMinStake *big.Int
	MaxStake          *big.Int

	// seconds
	FixedEpochDuration        uint64
	TransitionTimeframeLength uint64
	WithdrawDisallowPeriod    uint64

	MaxNodeOperatorShare uint64 // basis points

	// part of recovered abandoned stake sent to governance, the rest goes to the reinsert pot
	GovernanceRecoveryShare Ratio
}

// DefaultConfig returns the mainnet staking parameters.
func DefaultConfig() Config {
	return Config{
		CandidateMinStake:         new(big.Int).Mul(big.NewInt(10_000), coin),
		DelegatorMinStake:         new(big.Int).Mul(big.NewInt(100), coin),
		MaxStake:                  new(big.Int).Mul(big.NewInt(50_000), coin),
		FixedEpochDuration:        12 * 60 * 60,
		TransitionTimeframeLength: 5 * 60,
		WithdrawDisallowPeriod:    30 * 60,
		MaxNodeOperatorShare:      2000,
		GovernanceRecoveryShare:   Ratio{Num: 1, Den: 2},
	}
}

// Validate checks the parameters are consistent.
func (c Config) Validate() error {
	if c.CandidateMinStake == nil || c.DelegatorMinStake == nil || c.MaxStake == nil {
		return errors.New("stake limits must be set")
	}
	if c.CandidateMinStake.Sign() <= 0 || c.DelegatorMinStake.Sign() <= 0 {
		return errors.New("minimum stakes must be positive")
	}
	if c.MaxStake.Cmp(c.CandidateMinStake) < 0 {
		return errors.New("max stake below candidate min stake")
	}
	if c.FixedEpochDuration == 0 {
		return errors.New("fixed epoch duration must be positive")
	}
	if c.TransitionTimeframeLength == 0 {
		return errors.New("transition timeframe must be positive")
	}
	if c.WithdrawDisallowPeriod >= c.FixedEpochDuration {
		return errors.New("withdraw disallow period must be shorter than the epoch")
	}
	if c.MaxNodeOperatorShare > BasisPoints {
		return errors.Errorf("max node operator share %d above %d", c.MaxNodeOperatorShare, BasisPoints)
	}
	if c.GovernanceRecoveryShare.Den == 0 || c.GovernanceRecoveryShare.Num > c.GovernanceRecoveryShare.Den {
		return errors.New("invalid governance recovery share")
	}
	return nil
}
