// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"fmt"
	"io"
	"math/big"
	"net"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Amount is a token amount written in decimal or 0x-prefixed hex.
type Amount math.HexOrDecimal256

func (a *Amount) UnmarshalText(text []byte) error {
	return (*math.HexOrDecimal256)(a).UnmarshalText(text)
}

func (a *Amount) MarshalText() ([]byte, error) {
	return (*math.HexOrDecimal256)(a).MarshalText()
}

// Int returns a copy of the amount, zero for nil.
func (a *Amount) Int() *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(a))
}

// NewAmount wraps v.
func NewAmount(v *big.Int) *Amount {
	return (*Amount)(new(big.Int).Set(v))
}

// Spec is the YAML description of a network.
type Spec struct {
	Name            string        `yaml:"name"`
	LaunchTime      uint64        `yaml:"launchTime"`
	SystemAddress   hbbft.Address `yaml:"systemAddress"`
	Governance      hbbft.Address `yaml:"governance"`
	Owner           hbbft.Address `yaml:"owner"`
	Seed            hbbft.Bytes32 `yaml:"seed"`
	ProverPublicKey string        `yaml:"proverPublicKey"`
	DeltaPot        *Amount       `yaml:"deltaPot"`
	ReinsertPot     *Amount       `yaml:"reinsertPot"`

	Staking      StakingParams      `yaml:"staking"`
	ValidatorSet ValidatorSetParams `yaml:"validatorSet"`
	BlockReward  BlockRewardParams  `yaml:"blockReward"`
	Connectivity ConnectivityParams `yaml:"connectivity"`

	Pools []Pool `yaml:"pools"`
}

// StakingParams override the staking defaults. Unset fields keep the default.
type StakingParams struct {
	CandidateMinStake         *Amount        `yaml:"candidateMinStake"`
	DelegatorMinStake         *Amount        `yaml:"delegatorMinStake"`
	MaxStake                  *Amount        `yaml:"maxStake"`
	FixedEpochDuration        *uint64        `yaml:"fixedEpochDuration"`
	TransitionTimeframeLength *uint64        `yaml:"transitionTimeframeLength"`
	WithdrawDisallowPeriod    *uint64        `yaml:"withdrawDisallowPeriod"`
	MaxNodeOperatorShare      *uint64        `yaml:"maxNodeOperatorShare"`
	GovernanceRecoveryShare   *staking.Ratio `yaml:"governanceRecoveryShare"`
}

type ValidatorSetParams struct {
	MaxValidators                *uint64 `yaml:"maxValidators"`
	ValidatorInactivityThreshold *uint64 `yaml:"validatorInactivityThreshold"`
	AnnounceBlockWindow          *uint64 `yaml:"announceBlockWindow"`
}

type BlockRewardParams struct {
	ValidatorMinRewardPercent *uint64        `yaml:"validatorMinRewardPercent"`
	DeltaPotPayoutFraction    *uint64        `yaml:"deltaPotPayoutFraction"`
	ReinsertPotPayoutFraction *uint64        `yaml:"reinsertPotPayoutFraction"`
	GovernancePotShare        *staking.Ratio `yaml:"governancePotShare"`
}

type ConnectivityParams struct {
	EarlyEpochEndTolerance uint64 `yaml:"earlyEpochEndTolerance"`
}

// Pool is a staking pool created at genesis.
type Pool struct {
	Staking       hbbft.Address `yaml:"staking"`
	Mining        hbbft.Address `yaml:"mining"`
	Operator      hbbft.Address `yaml:"operator"`
	OperatorShare uint64        `yaml:"operatorShare"`
	Stake         *Amount       `yaml:"stake"`
	PublicKey     string        `yaml:"publicKey"`
	IP            string        `yaml:"ip"`
	Port          uint16        `yaml:"port"`
	// whether the pool's validator is in the initial validator set
	Validator bool `yaml:"validator"`
}

// LoadSpec decodes a YAML spec. Unknown fields are rejected.
func LoadSpec(r io.Reader) (*Spec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.Wrap(err, "decode genesis spec")
	}
	return &spec, nil
}

// LoadSpecFile reads the YAML spec at path.
func LoadSpecFile(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSpec(f)
}

func setUint64(dst *uint64, v *uint64) {
	if v != nil {
		*dst = *v
	}
}

// Config returns the contract parameters: the defaults with the spec's overrides.
func (s *Spec) Config() (builtin.Config, error) {
	cfg := builtin.DefaultConfig(s.SystemAddress)
	cfg.Governance = s.Governance
	cfg.ValidatorSet.Owner = s.Owner

	st := &cfg.Staking
	if s.Staking.CandidateMinStake != nil {
		st.CandidateMinStake = s.Staking.CandidateMinStake.Int()
	}
	if s.Staking.DelegatorMinStake != nil {
		st.DelegatorMinStake = s.Staking.DelegatorMinStake.Int()
	}
	if s.Staking.MaxStake != nil {
		st.MaxStake = s.Staking.MaxStake.Int()
	}
	setUint64(&st.FixedEpochDuration, s.Staking.FixedEpochDuration)
	setUint64(&st.TransitionTimeframeLength, s.Staking.TransitionTimeframeLength)
	setUint64(&st.WithdrawDisallowPeriod, s.Staking.WithdrawDisallowPeriod)
	setUint64(&st.MaxNodeOperatorShare, s.Staking.MaxNodeOperatorShare)
	if s.Staking.GovernanceRecoveryShare != nil {
		st.GovernanceRecoveryShare = *s.Staking.GovernanceRecoveryShare
	}

	setUint64(&cfg.ValidatorSet.MaxValidators, s.ValidatorSet.MaxValidators)
	setUint64(&cfg.ValidatorSet.ValidatorInactivityThreshold, s.ValidatorSet.ValidatorInactivityThreshold)
	setUint64(&cfg.ValidatorSet.AnnounceBlockWindow, s.ValidatorSet.AnnounceBlockWindow)

	br := &cfg.BlockReward
	setUint64(&br.ValidatorMinRewardPercent, s.BlockReward.ValidatorMinRewardPercent)
	setUint64(&br.DeltaPotPayoutFraction, s.BlockReward.DeltaPotPayoutFraction)
	setUint64(&br.ReinsertPotPayoutFraction, s.BlockReward.ReinsertPotPayoutFraction)
	if s.BlockReward.GovernancePotShare != nil {
		br.GovernancePotShare = *s.BlockReward.GovernancePotShare
	}

	cfg.Connectivity.EarlyEpochEndTolerance = s.Connectivity.EarlyEpochEndTolerance

	if s.ProverPublicKey != "" {
		key, err := hexutil.Decode(s.ProverPublicKey)
		if err != nil {
			return builtin.Config{}, errors.Wrap(err, "prover public key")
		}
		cfg.Random.ProverPublicKey = key
	}
	if err := cfg.Validate(); err != nil {
		return builtin.Config{}, err
	}
	return cfg, nil
}

type poolInfo struct {
	Pool
	publicKey []byte
	ip        []byte
}

func (s *Spec) pools() ([]poolInfo, []hbbft.Address, error) {
	var (
		pools      []poolInfo
		validators []hbbft.Address
	)
	for i, p := range s.Pools {
		if p.Stake == nil {
			return nil, nil, fmt.Errorf("pool %d (%v): stake must be set", i, p.Staking)
		}
		pk, err := hexutil.Decode(p.PublicKey)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "pool %d (%v): public key", i, p.Staking)
		}
		ip := make([]byte, staking.IPAddressLength)
		if p.IP != "" {
			parsed := net.ParseIP(p.IP)
			if parsed == nil {
				return nil, nil, fmt.Errorf("pool %d (%v): invalid ip %q", i, p.Staking, p.IP)
			}
			ip = parsed.To16()
		}
		pools = append(pools, poolInfo{Pool: p, publicKey: pk, ip: ip})
		if p.Validator {
			validators = append(validators, p.Mining)
		}
	}
	if len(validators) == 0 {
		return nil, nil, errors.New("no initial validators")
	}
	return pools, validators, nil
}

// Builder returns the builder of the genesis state described by the spec.
func (s *Spec) Builder() (*Builder, builtin.Config, error) {
	if s.LaunchTime == 0 {
		return nil, builtin.Config{}, errors.New("launch time must be set")
	}
	cfg, err := s.Config()
	if err != nil {
		return nil, builtin.Config{}, err
	}
	pools, validators, err := s.pools()
	if err != nil {
		return nil, builtin.Config{}, err
	}

	builder := new(Builder).
		Timestamp(s.LaunchTime).
		Config(cfg).
		Contracts(func(c *builtin.Contracts) error {
			if err := c.Staking.Initialize(s.LaunchTime, 0); err != nil {
				return err
			}
			// validators first, so their pools are created available
			if err := c.ValidatorSet.Initialize(validators); err != nil {
				return err
			}
			for _, p := range pools {
				if err := c.Staking.AddPool(p.Staking, p.Mining, p.Operator, p.OperatorShare, p.publicKey, p.ip, p.Stake.Int()); err != nil {
					return errors.Wrapf(err, "add pool %v", p.Staking)
				}
				if p.Port != 0 {
					if err := c.Staking.SetPoolInfo(p.Staking, p.publicKey, p.ip, p.Port); err != nil {
						return errors.Wrapf(err, "pool info %v", p.Staking)
					}
				}
			}
			return c.BlockReward.SnapshotGenesis(s.SystemAddress)
		}).
		Contracts(func(c *builtin.Contracts) error {
			if err := c.Random.SetCurrentSeed(s.SystemAddress, s.Seed); err != nil {
				return err
			}
			if delta := s.DeltaPot.Int(); delta.Sign() > 0 {
				if err := c.BlockReward.AddToDeltaPot(delta); err != nil {
					return err
				}
			}
			return c.BlockReward.AddToReinsertPot(s.ReinsertPot.Int())
		})
	return builder, cfg, nil
}

// NewFromSpec creates the genesis described by spec.
func NewFromSpec(spec *Spec) (*Genesis, error) {
	builder, cfg, err := spec.Builder()
	if err != nil {
		return nil, err
	}
	name := spec.Name
	if name == "" {
		name = "customnet"
	}
	return New(name, builder, cfg)
}
