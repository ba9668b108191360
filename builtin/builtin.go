// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/blockreward"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/connectivity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/keygen"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/random"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

// Builtin contract addresses.
var (
	StakingAddress      = hbbft.BytesToAddress([]byte("StakingHbbft"))
	KeyGenAddress       = hbbft.BytesToAddress([]byte("KeyGenHistory"))
	ValidatorSetAddress = hbbft.BytesToAddress([]byte("ValidatorSetHbbft"))
	BlockRewardAddress  = hbbft.BytesToAddress([]byte("BlockRewardHbbft"))
	RandomAddress       = hbbft.BytesToAddress([]byte("RandomHbbft"))
	ConnectivityAddress = hbbft.BytesToAddress([]byte("ConnectivityTracker"))
)

// Config gathers the parameters of every builtin contract.
type Config struct {
	Staking      staking.Config
	ValidatorSet validatorset.Config
	BlockReward  blockreward.Config
	Random       random.Config
	Connectivity connectivity.Config
	// receiver of the governance shares
	Governance hbbft.Address
}

// DefaultConfig returns the mainnet parameters for the given system account.
func DefaultConfig(system hbbft.Address) Config {
	cfg := Config{
		Staking:      staking.DefaultConfig(),
		ValidatorSet: validatorset.DefaultConfig(),
		BlockReward:  blockreward.DefaultConfig(),
		Random:       random.Config{SystemAddress: system},
	}
	cfg.BlockReward.SystemAddress = system
	return cfg
}

func (c Config) Validate() error {
	if err := c.Staking.Validate(); err != nil {
		return errors.Wrap(err, "staking")
	}
	if err := c.ValidatorSet.Validate(); err != nil {
		return errors.Wrap(err, "validator set")
	}
	if err := c.BlockReward.Validate(); err != nil {
		return errors.Wrap(err, "block reward")
	}
	if err := c.Random.Validate(); err != nil {
		return errors.Wrap(err, "random")
	}
	if c.Random.SystemAddress != c.BlockReward.SystemAddress {
		return errors.New("random and block reward system addresses differ")
	}
	return nil
}

// Contracts binds every builtin contract to one state and chain. Capabilities
// between them are granted once, here.
type Contracts struct {
	Staking      *staking.Ledger
	KeyGen       *keygen.Coordinator
	ValidatorSet *validatorset.Controller
	BlockReward  *blockreward.Distributor
	Random       *random.Random
	Connectivity *connectivity.Tracker
}

// New binds the contracts to st.
func New(st *state.State, chain xenv.Chain, cfg Config) (*Contracts, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Contracts{}
	var err error

	c.Staking = staking.New(StakingAddress, st, chain, cfg.Staking)
	c.KeyGen = keygen.New(KeyGenAddress, st, c.Staking)
	if c.Random, err = random.New(RandomAddress, st, chain, cfg.Random); err != nil {
		return nil, errors.Wrap(err, "random")
	}
	if c.ValidatorSet, err = validatorset.New(ValidatorSetAddress, st, chain, c.Staking, c.KeyGen, c.Random, cfg.ValidatorSet); err != nil {
		return nil, errors.Wrap(err, "validator set")
	}
	if c.BlockReward, err = blockreward.New(
		BlockRewardAddress,
		st,
		chain,
		c.Staking,
		c.ValidatorSet,
		c.KeyGen,
		blockreward.FixedGovernance(cfg.Governance),
		cfg.BlockReward,
	); err != nil {
		return nil, errors.Wrap(err, "block reward")
	}
	if c.Connectivity, err = connectivity.New(ConnectivityAddress, st, c.Staking, c.ValidatorSet, cfg.Connectivity); err != nil {
		return nil, errors.Wrap(err, "connectivity")
	}
	return c, nil
}
