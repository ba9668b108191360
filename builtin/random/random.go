// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package random keeps the seed used for validator selection. The seed advances
// with VRF outputs, so each value can be verified against the prover's key.
package random

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vechain/go-ecvrf"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

var logger = log.WithContext("pkg", "random")

var (
	slotSeed        = solidity.Slot("current-seed")
	slotUpdateBlock = solidity.Slot("seed-update-block")
)

// Config of the seed contract.
type Config struct {
	SystemAddress hbbft.Address
	// compressed secp256k1 key of the VRF prover, 33 bytes; empty disables proven seeds
	ProverPublicKey []byte
}

func (c Config) Validate() error {
	if c.SystemAddress.IsZero() {
		return errors.New("system address not set")
	}
	if len(c.ProverPublicKey) != 0 {
		if _, err := crypto.DecompressPubkey(c.ProverPublicKey); err != nil {
			return errors.Wrap(err, "prover public key")
		}
	}
	return nil
}

// Random stores the current seed.
type Random struct {
	state  *state.State
	chain  xenv.Chain
	cfg    Config
	prover *ecdsa.PublicKey

	seed        *solidity.Value[hbbft.Bytes32]
	updateBlock *solidity.Uint64
}

// New create a new instance.
func New(addr hbbft.Address, st *state.State, chain xenv.Chain, cfg Config) (*Random, error) {
	r := &Random{state: st, chain: chain, cfg: cfg}
	if len(cfg.ProverPublicKey) != 0 {
		pub, err := crypto.DecompressPubkey(cfg.ProverPublicKey)
		if err != nil {
			return nil, errors.Wrap(err, "prover public key")
		}
		r.prover = pub
	}
	sctx := solidity.NewContext(addr, st)
	r.seed = solidity.NewValue[hbbft.Bytes32](sctx, slotSeed)
	r.updateBlock = solidity.NewUint64(sctx, slotUpdateBlock)
	return r, nil
}

// CurrentSeed returns the latest seed.
func (r *Random) CurrentSeed() (hbbft.Bytes32, error) {
	return r.seed.Get()
}

// SeedUpdateBlock returns the block number of the last seed change.
func (r *Random) SeedUpdateBlock() (uint64, error) {
	return r.updateBlock.Get()
}

func (r *Random) store(seed hbbft.Bytes32) error {
	if err := r.seed.Set(seed); err != nil {
		return err
	}
	r.updateBlock.Set(r.chain.Current().Number)
	return nil
}

// SetCurrentSeed overwrites the seed. Only the system account may call it.
func (r *Random) SetCurrentSeed(caller hbbft.Address, seed hbbft.Bytes32) error {
	if caller != r.cfg.SystemAddress {
		return reverts.ErrUnauthorized
	}
	return r.state.Atomic(func() error {
		return r.store(seed)
	})
}

// SetCurrentSeedWithProof advances the seed with the VRF output of proof over the
// current seed: next = keccak256(current ‖ beta).
func (r *Random) SetCurrentSeedWithProof(caller hbbft.Address, proof []byte) error {
	if caller != r.cfg.SystemAddress {
		return reverts.ErrUnauthorized
	}
	if r.prover == nil {
		return errors.New("no prover key configured")
	}
	return r.state.Atomic(func() error {
		current, err := r.seed.Get()
		if err != nil {
			return err
		}
		beta, err := ecvrf.NewSecp256k1Sha256Tai().Verify(r.prover, current.Bytes(), proof)
		if err != nil {
			return errors.Wrap(reverts.ErrInvalidProof, err.Error())
		}
		next := hbbft.Keccak256(current.Bytes(), beta)
		if err := r.store(next); err != nil {
			return err
		}
		logger.Debug("seed advanced", "seed", next.AbbrevString())
		return nil
	})
}

// Prove computes the proof that advances current with the prover's private key.
func Prove(sk *ecdsa.PrivateKey, current hbbft.Bytes32) ([]byte, error) {
	_, proof, err := ecvrf.NewSecp256k1Sha256Tai().Prove(sk, current.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "vrf prove")
	}
	return proof, nil
}
