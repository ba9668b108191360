// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

// Builder helper to build the genesis state.
type Builder struct {
	timestamp uint64
	config    builtin.Config
	procs     []func(c *builtin.Contracts) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// Config set the builtin contract parameters.
func (b *Builder) Config(cfg builtin.Config) *Builder {
	b.config = cfg
	return b
}

// Contracts add a process run against the freshly bound contracts.
func (b *Builder) Contracts(proc func(c *builtin.Contracts) error) *Builder {
	b.procs = append(b.procs, proc)
	return b
}

// ComputeID computes the genesis ID, the digest of the genesis state.
func (b *Builder) ComputeID() (hbbft.Bytes32, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return hbbft.Bytes32{}, err
	}
	defer db.Close()
	c, err := chain.New(db, chain.Header{Time: b.timestamp})
	if err != nil {
		return hbbft.Bytes32{}, err
	}
	_, id, err := b.Build(state.New(nil), c)
	return id, err
}

// Build runs the processes on st. The chain must be positioned at the genesis block.
func (b *Builder) Build(st *state.State, c xenv.Chain) (*builtin.Contracts, hbbft.Bytes32, error) {
	head := c.Current()
	if head.Number != 0 {
		return nil, hbbft.Bytes32{}, errors.Errorf("chain at block %d, want genesis", head.Number)
	}
	if head.Time != b.timestamp {
		return nil, hbbft.Bytes32{}, errors.Errorf("genesis time %d, chain has %d", b.timestamp, head.Time)
	}
	contracts, err := builtin.New(st, c, b.config)
	if err != nil {
		return nil, hbbft.Bytes32{}, errors.Wrap(err, "bind contracts")
	}
	for _, proc := range b.procs {
		if err := proc(contracts); err != nil {
			return nil, hbbft.Bytes32{}, errors.Wrap(err, "genesis process")
		}
	}
	return contracts, st.Stage().Hash(), nil
}
