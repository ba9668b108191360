// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

// Genesis to build genesis state.
type Genesis struct {
	builder *Builder
	id      hbbft.Bytes32
	name    string
	config  builtin.Config
}

// New computes the ID of the state the builder produces.
func New(name string, builder *Builder, config builtin.Config) (*Genesis, error) {
	id, err := builder.ComputeID()
	if err != nil {
		return nil, err
	}
	return &Genesis{builder: builder, id: id, name: name, config: config}, nil
}

// Build writes the genesis state into st.
func (g *Genesis) Build(st *state.State, chain xenv.Chain) (*builtin.Contracts, error) {
	contracts, _, err := g.builder.Build(st, chain)
	return contracts, err
}

// ID returns genesis ID.
func (g *Genesis) ID() hbbft.Bytes32 {
	return g.id
}

// Name returns network name.
func (g *Genesis) Name() string {
	return g.name
}

// Config returns the contract parameters the network runs with.
func (g *Genesis) Config() builtin.Config {
	return g.config
}

// LaunchTime returns the genesis block time.
func (g *Genesis) LaunchTime() uint64 {
	return g.builder.timestamp
}
