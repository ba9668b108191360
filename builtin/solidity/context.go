// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

// Context binds typed storage to the storage of one contract address.
type Context struct {
	address hbbft.Address
	state   *state.State
}

func NewContext(address hbbft.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() hbbft.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}

// Slot derives a storage position from a human readable name.
func Slot(name string) hbbft.Bytes32 {
	return hbbft.BytesToBytes32([]byte(name))
}
