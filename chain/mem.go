// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
)

// NewMem creates a chain on an in-memory level db starting at genesisTime.
func NewMem(genesisTime uint64) *Chain {
	db, err := lvldb.NewMem()
	if err != nil {
		panic(err)
	}
	c, err := New(db, Header{Time: genesisTime})
	if err != nil {
		panic(err)
	}
	return c
}
