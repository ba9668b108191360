// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// BlockContext describes the block being executed.
type BlockContext struct {
	Number uint64
	Time   uint64
	Author hbbft.Address
}

// Chain exposes the block being executed and the hashes of its ancestors.
type Chain interface {
	// Current returns the block being executed.
	Current() BlockContext
	// BlockHash returns the hash of an ancestor block. ok is false for unknown blocks.
	BlockHash(number uint64) (hash hbbft.Bytes32, ok bool, err error)
}
