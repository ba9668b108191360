// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

func RandomHash() hbbft.Bytes32 {
	var b32 hbbft.Bytes32

	rand.Read(b32[:])
	return b32
}

func RandomAddress() hbbft.Address {
	var addr hbbft.Address

	rand.Read(addr[:])
	return addr
}

// RandomAddresses returns n distinct addresses.
func RandomAddresses(n int) []hbbft.Address {
	seen := make(map[hbbft.Address]bool, n)
	out := make([]hbbft.Address, 0, n)
	for len(out) < n {
		addr := RandomAddress()
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
