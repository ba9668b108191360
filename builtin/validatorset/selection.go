// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validatorset

import (
	"math/big"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// SweetSpot returns the validator count to elect out of n candidates.
// It snaps down to the largest 3f+1 not above n, so every extra validator
// also raises the number of tolerated faults. Below 4 all candidates are taken.
func SweetSpot(n uint64) uint64 {
	if n < 4 {
		return n
	}
	return (n-1)/3*3 + 1
}

// Sample draws count distinct indexes out of weights, each draw with probability
// proportional to the weight still in the arena. The seed is rehashed before every
// draw so the result only depends on the initial seed.
func Sample(weights []*big.Int, count int, seed hbbft.Bytes32) []int {
	arena := make([]int, 0, len(weights))
	remaining := make([]*big.Int, 0, len(weights))
	sum := new(big.Int)
	for i, w := range weights {
		if w.Sign() <= 0 {
			continue
		}
		arena = append(arena, i)
		remaining = append(remaining, w)
		sum.Add(sum, w)
	}

	picked := make([]int, 0, count)
	for len(picked) < count && len(arena) > 0 {
		seed = hbbft.Keccak256(seed.Bytes())
		r := new(big.Int).SetBytes(seed.Bytes())
		r.Mod(r, sum)

		i := 0
		for ; i < len(arena)-1; i++ {
			if r.Cmp(remaining[i]) < 0 {
				break
			}
			r.Sub(r, remaining[i])
		}

		picked = append(picked, arena[i])
		sum.Sub(sum, remaining[i])

		last := len(arena) - 1
		arena[i], remaining[i] = arena[last], remaining[last]
		arena, remaining = arena[:last], remaining[:last]
	}
	return picked
}
