// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand/v2"
)

func RandInt() int {
	return mathrand.Int() //#nosec G404
}

func RandIntN(n int) int {
	return mathrand.N(n) //#nosec G404
}

// RandAmount returns a random amount in [min, max).
func RandAmount(min, max *big.Int) *big.Int {
	span := new(big.Int).Sub(max, min)
	if span.Sign() <= 0 {
		return new(big.Int).Set(min)
	}
	r, err := rand.Int(rand.Reader, span)
	if err != nil {
		panic(err)
	}
	return r.Add(r, min)
}
