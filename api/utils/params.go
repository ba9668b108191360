// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Viewer runs read-only functions against the contracts at the latest block.
type Viewer interface {
	View(fn func(c *builtin.Contracts) error) error
}

// AddressVar parses the address in the path variable name.
func AddressVar(req *http.Request, name string) (hbbft.Address, error) {
	addr, err := hbbft.ParseAddress(mux.Vars(req)[name])
	if err != nil {
		return hbbft.Address{}, BadRequest(errors.WithMessage(err, name))
	}
	return addr, nil
}

// Uint64Var parses the number in the path variable name.
func Uint64Var(req *http.Request, name string) (uint64, error) {
	n, err := strconv.ParseUint(mux.Vars(req)[name], 0, 64)
	if err != nil {
		return 0, BadRequest(errors.WithMessage(err, name))
	}
	return n, nil
}

// Amount converts v for JSON output, nil stays nil.
func Amount(v *big.Int) *math.HexOrDecimal256 {
	if v == nil {
		return nil
	}
	return (*math.HexOrDecimal256)(new(big.Int).Set(v))
}

// Amounts converts every element of vs.
func Amounts(vs []*big.Int) []*math.HexOrDecimal256 {
	out := make([]*math.HexOrDecimal256, 0, len(vs))
	for _, v := range vs {
		out = append(out, Amount(v))
	}
	return out
}
