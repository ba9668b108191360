// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

type JSONPots struct {
	DeltaPot        *math.HexOrDecimal256 `json:"deltaPot"`
	ReinsertPot     *math.HexOrDecimal256 `json:"reinsertPot"`
	Seed            hbbft.Bytes32         `json:"seed"`
	SeedUpdateBlock uint64                `json:"seedUpdateBlock"`
}

type JSONAuthor struct {
	Address hbbft.Address `json:"address"`
	Blocks  uint64        `json:"blocks"`
}

type JSONEpochRewards struct {
	Epoch   uint64                `json:"epoch"`
	Payout  *math.HexOrDecimal256 `json:"payout"`
	Blocks  uint64                `json:"blocks"`
	Authors []*JSONAuthor         `json:"authors"`
}

type JSONPaid struct {
	Address hbbft.Address         `json:"address"`
	Amount  *math.HexOrDecimal256 `json:"amount"`
}

type Rewards struct {
	viewer utils.Viewer
}

func New(viewer utils.Viewer) *Rewards {
	return &Rewards{viewer}
}

func (r *Rewards) handleGetPots(w http.ResponseWriter, _ *http.Request) error {
	pots := &JSONPots{}
	if err := r.viewer.View(func(c *builtin.Contracts) error {
		delta, err := c.BlockReward.DeltaPot()
		if err != nil {
			return err
		}
		reinsert, err := c.BlockReward.ReinsertPot()
		if err != nil {
			return err
		}
		if pots.Seed, err = c.Random.CurrentSeed(); err != nil {
			return err
		}
		if pots.SeedUpdateBlock, err = c.Random.SeedUpdateBlock(); err != nil {
			return err
		}
		pots.DeltaPot = utils.Amount(delta)
		pots.ReinsertPot = utils.Amount(reinsert)
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, pots)
}

// handleGetEpoch reports the payout of a closed epoch and the blocks of the current validators in it.
func (r *Rewards) handleGetEpoch(w http.ResponseWriter, req *http.Request) error {
	epoch, err := utils.Uint64Var(req, "epoch")
	if err != nil {
		return err
	}
	result := &JSONEpochRewards{Epoch: epoch, Authors: []*JSONAuthor{}}
	if err := r.viewer.View(func(c *builtin.Contracts) error {
		payout, err := c.BlockReward.EpochPayout(epoch)
		if err != nil {
			return err
		}
		result.Payout = utils.Amount(payout)
		if result.Blocks, err = c.BlockReward.EpochBlocks(epoch); err != nil {
			return err
		}
		validators, err := c.ValidatorSet.Validators()
		if err != nil {
			return err
		}
		for _, v := range validators {
			n, err := c.BlockReward.BlocksCreated(epoch, v)
			if err != nil {
				return err
			}
			result.Authors = append(result.Authors, &JSONAuthor{Address: v, Blocks: n})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, result)
}

func (r *Rewards) handleGetPaid(w http.ResponseWriter, req *http.Request) error {
	addr, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	paid := &JSONPaid{Address: addr}
	if err := r.viewer.View(func(c *builtin.Contracts) error {
		amount, err := c.BlockReward.Paid(addr)
		paid.Amount = utils.Amount(amount)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, paid)
}

func (r *Rewards) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /rewards").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetPots))
	sub.Path("/epochs/{epoch}").
		Methods(http.MethodGet).
		Name("GET /rewards/epochs/{epoch}").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetEpoch))
	sub.Path("/paid/{address}").
		Methods(http.MethodGet).
		Name("GET /rewards/paid/{address}").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetPaid))
}
