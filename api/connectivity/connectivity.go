// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package connectivity

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	tracker "github.com/DMDcoin/diamond-contracts-core-sub000/builtin/connectivity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

type JSONReports struct {
	Validator hbbft.Address   `json:"validator"`
	Faulty    bool            `json:"faulty"`
	Reporters []hbbft.Address `json:"reporters"`
}

type JSONConnectivity struct {
	Epoch     uint64          `json:"epoch"`
	Threshold uint64          `json:"threshold"`
	Tolerance uint64          `json:"tolerance"`
	Faulty    []hbbft.Address `json:"faulty"`
	Reports   []*JSONReports  `json:"reports"`
}

type Connectivity struct {
	viewer utils.Viewer
}

func New(viewer utils.Viewer) *Connectivity {
	return &Connectivity{viewer}
}

func (cn *Connectivity) handleGet(w http.ResponseWriter, _ *http.Request) error {
	result := &JSONConnectivity{Faulty: []hbbft.Address{}, Reports: []*JSONReports{}}
	if err := cn.viewer.View(func(c *builtin.Contracts) error {
		epoch, err := c.Staking.StakingEpoch()
		if err != nil {
			return err
		}
		validators, err := c.ValidatorSet.Validators()
		if err != nil {
			return err
		}
		n := uint64(len(validators))
		result.Epoch = epoch
		result.Threshold = tracker.FaultyThreshold(n)
		result.Tolerance = c.Connectivity.Tolerance(n)

		faulty, err := c.Connectivity.FaultyValidators(epoch)
		if err != nil {
			return err
		}
		result.Faulty = append(result.Faulty, faulty...)
		for _, v := range validators {
			reporters, err := c.Connectivity.Reporters(epoch, v)
			if err != nil {
				return err
			}
			if len(reporters) == 0 {
				continue
			}
			isFaulty, err := c.Connectivity.IsFaulty(epoch, v)
			if err != nil {
				return err
			}
			result.Reports = append(result.Reports, &JSONReports{Validator: v, Faulty: isFaulty, Reporters: reporters})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, result)
}

func (cn *Connectivity) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /connectivity").
		HandlerFunc(utils.WrapHandlerFunc(cn.handleGet))
}
