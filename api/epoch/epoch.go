// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epoch

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
)

type Epochs struct {
	viewer utils.Viewer
}

func New(viewer utils.Viewer) *Epochs {
	return &Epochs{viewer}
}

func (e *Epochs) handleGetEpoch(w http.ResponseWriter, _ *http.Request) error {
	var epoch *JSONEpoch
	if err := e.viewer.View(func(c *builtin.Contracts) error {
		info, err := c.ValidatorSet.EpochInfo()
		if err != nil {
			return err
		}
		epoch = convertEpoch(info)
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, epoch)
}

func (e *Epochs) handleGetKeyGen(w http.ResponseWriter, _ *http.Request) error {
	kg := &JSONKeyGen{Writers: []*JSONKeyGenWrite{}}
	if err := e.viewer.View(func(c *builtin.Contracts) error {
		epoch, err := c.Staking.StakingEpoch()
		if err != nil {
			return err
		}
		kg.Epoch = epoch + 1
		if kg.Round, err = c.KeyGen.CurrentKeyGenRound(); err != nil {
			return err
		}
		if kg.Parts, kg.Acks, err = c.KeyGen.NumberOfKeyFragmentsWritten(); err != nil {
			return err
		}
		pending, err := c.ValidatorSet.PendingValidators()
		if err != nil {
			return err
		}
		for _, mining := range pending {
			part, err := c.KeyGen.Part(mining)
			if err != nil {
				return err
			}
			acks, err := c.KeyGen.AcksLength(mining)
			if err != nil {
				return err
			}
			kg.Writers = append(kg.Writers, &JSONKeyGenWrite{Validator: mining, PartSize: len(part), Acks: acks})
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, kg)
}

func (e *Epochs) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /epoch").
		HandlerFunc(utils.WrapHandlerFunc(e.handleGetEpoch))
	sub.Path("/keygen").
		Methods(http.MethodGet).
		Name("GET /epoch/keygen").
		HandlerFunc(utils.WrapHandlerFunc(e.handleGetKeyGen))
}
