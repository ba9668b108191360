// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// JSONValidator is the view of a mining address.
type JSONValidator struct {
	Address                 hbbft.Address `json:"address"`
	Pool                    hbbft.Address `json:"pool"`
	Membership              string        `json:"membership"`
	Available               bool          `json:"available"`
	AvailableSince          uint64        `json:"availableSince"`
	AvailableSinceLastWrite uint64        `json:"availableSinceLastWrite"`
	Banned                  bool          `json:"banned"`
	BannedUntil             uint64        `json:"bannedUntil"`
}

type Validators struct {
	viewer utils.Viewer
}

func New(viewer utils.Viewer) *Validators {
	return &Validators{viewer}
}

func validator(c *builtin.Contracts, mining hbbft.Address) (*JSONValidator, error) {
	pool, err := c.Staking.StakingByMining(mining)
	if err != nil {
		return nil, err
	}
	if pool.IsZero() {
		return nil, nil
	}
	v, err := c.ValidatorSet.Validator(mining)
	if err != nil {
		return nil, err
	}
	membership, err := c.ValidatorSet.Membership(mining)
	if err != nil {
		return nil, err
	}
	available, err := c.ValidatorSet.IsValidatorAvailable(mining)
	if err != nil {
		return nil, err
	}
	banned, err := c.ValidatorSet.IsValidatorBanned(mining)
	if err != nil {
		return nil, err
	}
	return &JSONValidator{
		Address:                 mining,
		Pool:                    pool,
		Membership:              membership.String(),
		Available:               available,
		AvailableSince:          v.AvailableSince,
		AvailableSinceLastWrite: v.AvailableSinceLastWrite,
		Banned:                  banned,
		BannedUntil:             v.BannedUntil,
	}, nil
}

func (v *Validators) list(w http.ResponseWriter, addrs func(c *builtin.Contracts) ([]hbbft.Address, error)) error {
	list := []*JSONValidator{}
	if err := v.viewer.View(func(c *builtin.Contracts) error {
		miners, err := addrs(c)
		if err != nil {
			return err
		}
		for _, mining := range miners {
			jv, err := validator(c, mining)
			if err != nil {
				return err
			}
			if jv != nil {
				list = append(list, jv)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, list)
}

func (v *Validators) handleGetValidators(w http.ResponseWriter, _ *http.Request) error {
	return v.list(w, func(c *builtin.Contracts) ([]hbbft.Address, error) {
		return c.ValidatorSet.Validators()
	})
}

func (v *Validators) handleGetPending(w http.ResponseWriter, _ *http.Request) error {
	return v.list(w, func(c *builtin.Contracts) ([]hbbft.Address, error) {
		return c.ValidatorSet.PendingValidators()
	})
}

func (v *Validators) handleGetValidator(w http.ResponseWriter, req *http.Request) error {
	mining, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	var jv *JSONValidator
	if err := v.viewer.View(func(c *builtin.Contracts) (err error) {
		jv, err = validator(c, mining)
		return
	}); err != nil {
		return err
	}
	if jv == nil {
		return utils.NotFound(errors.New("unknown mining address"))
	}
	return utils.WriteJSON(w, jv)
}

func (v *Validators) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /validators").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetValidators))
	sub.Path("/pending").
		Methods(http.MethodGet).
		Name("GET /validators/pending").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetPending))
	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /validators/{address}").
		HandlerFunc(utils.WrapHandlerFunc(v.handleGetValidator))
}
