// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

type Pools struct {
	viewer utils.Viewer
}

func New(viewer utils.Viewer) *Pools {
	return &Pools{viewer}
}

var errUnknownPool = errors.New("unknown pool")

// listers by the status query value
var listers = map[string]func(c *builtin.Contracts) ([]hbbft.Address, error){
	"active":      func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.Pools() },
	"toBeElected": func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.PoolsToBeElected() },
	"toBeRemoved": func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.PoolsToBeRemoved() },
	"inactive":    func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.PoolsInactive() },
	"abandoned":   func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.PoolsAbandoned() },
	"all":         func(c *builtin.Contracts) ([]hbbft.Address, error) { return c.Staking.AllPools() },
}

func (p *Pools) handleGetPools(w http.ResponseWriter, req *http.Request) error {
	status := req.URL.Query().Get("status")
	if status == "" {
		status = "active"
	}
	lister, ok := listers[status]
	if !ok {
		return utils.BadRequest(errors.Errorf("status: unsupported value %q", status))
	}
	pools := []hbbft.Address{}
	if err := p.viewer.View(func(c *builtin.Contracts) error {
		list, err := lister(c)
		pools = append(pools, list...)
		return err
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, pools)
}

func (p *Pools) handleGetPool(w http.ResponseWriter, req *http.Request) error {
	addr, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	var pool *JSONPool
	if err := p.viewer.View(func(c *builtin.Contracts) error {
		info, err := c.Staking.Pool(addr)
		if err != nil {
			return err
		}
		if !info.Exists() {
			return utils.NotFound(errUnknownPool)
		}
		status, err := c.Staking.PoolStatus(addr)
		if err != nil {
			return err
		}
		delegators, err := c.Staking.PoolDelegators(addr)
		if err != nil {
			return err
		}
		epoch, err := c.Staking.StakingEpoch()
		if err != nil {
			return err
		}
		snap, err := c.Staking.Snapshot(epoch, addr)
		if err != nil {
			return err
		}
		if delegators == nil {
			delegators = []hbbft.Address{}
		}
		pool = &JSONPool{
			Address:       addr,
			Mining:        info.Mining,
			Status:        status.String(),
			Operator:      info.Operator,
			OperatorShare: info.OperatorShare,
			PublicKey:     info.PublicKey,
			IP:            formatIP(info.IP),
			Port:          info.Port,
			TotalStake:    utils.Amount(info.Total),
			Delegators:    delegators,
			Snapshot:      convertSnapshot(epoch, snap),
		}
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, pool)
}

func (p *Pools) handleGetStaker(w http.ResponseWriter, req *http.Request) error {
	pool, err := utils.AddressVar(req, "address")
	if err != nil {
		return err
	}
	staker, err := utils.AddressVar(req, "staker")
	if err != nil {
		return err
	}
	js := &JSONStaker{Pool: pool, Staker: staker}
	if err := p.viewer.View(func(c *builtin.Contracts) error {
		info, err := c.Staking.Pool(pool)
		if err != nil {
			return err
		}
		if !info.Exists() {
			return utils.NotFound(errUnknownPool)
		}
		stake, err := c.Staking.StakeAmount(pool, staker)
		if err != nil {
			return err
		}
		thisEpoch, err := c.Staking.StakeAmountThisEpoch(pool, staker)
		if err != nil {
			return err
		}
		ordered, orderedEpoch, err := c.Staking.OrderedWithdrawAmount(pool, staker)
		if err != nil {
			return err
		}
		maxWithdraw, err := c.Staking.MaxWithdrawAllowed(pool, staker)
		if err != nil {
			return err
		}
		maxOrder, err := c.Staking.MaxWithdrawOrderAllowed(pool, staker)
		if err != nil {
			return err
		}
		js.Stake = utils.Amount(stake)
		js.StakeThisEpoch = utils.Amount(thisEpoch)
		js.OrderedWithdraw = utils.Amount(ordered)
		js.OrderedWithdrawEpoch = orderedEpoch
		js.MaxWithdrawAllowed = utils.Amount(maxWithdraw)
		js.MaxWithdrawOrderAllowed = utils.Amount(maxOrder)
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, js)
}

func (p *Pools) handleGetLikelihood(w http.ResponseWriter, _ *http.Request) error {
	result := &JSONLikelihood{Candidates: []*JSONCandidate{}}
	if err := p.viewer.View(func(c *builtin.Contracts) error {
		l, err := c.Staking.PoolsLikelihood()
		if err != nil {
			return err
		}
		for i, pool := range l.Pools {
			result.Candidates = append(result.Candidates, &JSONCandidate{Pool: pool, Likelihood: utils.Amount(l.Likelihoods[i])})
		}
		result.Sum = utils.Amount(l.Sum)
		return nil
	}); err != nil {
		return err
	}
	return utils.WriteJSON(w, result)
}

func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /pools").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetPools))
	sub.Path("/likelihood").
		Methods(http.MethodGet).
		Name("GET /pools/likelihood").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetLikelihood))
	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /pools/{address}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetPool))
	sub.Path("/{address}/stakers/{staker}").
		Methods(http.MethodGet).
		Name("GET /pools/{address}/stakers/{staker}").
		HandlerFunc(utils.WrapHandlerFunc(p.handleGetStaker))
}
