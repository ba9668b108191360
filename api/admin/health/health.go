// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/health"
)

const defaultMaxTimeBetweenBlocks = 10 * time.Second

type API struct {
	healthStatus *health.Health
}

func New(healthStatus *health.Health) *API {
	return &API{
		healthStatus: healthStatus,
	}
}

func (h *API) handleGetHealth(w http.ResponseWriter, r *http.Request) error {
	maxTimeBetweenBlocks := defaultMaxTimeBetweenBlocks
	if query := r.URL.Query().Get("maxTimeBetweenBlocks"); query != "" {
		parsed, err := time.ParseDuration(query)
		if err != nil {
			return utils.BadRequest(err)
		}
		maxTimeBetweenBlocks = parsed
	}

	status, err := h.healthStatus.Status(maxTimeBetweenBlocks)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", utils.JSONContentType)
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	return utils.WriteJSON(w, status)
}

func (h *API) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("get-health").
		HandlerFunc(utils.WrapHandlerFunc(h.handleGetHealth))
}
