// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/admin/loglevel"
	"github.com/DMDcoin/diamond-contracts-core-sub000/health"

	healthAPI "github.com/DMDcoin/diamond-contracts-core-sub000/api/admin/health"
)

// New returns the admin handler, served apart from the public API.
func New(logLevel *slog.LevelVar, health *health.Health) http.HandlerFunc {
	router := mux.NewRouter()
	loglevel.New(logLevel).Mount(router, "/admin/loglevel")
	healthAPI.New(health).Mount(router, "/admin/health")

	return handlers.CompressHandler(router).ServeHTTP
}
