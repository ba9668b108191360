// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves the state of a simulated network over HTTP.
package api

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/connectivity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/epoch"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/middleware"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/node"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/pools"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/rewards"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/subscriptions"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/validators"
	"github.com/DMDcoin/diamond-contracts-core-sub000/co"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
)

var logger = log.WithContext("pkg", "api")

// Network is what the API reads from.
type Network interface {
	utils.Viewer
	node.Network
	NewHeadWaiter() co.Waiter
}

type Options struct {
	AllowedOrigins       string
	EnableMetrics        bool
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
}

// New return api router, and a function closing the open subscriptions.
func New(nw Network, opts Options) (http.Handler, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	node.New(nw).
		Mount(router, "/node")
	epoch.New(nw).
		Mount(router, "/epoch")
	validators.New(nw).
		Mount(router, "/validators")
	pools.New(nw).
		Mount(router, "/pools")
	rewards.New(nw).
		Mount(router, "/rewards")
	connectivity.New(nw).
		Mount(router, "/connectivity")

	subs := subscriptions.New(nw, origins)
	subs.Mount(router, "/subscriptions")

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}
	if opts.EnableReqLogger != nil {
		router.Use(middleware.RequestLoggerMiddleware(logger, opts.EnableReqLogger, opts.SlowQueriesThreshold))
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
	return handler, subs.Close // subscriptions handle hijacked conns, which need to be closed
}

// StartServer serves handler on addr. It returns the URL served and a function that
// stops the server.
func StartServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("API server stopped", "addr", addr, "err", err)
		}
	})
	return "http://" + listener.Addr().String(), func() {
		srv.Close()
		goes.Wait()
	}, nil
}
