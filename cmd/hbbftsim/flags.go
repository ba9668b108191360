// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	specFlag = cli.StringFlag{
		Name:  "spec",
		Usage: "path to a YAML genesis spec, a devnet is simulated when omitted",
	}
	devnetFlag = cli.IntFlag{
		Name:  "devnet",
		Value: 4,
		Usage: "number of validator nodes of the devnet",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Usage: "directory for the chain database, kept in memory when omitted",
	}
	blocksFlag = cli.Uint64Flag{
		Name:  "blocks",
		Usage: "number of blocks to produce, 0 runs until interrupted",
	}
	blockIntervalFlag = cli.Uint64Flag{
		Name:  "block-interval",
		Value: 5,
		Usage: "seconds of chain time between blocks",
	}
	paceFlag = cli.DurationFlag{
		Name:  "pace",
		Usage: "real time to wait between blocks",
	}
	silentFlag = cli.StringSliceFlag{
		Name:  "silent",
		Usage: "mining address of a node that never writes key generation data (repeatable)",
	}
	offlineFlag = cli.StringSliceFlag{
		Name:  "offline",
		Usage: "mining address of a node that stays offline (repeatable)",
	}
	proverKeyFlag = cli.StringFlag{
		Name:  "prover-key",
		Usage: "hex private key advancing the random seed by VRF, defaults to the system account on devnets",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8669",
		Usage: "API service listening address, empty to disable",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiLogsFlag = cli.BoolFlag{
		Name:  "api-logs",
		Usage: "log every API request",
	}
	apiSlowQueriesThresholdFlag = cli.DurationFlag{
		Name:  "api-slow-queries-threshold",
		Usage: "log API requests slower than this, 0 to disable",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Usage: "admin service listening address, empty to disable",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables the metrics server",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "file to write to, stdout when omitted",
	}
)
