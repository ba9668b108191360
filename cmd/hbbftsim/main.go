// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/admin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/health"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/node"
)

var (
	version   string
	gitCommit string
	logger    = log.WithContext("pkg", "hbbftsim")
)

func main() {
	app := cli.App{
		Version: fmt.Sprintf("%s-%s", version, gitCommit),
		Name:    "hbbftsim",
		Usage:   "Simulates the HBBFT proof of stake contracts of a DMD Diamond network",
		Flags: []cli.Flag{
			specFlag,
			devnetFlag,
			dataDirFlag,
			blocksFlag,
			blockIntervalFlag,
			paceFlag,
			silentFlag,
			offlineFlag,
			proverKeyFlag,
			verbosityFlag,
			jsonLogsFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiLogsFlag,
			apiSlowQueriesThresholdFlag,
			adminAddrFlag,
			enableMetricsFlag,
			metricsAddrFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:   "dump-spec",
				Usage:  "write the genesis spec of a devnet or the given spec file as YAML",
				Flags:  []cli.Flag{specFlag, devnetFlag, outputFlag},
				Action: dumpSpecAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	exitSignal, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)

	spec, err := selectSpec(ctx)
	if err != nil {
		return err
	}
	gene, err := genesis.NewFromSpec(spec)
	if err != nil {
		return errors.Wrap(err, "genesis")
	}
	db, closeDB, instanceDir, err := openDB(ctx, gene)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); closeDB() }()

	prover, err := proverKey(ctx)
	if err != nil {
		return err
	}
	bhv, err := behaviors(ctx)
	if err != nil {
		return err
	}
	n, err := node.New(db, gene, node.Options{
		BlockInterval: ctx.Uint64(blockIntervalFlag.Name),
		Pace:          ctx.Duration(paceFlag.Name),
		Prover:        prover,
		Behaviors:     bhv,
	})
	if err != nil {
		return err
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := api.StartServer(ctx.String(metricsAddrFlag.Name), metrics.HTTPHandler())
		if err != nil {
			return errors.Wrap(err, "metrics server")
		}
		defer func() { logger.Info("stopping metrics server..."); closeFunc() }()
		logger.Info("metrics server started", "url", url+"/metrics")
	}

	healthStatus := &health.Health{}
	if addr := ctx.String(adminAddrFlag.Name); addr != "" {
		url, closeFunc, err := api.StartServer(addr, admin.New(logLevel, healthStatus))
		if err != nil {
			return errors.Wrap(err, "admin server")
		}
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
		logger.Info("admin server started", "url", url+"/admin")
	}

	apiURL := "Disabled"
	if addr := ctx.String(apiAddrFlag.Name); addr != "" {
		var reqLogs atomic.Bool
		reqLogs.Store(ctx.Bool(apiLogsFlag.Name))
		handler, closeSubs := api.New(n, api.Options{
			AllowedOrigins:       ctx.String(apiCorsFlag.Name),
			EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
			EnableReqLogger:      &reqLogs,
			SlowQueriesThreshold: ctx.Duration(apiSlowQueriesThresholdFlag.Name),
		})
		url, closeFunc, err := api.StartServer(addr, handler)
		if err != nil {
			closeSubs()
			return err
		}
		defer func() { logger.Info("stopping API server..."); closeSubs(); closeFunc() }()
		apiURL = url
	}

	printStartupMessage(n, instanceDir, apiURL)

	if err := run(exitSignal, n, ctx.Uint64(blocksFlag.Name), healthStatus); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return printSummary(n)
}

// run produces blocks and reports each new head to the health tracker and,
// for a bounded run on a terminal, to a progress bar.
func run(ctx context.Context, n *node.Node, blocks uint64, healthStatus *health.Health) error {
	var bar *pb.ProgressBar
	if blocks > 0 && isTerminal(os.Stdout) {
		bar = pb.New64(int64(blocks)).SetMaxWidth(90).Start()
	}

	healthStatus.Running(true)
	defer healthStatus.Running(false)

	start := n.Head().Number
	done := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return n.Run(ctx, blocks)
	})
	g.Go(func() error {
		waiter := n.NewHeadWaiter()
		for {
			select {
			case <-done:
				if bar != nil {
					bar.Set64(int64(n.Head().Number - start))
					bar.Finish()
				}
				return nil
			case <-waiter.C():
				head := n.Head().Number
				healthStatus.NewHead(head)
				if bar != nil {
					bar.Set64(int64(head - start))
				}
			}
		}
	})
	return g.Wait()
}

func dumpSpecAction(ctx *cli.Context) error {
	spec, err := selectSpec(ctx)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if path := ctx.String(outputFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return err
	}
	return enc.Close()
}
