// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
	"github.com/DMDcoin/diamond-contracts-core-sub000/node"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func initLogger(ctx *cli.Context) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(log.LevelFromVerbosity(ctx.Int(verbosityFlag.Name)))

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, lvl, isTerminal(os.Stderr))
	}
	log.SetDefault(log.NewLogger(handler))
	return lvl
}

func selectSpec(ctx *cli.Context) (*genesis.Spec, error) {
	if path := ctx.String(specFlag.Name); path != "" {
		return genesis.LoadSpecFile(path)
	}
	n := ctx.Int(devnetFlag.Name)
	if n <= 0 {
		return nil, errors.Errorf("--%s must be positive", devnetFlag.Name)
	}
	return genesis.DevSpec(n), nil
}

func proverKey(ctx *cli.Context) (*ecdsa.PrivateKey, error) {
	if hex := ctx.String(proverKeyFlag.Name); hex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hex, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "prover key")
		}
		return key, nil
	}
	if ctx.String(specFlag.Name) == "" {
		return genesis.DevAccounts()[0].PrivateKey, nil
	}
	return nil, nil
}

func behaviors(ctx *cli.Context) (map[hbbft.Address]node.Behavior, error) {
	out := make(map[hbbft.Address]node.Behavior)
	for _, set := range []struct {
		flag     cli.StringSliceFlag
		behavior node.Behavior
	}{
		{silentFlag, node.SilentKeyGen},
		{offlineFlag, node.Offline},
	} {
		for _, s := range ctx.StringSlice(set.flag.Name) {
			addr, err := hbbft.ParseAddress(s)
			if err != nil {
				return nil, errors.Wrapf(err, "--%s %s", set.flag.Name, s)
			}
			out[addr] = set.behavior
		}
	}
	return out, nil
}

// openDB opens the instance database of gene under the data dir, or an in-memory one.
func openDB(ctx *cli.Context, gene *genesis.Genesis) (kv.Store, func(), string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		db, err := lvldb.NewMem()
		if err != nil {
			return nil, nil, "", err
		}
		return db, func() { db.Close() }, "Memory", nil
	}

	instanceDir := filepath.Join(dataDir, fmt.Sprintf("instance-%x", gene.ID().Bytes()[24:]))
	if err := os.MkdirAll(instanceDir, 0o700); err != nil {
		return nil, nil, "", errors.Wrapf(err, "create data dir at '%v'", instanceDir)
	}
	dir := filepath.Join(instanceDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{})
	if err != nil {
		return nil, nil, "", errors.Wrapf(err, "open main database at '%v'", dir)
	}
	return db, func() { db.Close() }, instanceDir, nil
}

func printStartupMessage(n *node.Node, instanceDir, apiURL string) {
	gene := n.Genesis()
	head := n.Head()
	var validators int
	n.View(func(c *builtin.Contracts) error {
		list, err := c.ValidatorSet.Validators()
		validators = len(list)
		return err
	})

	fmt.Printf(`Starting simulation
    Network     [ %v %v ]
    Head        [ #%v %v ]
    Validators  [ %v ]
    Instance dir[ %v ]
    API portal  [ %v ]
`,
		gene.Name(), gene.ID().AbbrevString(),
		head.Number, head.Time,
		validators,
		instanceDir,
		apiURL)
}

func printSummary(n *node.Node) error {
	return n.View(func(c *builtin.Contracts) error {
		info, err := c.ValidatorSet.EpochInfo()
		if err != nil {
			return err
		}
		delta, err := c.BlockReward.DeltaPot()
		if err != nil {
			return err
		}
		fmt.Printf(`Simulation stopped
    Head        [ #%v ]
    Epoch       [ %v %v ]
    Validators  [ %v ]
    Pending     [ %v ]
    Delta pot   [ %v ]
`,
			n.Head().Number,
			info.StakingEpoch, info.Phase,
			len(info.Validators),
			len(info.PendingValidators),
			delta)
		return nil
	})
}
