// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/node"
)

func newContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range []cli.Flag{specFlag, devnetFlag, dataDirFlag, silentFlag, offlineFlag, proverKeyFlag, outputFlag} {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func TestBehaviors(t *testing.T) {
	_, silent := genesis.DevNode(0)
	_, offline := genesis.DevNode(1)

	got, err := behaviors(newContext(t, "--silent", silent.Address.String(), "--offline", offline.Address.String()))
	require.NoError(t, err)
	assert.Equal(t, node.SilentKeyGen, got[silent.Address])
	assert.Equal(t, node.Offline, got[offline.Address])
	assert.Len(t, got, 2)

	_, err = behaviors(newContext(t, "--silent", "0x1234"))
	assert.Error(t, err)
}

func TestSelectSpec(t *testing.T) {
	spec, err := selectSpec(newContext(t, "--devnet", "2"))
	require.NoError(t, err)
	assert.Len(t, spec.Pools, 2)

	_, err = selectSpec(newContext(t, "--devnet", "0"))
	assert.Error(t, err)

	_, err = selectSpec(newContext(t, "--spec", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestProverKey(t *testing.T) {
	key, err := proverKey(newContext(t))
	require.NoError(t, err)
	assert.Equal(t, genesis.DevAccounts()[0].PrivateKey, key)

	key, err = proverKey(newContext(t, "--spec", "custom.yaml"))
	require.NoError(t, err)
	assert.Nil(t, key)

	_, err = proverKey(newContext(t, "--prover-key", "zz"))
	assert.Error(t, err)
}

func TestDumpSpecRoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, dumpSpecAction(newContext(t, "--devnet", "3", "--output", out)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	loaded, err := genesis.LoadSpec(bytes.NewReader(data))
	require.NoError(t, err)

	want, err := genesis.NewDevnet(3)
	require.NoError(t, err)
	got, err := genesis.NewFromSpec(loaded)
	require.NoError(t, err)
	assert.Equal(t, want.ID(), got.ID())
}

func TestOpenDB(t *testing.T) {
	gene, err := genesis.NewDevnet(1)
	require.NoError(t, err)

	_, closeDB, dir, err := openDB(newContext(t), gene)
	require.NoError(t, err)
	closeDB()
	assert.Equal(t, "Memory", dir)

	dataDir := t.TempDir()
	_, closeDB, dir, err = openDB(newContext(t, "--data-dir", dataDir), gene)
	require.NoError(t, err)
	closeDB()
	assert.DirExists(t, filepath.Join(dir, "main.db"))
}
