// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
	"github.com/DMDcoin/diamond-contracts-core-sub000/node"
)

// shortSpec is a devnet with 100s epochs, 20 blocks each.
func shortSpec(validators int) *genesis.Spec {
	var (
		epoch     = uint64(100)
		timeframe = uint64(20)
		disallow  = uint64(10)
	)
	spec := genesis.DevSpec(validators)
	spec.Staking.FixedEpochDuration = &epoch
	spec.Staking.TransitionTimeframeLength = &timeframe
	spec.Staking.WithdrawDisallowPeriod = &disallow
	return spec
}

func newNode(t *testing.T, validators int, opts node.Options) (*node.Node, *lvldb.LevelDB) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gene, err := genesis.NewFromSpec(shortSpec(validators))
	require.NoError(t, err)
	n, err := node.New(db, gene, opts)
	require.NoError(t, err)
	return n, db
}

func epochOf(t *testing.T, n *node.Node) (epoch uint64) {
	require.NoError(t, n.View(func(c *builtin.Contracts) (err error) {
		epoch, err = c.Staking.StakingEpoch()
		return
	}))
	return
}

func stepUntilEpoch(t *testing.T, n *node.Node, epoch uint64, maxBlocks int) {
	for i := 0; i < maxBlocks; i++ {
		if epochOf(t, n) >= epoch {
			return
		}
		require.NoError(t, n.Step())
	}
	var info any
	n.View(func(c *builtin.Contracts) (err error) {
		info, err = c.ValidatorSet.EpochInfo()
		return
	})
	t.Fatalf("epoch %d not reached after %d blocks:\n%s", epoch, maxBlocks, spew.Sdump(info))
}

func TestEpochsAdvance(t *testing.T) {
	n, _ := newNode(t, 4, node.Options{})

	require.NoError(t, n.Run(context.Background(), 50))
	assert.Equal(t, uint64(50), n.Head().Number)
	assert.Equal(t, genesis.DevLaunchTime+250, n.Head().Time)
	assert.GreaterOrEqual(t, epochOf(t, n), uint64(2))

	stakingAcc, miningAcc := genesis.DevNode(0)
	require.NoError(t, n.View(func(c *builtin.Contracts) error {
		validators, err := c.ValidatorSet.Validators()
		require.NoError(t, err)
		assert.Len(t, validators, 4)
		assert.Contains(t, validators, miningAcc.Address)

		total, err := c.Staking.StakeAmountTotal(stakingAcc.Address)
		require.NoError(t, err)
		initial := new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))
		assert.Equal(t, 1, total.Cmp(initial), "rewards restaked")

		payout, err := c.BlockReward.EpochPayout(0)
		require.NoError(t, err)
		assert.Equal(t, 1, payout.Sign())
		return nil
	}))
}

func TestSilentValidatorDropped(t *testing.T) {
	_, silent := genesis.DevNode(3)
	n, _ := newNode(t, 4, node.Options{
		Behaviors: map[hbbft.Address]node.Behavior{silent.Address: node.SilentKeyGen},
	})

	stepUntilEpoch(t, n, 1, 100)
	require.NoError(t, n.View(func(c *builtin.Contracts) error {
		validators, err := c.ValidatorSet.Validators()
		require.NoError(t, err)
		assert.Len(t, validators, 3)
		assert.NotContains(t, validators, silent.Address)

		window, err := c.Staking.KeyGenExtraTimeWindow()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), window, "reset by the new epoch")
		return nil
	}))
}

func TestOfflineValidatorNeverAnnounces(t *testing.T) {
	_, offline := genesis.DevNode(1)
	n, _ := newNode(t, 4, node.Options{
		Behaviors: map[hbbft.Address]node.Behavior{offline.Address: node.Offline},
	})
	stepUntilEpoch(t, n, 1, 100)

	require.NoError(t, n.View(func(c *builtin.Contracts) error {
		available, err := c.ValidatorSet.IsValidatorAvailable(offline.Address)
		require.NoError(t, err)
		assert.False(t, available)
		is, err := c.ValidatorSet.IsValidator(offline.Address)
		require.NoError(t, err)
		assert.False(t, is)
		return nil
	}))
}

func TestProverSeeds(t *testing.T) {
	n, _ := newNode(t, 1, node.Options{Prover: genesis.DevAccounts()[0].PrivateKey})

	seen := make(map[hbbft.Bytes32]bool)
	for i := 0; i < 5; i++ {
		require.NoError(t, n.Step())
		require.NoError(t, n.View(func(c *builtin.Contracts) error {
			seed, err := c.Random.CurrentSeed()
			require.NoError(t, err)
			assert.False(t, seen[seed], "seed repeated")
			seen[seed] = true

			updated, err := c.Random.SeedUpdateBlock()
			require.NoError(t, err)
			assert.Equal(t, n.Head().Number, updated)
			return nil
		}))
	}
}

func TestWrongProver(t *testing.T) {
	n, _ := newNode(t, 1, node.Options{Prover: genesis.DevAccounts()[2].PrivateKey})
	assert.Error(t, n.Step())
}

func TestReopen(t *testing.T) {
	n, db := newNode(t, 2, node.Options{})
	require.NoError(t, n.Run(context.Background(), 5))
	head := n.Head()

	reopened, err := node.New(db, n.Genesis(), node.Options{})
	require.NoError(t, err)
	assert.Equal(t, head, reopened.Head())
	require.NoError(t, reopened.Step())
	assert.Equal(t, head.Number+1, reopened.Head().Number)
}

func TestNewHeadWaiter(t *testing.T) {
	n, _ := newNode(t, 1, node.Options{})
	w := n.NewHeadWaiter()
	require.NoError(t, n.Step())
	select {
	case <-w.C():
	default:
		t.Fatal("waiter not signaled")
	}
}

func TestRunCanceled(t *testing.T) {
	n, _ := newNode(t, 1, node.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Run(ctx, 0), context.Canceled)
	assert.Equal(t, uint64(0), n.Head().Number)
}

func TestParseBehavior(t *testing.T) {
	for _, b := range []node.Behavior{node.Honest, node.SilentKeyGen, node.Offline} {
		parsed, err := node.ParseBehavior(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, parsed)
	}
	_, err := node.ParseBehavior("byzantine")
	assert.Error(t, err)
}

var errDiskFull = errors.New("disk full")

// brokenStore fails every bulk write while broken is set.
type brokenStore struct {
	kv.Store
	broken atomic.Bool
}

func (s *brokenStore) Bulk() kv.Bulk {
	return &brokenBulk{Bulk: s.Store.Bulk(), broken: &s.broken}
}

type brokenBulk struct {
	kv.Bulk
	broken *atomic.Bool
}

func (b *brokenBulk) Write() error {
	if b.broken.Load() {
		return errDiskFull
	}
	return b.Bulk.Write()
}

func epochBlocks(t *testing.T, n *node.Node, epoch uint64) (blocks uint64) {
	require.NoError(t, n.View(func(c *builtin.Contracts) (err error) {
		blocks, err = c.BlockReward.EpochBlocks(epoch)
		return
	}))
	return
}

func TestFailedStepLeavesNoBlock(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()
	store := &brokenStore{Store: db}

	gene, err := genesis.NewFromSpec(shortSpec(4))
	require.NoError(t, err)
	n, err := node.New(store, gene, node.Options{})
	require.NoError(t, err)
	require.NoError(t, n.Step())
	head := n.Head()
	blocks := epochBlocks(t, n, 0)

	store.broken.Store(true)
	assert.ErrorIs(t, n.Step(), errDiskFull)
	assert.Equal(t, head, n.Head())
	assert.Equal(t, blocks, epochBlocks(t, n, 0))

	reopened, err := node.New(db, gene, node.Options{})
	require.NoError(t, err)
	assert.Equal(t, head, reopened.Head())
	assert.Equal(t, blocks, epochBlocks(t, reopened, 0))

	store.broken.Store(false)
	require.NoError(t, n.Step())
	assert.Equal(t, head.Number+1, n.Head().Number)
	assert.Equal(t, blocks+1, epochBlocks(t, n, 0))
}
