// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node drives a simulated HBBFT network: it appends blocks, makes the per-block
// system calls and plays the validator nodes against the builtin contracts.
package node

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/random"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/co"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	"github.com/DMDcoin/diamond-contracts-core-sub000/state"
)

var logger = log.WithContext("pkg", "node")

var (
	metricBlocks     = metrics.LazyLoadCounter("node_blocks_count")
	metricStepTime   = metrics.LazyLoadHistogram("node_step_duration_ms", metrics.Bucket10s)
	metricNodeAction = metrics.LazyLoadCounterVec("node_actions_count", []string{"action", "result"})
)

const stateStoreName = "state"

// Options for Node.
type Options struct {
	// seconds between blocks
	BlockInterval uint64
	// real time to wait between blocks in Run, zero runs as fast as possible
	Pace time.Duration
	// VRF key advancing the seed; without it the seed is hashed with the parent block
	Prover *ecdsa.PrivateKey
	// behavior per mining address, Honest when absent
	Behaviors map[hbbft.Address]Behavior
}

// Node is the abstraction of a simulated network.
type Node struct {
	opts    Options
	gene    *genesis.Genesis
	system  hbbft.Address
	chain   *chain.Chain
	db      kv.Store
	stateDB kv.Store

	mu      sync.RWMutex
	newHead co.Signal
}

// New opens the network kept in db, writing the genesis state if db is empty.
func New(db kv.Store, gene *genesis.Genesis, opts Options) (*Node, error) {
	if opts.BlockInterval == 0 {
		opts.BlockInterval = 5
	}
	c, err := chain.New(db, chain.Header{Time: gene.LaunchTime()})
	if err != nil {
		return nil, errors.Wrap(err, "open chain")
	}
	n := &Node{
		opts:    opts,
		gene:    gene,
		system:  gene.Config().BlockReward.SystemAddress,
		chain:   c,
		db:      db,
		stateDB: kv.Bucket(stateStoreName).NewStore(db),
	}
	if err := n.initGenesis(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) initGenesis() error {
	head := n.chain.Head()
	if head.Number != 0 {
		return nil
	}
	st := state.New(n.stateDB)
	contracts, err := builtin.New(st, n.chain, n.gene.Config())
	if err != nil {
		return err
	}
	start, err := contracts.Staking.EpochStartTime()
	if err != nil {
		return err
	}
	if start != 0 {
		return nil
	}
	if _, err := n.gene.Build(st, n.chain); err != nil {
		return errors.Wrap(err, "build genesis")
	}
	if err := n.commit(st); err != nil {
		return errors.Wrap(err, "commit genesis")
	}
	logger.Info("genesis written", "name", n.gene.Name(), "id", n.gene.ID().AbbrevString())
	return nil
}

func (n *Node) commit(st *state.State) error {
	stage := st.Stage()
	if err := stage.Commit(n.stateDB.Bulk()); err != nil {
		return err
	}
	logger.Trace("state committed", "slots", stage.Len(), "hash", stage.Hash().AbbrevString())
	return nil
}

// commitBlock writes the proposed header and the state changes in one bulk.
func (n *Node) commitBlock(st *state.State) error {
	bulk := n.db.Bulk()
	if err := n.chain.Stage(bulk); err != nil {
		return err
	}
	stage := st.Stage()
	if err := stage.Commit(kv.Bucket(stateStoreName).NewBulk(bulk)); err != nil {
		return err
	}
	n.chain.MarkCommitted()
	logger.Trace("block committed", "slots", stage.Len(), "hash", stage.Hash().AbbrevString())
	return nil
}

// Genesis returns the genesis the network was created with.
func (n *Node) Genesis() *genesis.Genesis {
	return n.gene
}

// Head returns the latest block.
func (n *Node) Head() chain.Header {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chain.Head()
}

// NewHeadWaiter returns a waiter signaled on every new block.
func (n *Node) NewHeadWaiter() co.Waiter {
	return n.newHead.NewWaiter()
}

// View runs fn against the contracts at the latest block. Writes fn makes are dropped.
func (n *Node) View(fn func(c *builtin.Contracts) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	contracts, err := builtin.New(state.New(n.stateDB), n.chain, n.gene.Config())
	if err != nil {
		return err
	}
	return fn(contracts)
}

// Step produces one block.
func (n *Node) Step() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	startTime := time.Now()
	st := state.New(n.stateDB)
	contracts, err := builtin.New(st, n.chain, n.gene.Config())
	if err != nil {
		return err
	}
	author, err := n.nextAuthor(contracts)
	if err != nil {
		return err
	}
	parent := n.chain.Current()
	head, err := n.chain.Propose(parent.Time+n.opts.BlockInterval, author)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			n.chain.Rollback()
		}
	}()

	if err := n.advanceSeed(contracts); err != nil {
		return errors.Wrap(err, "advance seed")
	}
	phase, err := contracts.ValidatorSet.Phase()
	if err != nil {
		return err
	}
	epoch, err := contracts.Staking.StakingEpoch()
	if err != nil {
		return err
	}
	if err := contracts.BlockReward.OnBlock(n.system, phase == validatorset.PhaseFinalizing); err != nil {
		return errors.Wrap(err, "block reward")
	}
	if next, err := contracts.Staking.StakingEpoch(); err != nil {
		return err
	} else if next != epoch {
		n.recover(contracts)
	}

	if err := n.actAll(contracts); err != nil {
		return err
	}
	if err := n.commitBlock(st); err != nil {
		return errors.Wrap(err, "commit block")
	}
	committed = true

	metricBlocks().Add(1)
	metricStepTime().Observe(time.Since(startTime).Milliseconds())
	logger.Debug("block produced", "number", head.Number, "time", head.Time, "author", author, "phase", phase)
	n.newHead.Broadcast()
	return nil
}

// nextAuthor picks the current validators in turn.
func (n *Node) nextAuthor(c *builtin.Contracts) (hbbft.Address, error) {
	validators, err := c.ValidatorSet.Validators()
	if err != nil || len(validators) == 0 {
		return hbbft.Address{}, err
	}
	return validators[(n.chain.Current().Number+1)%uint64(len(validators))], nil
}

func (n *Node) advanceSeed(c *builtin.Contracts) error {
	current, err := c.Random.CurrentSeed()
	if err != nil {
		return err
	}
	if n.opts.Prover == nil {
		parent, _, err := n.chain.BlockHash(n.chain.Current().Number - 1)
		if err != nil {
			return err
		}
		return c.Random.SetCurrentSeed(n.system, hbbft.Keccak256(current.Bytes(), parent.Bytes()))
	}
	proof, err := random.Prove(n.opts.Prover, current)
	if err != nil {
		return err
	}
	return c.Random.SetCurrentSeedWithProof(n.system, proof)
}

// recover confiscates abandoned pools once per epoch, like any account may.
func (n *Node) recover(c *builtin.Contracts) {
	amount, err := c.Staking.RecoverAbandonedStakes()
	switch {
	case errors.Is(err, reverts.ErrNoStakesToRecover):
	case err != nil:
		logger.Warn("recover abandoned stakes", "err", err)
	default:
		logger.Info("abandoned stakes recovered", "amount", amount)
	}
}

// Run produces blocks until count blocks were made or ctx is canceled. A zero count runs until canceled.
func (n *Node) Run(ctx context.Context, count uint64) error {
	for i := uint64(0); count == 0 || i < count; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := n.Step(); err != nil {
			return errors.Wrapf(err, "block %d", n.Head().Number+1)
		}
		if n.opts.Pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.opts.Pace):
			}
		}
	}
	return nil
}
