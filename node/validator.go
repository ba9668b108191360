// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/reverts"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Behavior of a simulated validator node.
type Behavior uint8

const (
	// Honest announces availability and takes part in every key generation round.
	Honest Behavior = iota
	// SilentKeyGen announces availability but never writes parts or acks.
	SilentKeyGen
	// Offline does nothing.
	Offline
)

func (b Behavior) String() string {
	switch b {
	case Honest:
		return "honest"
	case SilentKeyGen:
		return "silent-keygen"
	case Offline:
		return "offline"
	default:
		return fmt.Sprintf("behavior(%d)", uint8(b))
	}
}

// ParseBehavior parses the String form of a behavior.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(s) {
	case "honest":
		return Honest, nil
	case "silent-keygen":
		return SilentKeyGen, nil
	case "offline":
		return Offline, nil
	}
	return Honest, errors.Errorf("unknown behavior %q", s)
}

func (n *Node) behavior(mining hbbft.Address) Behavior {
	return n.opts.Behaviors[mining]
}

// actAll plays every node operating a pool.
func (n *Node) actAll(c *builtin.Contracts) error {
	pools, err := c.Staking.AllPools()
	if err != nil {
		return err
	}
	for _, pool := range pools {
		mining, err := c.Staking.MiningByStaking(pool)
		if err != nil {
			return err
		}
		if err := n.act(c, mining); err != nil {
			return errors.Wrapf(err, "node %v", mining)
		}
	}
	return nil
}

// act submits what the node would send in the current block. Reverted calls are
// counted and skipped, the way a rejected transaction would be.
func (n *Node) act(c *builtin.Contracts, mining hbbft.Address) error {
	behavior := n.behavior(mining)
	if behavior == Offline {
		return nil
	}
	if err := n.announce(c, mining); err != nil {
		return err
	}
	if behavior == SilentKeyGen {
		return nil
	}
	return n.writeKeys(c, mining)
}

func observe(action string, err error) error {
	switch {
	case err == nil:
		metricNodeAction().AddWithLabel(1, map[string]string{"action": action, "result": "ok"})
		return nil
	case reverts.IsRevertErr(err):
		metricNodeAction().AddWithLabel(1, map[string]string{"action": action, "result": "reverted"})
		logger.Debug("call reverted", "action", action, "err", err)
		return nil
	default:
		return err
	}
}

func (n *Node) announce(c *builtin.Contracts, mining hbbft.Address) error {
	available, err := c.ValidatorSet.IsValidatorAvailable(mining)
	if err != nil || available {
		return err
	}
	banned, err := c.ValidatorSet.IsValidatorBanned(mining)
	if err != nil || banned {
		return err
	}
	pool, err := c.Staking.StakingByMining(mining)
	if err != nil {
		return err
	}
	if p, err := c.Staking.Pool(pool); err != nil {
		return err
	} else if p.Abandoned {
		return nil
	}

	ref := n.chain.Current().Number - 1
	hash, _, err := n.chain.BlockHash(ref)
	if err != nil {
		return err
	}
	return observe("announce", c.ValidatorSet.AnnounceAvailability(mining, ref, hash))
}

func (n *Node) writeKeys(c *builtin.Contracts, mining hbbft.Address) error {
	pending, err := c.ValidatorSet.IsPendingValidator(mining)
	if err != nil || !pending {
		return err
	}
	epoch, err := c.Staking.StakingEpoch()
	if err != nil {
		return err
	}
	round, err := c.KeyGen.CurrentKeyGenRound()
	if err != nil {
		return err
	}
	seed := hbbft.Keccak256(mining.Bytes(), hbbft.Uint64ToBytes32(epoch+1).Bytes(), hbbft.Uint64ToBytes32(round).Bytes())

	part, err := c.KeyGen.Part(mining)
	if err != nil {
		return err
	}
	if len(part) == 0 {
		if err := observe("part", c.KeyGen.WritePart(mining, epoch+1, round, seed.Bytes())); err != nil {
			return err
		}
	}
	acks, err := c.KeyGen.AcksLength(mining)
	if err != nil {
		return err
	}
	if acks == 0 {
		ack := hbbft.Keccak256(seed.Bytes())
		return observe("acks", c.KeyGen.WriteAcks(mining, epoch+1, round, [][]byte{ack.Bytes()}))
	}
	return nil
}
