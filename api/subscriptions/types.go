// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// BeatMessage is pushed for every new head: the block plus the epoch state after it.
type BeatMessage struct {
	Number       uint64        `json:"number"`
	Hash         hbbft.Bytes32 `json:"hash"`
	Time         uint64        `json:"time"`
	Author       hbbft.Address `json:"author"`
	StakingEpoch uint64        `json:"stakingEpoch"`
	Phase        string        `json:"phase"`
	KeyGenRound  uint64        `json:"keyGenRound"`
	Validators   int           `json:"validators"`
	Pending      int           `json:"pending"`
	Seed         hbbft.Bytes32 `json:"seed"`
}

func convertBeat(head chain.Header, c *builtin.Contracts) (*BeatMessage, error) {
	info, err := c.ValidatorSet.EpochInfo()
	if err != nil {
		return nil, err
	}
	seed, err := c.Random.CurrentSeed()
	if err != nil {
		return nil, err
	}
	return &BeatMessage{
		Number:       head.Number,
		Hash:         head.Hash(),
		Time:         head.Time,
		Author:       head.Author,
		StakingEpoch: info.StakingEpoch,
		Phase:        info.Phase.String(),
		KeyGenRound:  info.KeyGenRound,
		Validators:   len(info.Validators),
		Pending:      len(info.PendingValidators),
		Seed:         seed,
	}, nil
}
