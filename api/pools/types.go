// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"net"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/staking"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

type JSONPool struct {
	Address       hbbft.Address         `json:"address"`
	Mining        hbbft.Address         `json:"mining"`
	Status        string                `json:"status"`
	Operator      hbbft.Address         `json:"operator"`
	OperatorShare uint64                `json:"operatorShare"`
	PublicKey     hexutil.Bytes         `json:"publicKey"`
	IP            string                `json:"ip"`
	Port          uint64                `json:"port"`
	TotalStake    *math.HexOrDecimal256 `json:"totalStake"`
	Delegators    []hbbft.Address       `json:"delegators"`
	Snapshot      *JSONSnapshot         `json:"snapshot"`
}

type JSONSnapshot struct {
	Epoch           uint64                  `json:"epoch"`
	ValidatorStake  *math.HexOrDecimal256   `json:"validatorStake"`
	TotalStake      *math.HexOrDecimal256   `json:"totalStake"`
	Delegators      []hbbft.Address         `json:"delegators"`
	DelegatorStakes []*math.HexOrDecimal256 `json:"delegatorStakes"`
}

type JSONStaker struct {
	Pool                    hbbft.Address         `json:"pool"`
	Staker                  hbbft.Address         `json:"staker"`
	Stake                   *math.HexOrDecimal256 `json:"stake"`
	StakeThisEpoch          *math.HexOrDecimal256 `json:"stakeThisEpoch"`
	OrderedWithdraw         *math.HexOrDecimal256 `json:"orderedWithdraw"`
	OrderedWithdrawEpoch    uint64                `json:"orderedWithdrawEpoch"`
	MaxWithdrawAllowed      *math.HexOrDecimal256 `json:"maxWithdrawAllowed"`
	MaxWithdrawOrderAllowed *math.HexOrDecimal256 `json:"maxWithdrawOrderAllowed"`
}

type JSONCandidate struct {
	Pool       hbbft.Address         `json:"pool"`
	Likelihood *math.HexOrDecimal256 `json:"likelihood"`
}

type JSONLikelihood struct {
	Candidates []*JSONCandidate      `json:"candidates"`
	Sum        *math.HexOrDecimal256 `json:"sum"`
}

func convertSnapshot(epoch uint64, s *staking.Snapshot) *JSONSnapshot {
	if s == nil || !s.Taken {
		return nil
	}
	return &JSONSnapshot{
		Epoch:           epoch,
		ValidatorStake:  utils.Amount(s.ValidatorStake),
		TotalStake:      utils.Amount(s.TotalStake),
		Delegators:      s.Delegators,
		DelegatorStakes: utils.Amounts(s.DelegatorStakes),
	}
}

func formatIP(ip []byte) string {
	if len(ip) != net.IPv6len {
		return ""
	}
	if net.IP(ip).IsUnspecified() {
		return ""
	}
	return net.IP(ip).String()
}
