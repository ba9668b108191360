// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epoch

import (
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/validatorset"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

type JSONEpoch struct {
	Number                    uint64          `json:"number"`
	StartTime                 uint64          `json:"startTime"`
	FixedEndTime              uint64          `json:"fixedEndTime"`
	TransitionTimeframeLength uint64          `json:"transitionTimeframeLength"`
	KeyGenExtraTimeWindow     uint64          `json:"keyGenExtraTimeWindow"`
	KeyGenRound               uint64          `json:"keyGenRound"`
	KeyGenDeadline            uint64          `json:"keyGenDeadline"`
	EarlyEndTriggerTime       uint64          `json:"earlyEndTriggerTime"`
	EarlyEndTime              uint64          `json:"earlyEndTime"`
	Phase                     string          `json:"phase"`
	Validators                []hbbft.Address `json:"validators"`
	PendingValidators         []hbbft.Address `json:"pendingValidators"`
}

func convertEpoch(info *validatorset.EpochInfo) *JSONEpoch {
	return &JSONEpoch{
		Number:                    info.StakingEpoch,
		StartTime:                 info.EpochStartTime,
		FixedEndTime:              info.FixedEpochEndTime,
		TransitionTimeframeLength: info.TransitionTimeframeLength,
		KeyGenExtraTimeWindow:     info.KeyGenExtraTimeWindow,
		KeyGenRound:               info.KeyGenRound,
		KeyGenDeadline:            info.KeyGenDeadline,
		EarlyEndTriggerTime:       info.EarlyEpochEndTriggerTime,
		EarlyEndTime:              info.EarlyEpochEndTime,
		Phase:                     info.Phase.String(),
		Validators:                nonNil(info.Validators),
		PendingValidators:         nonNil(info.PendingValidators),
	}
}

func nonNil(addrs []hbbft.Address) []hbbft.Address {
	if addrs == nil {
		return []hbbft.Address{}
	}
	return addrs
}

// JSONKeyGen is the progress of the running key generation round.
type JSONKeyGen struct {
	Epoch   uint64             `json:"epoch"`
	Round   uint64             `json:"round"`
	Parts   uint64             `json:"parts"`
	Acks    uint64             `json:"acks"`
	Writers []*JSONKeyGenWrite `json:"writers"`
}

type JSONKeyGenWrite struct {
	Validator hbbft.Address `json:"validator"`
	PartSize  int           `json:"partSize"`
	Acks      int           `json:"acks"`
}
