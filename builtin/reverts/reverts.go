// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
)

// Kind classifies why an operation was rejected.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindValidation
	KindTiming
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindTiming:
		return "timing"
	default:
		return "unknown"
	}
}

// ErrRevert rejects an operation without changing state.
type ErrRevert struct {
	kind    Kind
	message string
}

func New(kind Kind, message string) *ErrRevert {
	return &ErrRevert{
		kind:    kind,
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// KindOf returns the kind of the revert wrapped in err, or KindUnknown.
func KindOf(err error) Kind {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.kind
	}
	return KindUnknown
}

// authorization
var (
	ErrUnauthorized               = New(KindAuthorization, "unauthorized")
	ErrOwnableUnauthorizedAccount = New(KindAuthorization, "ownable: unauthorized account")
	ErrAlreadyGranted             = New(KindAuthorization, "capability already granted")
	ErrNotPendingValidator        = New(KindAuthorization, "not a pending validator")
	ErrNotCurrentValidator        = New(KindAuthorization, "not a current validator")
	ErrNotPoolOwner               = New(KindAuthorization, "not the pool owner")
)

// validation
var (
	ErrInsufficientStakeAmount = New(KindValidation, "insufficient stake amount")
	ErrPoolStakeLimitExceeded  = New(KindValidation, "pool stake limit exceeded")
	ErrZeroAddress             = New(KindValidation, "zero address")
	ErrZeroAmount              = New(KindValidation, "zero amount")
	ErrPoolNotExist            = New(KindValidation, "pool does not exist")
	ErrPoolAbandoned           = New(KindValidation, "pool abandoned")
	ErrPoolInactive            = New(KindValidation, "pool inactive")
	ErrPoolAlreadyExists       = New(KindValidation, "pool already exists")
	ErrMiningAddressUsed       = New(KindValidation, "mining address already used")
	ErrStakingAddressUsed      = New(KindValidation, "staking address already used as mining address")
	ErrMaxWithdrawExceeded     = New(KindValidation, "max allowed withdraw exceeded")
	ErrNoOrderedWithdraw       = New(KindValidation, "no ordered withdraw")
	ErrNoStakesToRecover       = New(KindValidation, "no stakes to recover")
	ErrInvalidNodeOperatorFee  = New(KindValidation, "invalid node operator share")
	ErrInvalidPublicKey        = New(KindValidation, "invalid public key")
	ErrInvalidIPAddress        = New(KindValidation, "invalid ip address")
	ErrIncorrectEpoch          = New(KindValidation, "incorrect epoch")
	ErrIncorrectRound          = New(KindValidation, "incorrect round")
	ErrEmptyPayload            = New(KindValidation, "empty payload")
	ErrPartsAlreadySubmitted   = New(KindValidation, "parts already submitted")
	ErrAcksAlreadySubmitted    = New(KindValidation, "acks already submitted")
	ErrInvalidAnnounceBlockNum = New(KindValidation, "invalid announce block number")
	ErrInvalidAnnounceHash     = New(KindValidation, "invalid announce block hash")
	ErrValidatorBanned         = New(KindValidation, "validator banned")
	ErrInvalidProof            = New(KindValidation, "invalid seed proof")
	ErrAlreadyReported         = New(KindValidation, "already reported")
	ErrUnknownReport           = New(KindValidation, "no such report")
	ErrSamePool                = New(KindValidation, "source and destination pools are the same")
)

// timing
var (
	ErrWithdrawNotAllowed      = New(KindTiming, "stake and withdraw not allowed at this time")
	ErrClaimTooEarly           = New(KindTiming, "ordered withdraw not yet claimable")
	ErrAnnounceBlockTooOld     = New(KindTiming, "announce block number too old")
	ErrRecoveryNotAllowed      = New(KindTiming, "stakes are not recoverable yet")
	ErrEarlyEpochEndIneligible = New(KindTiming, "early epoch end not eligible")
)
