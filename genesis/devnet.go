// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// DevAccount account for development.
type DevAccount struct {
	Address    hbbft.Address
	PrivateKey *ecdsa.PrivateKey
}

var devAccounts atomic.Value

// DevAccounts returns pre-alloced accounts for development networks.
func DevAccounts() []DevAccount {
	if accs := devAccounts.Load(); accs != nil {
		return accs.([]DevAccount)
	}

	var accs []DevAccount
	privKeys := []string{
		"dce1443bd2ef0c2631adc1c67e5c93f13dc23a41c18b536effbbdcbcdb96fb65",
		"321d6443bc6177273b5abf54210fe806d451d6b7973bccc2384ef78bbcd0bf51",
		"2d7c882bad2a01105e36dda3646693bc1aaaa45b0ed63fb0ce23c060294f3af2",
		"593537225b037191d322c3b1df585fb1e5100811b71a6f7fc7e29cca1333483e",
		"ca7b25fc980c759df5f3ce17a3d881d6e19a38e651fc4315fc08917edab41058",
		"88d2d80b12b92feaa0da6d62309463d20408157723f2d7e799b6a74ead9a673b",
		"fbb9e7ba5fe9969a71c6599052237b91adeb1e5fc0c96727b66e56ff5d02f9d0",
		"547fb081e73dc2e22b4aae5c60e2970b008ac4fc3073aebc27d41ace9c4f53e9",
		"c8c53657e41a8d669349fc287f57457bd746cb1fcfc38cf94d235deb2cfca81b",
		"87e0eba9c86c494d98353800571089f316740b0cb84c9a7cdf2fe5c9997c7966",
	}
	for _, str := range privKeys {
		pk, err := crypto.HexToECDSA(str)
		if err != nil {
			panic(err)
		}
		accs = append(accs, DevAccount{hbbft.Address(crypto.PubkeyToAddress(pk.PublicKey)), pk})
	}
	devAccounts.Store(accs)
	return accs
}

// DevNode returns the deterministic staking and mining accounts of the i-th development node.
func DevNode(i int) (stakingAcc, miningAcc DevAccount) {
	derive := func(role string) DevAccount {
		seed := hbbft.Keccak256([]byte(fmt.Sprintf("dev-%s-%d", role, i)))
		pk, err := crypto.ToECDSA(seed.Bytes())
		if err != nil {
			panic(err)
		}
		return DevAccount{hbbft.Address(crypto.PubkeyToAddress(pk.PublicKey)), pk}
	}
	return derive("staking"), derive("mining")
}

// DevLaunchTime is the genesis time of development networks.
const DevLaunchTime = uint64(1735689600) // 2025-01-01T00:00:00Z

// DevSpec describes a development network with the given number of validator nodes.
// The first dev account is the system account and VRF prover, the second one governance.
func DevSpec(validators int) *Spec {
	coin := big.NewInt(1e18)
	accs := DevAccounts()

	var (
		epoch     = uint64(60 * 60)
		timeframe = uint64(60)
		disallow  = uint64(5 * 60)
		share     = uint64(2000)
	)
	spec := &Spec{
		Name:            "devnet",
		LaunchTime:      DevLaunchTime,
		SystemAddress:   accs[0].Address,
		Governance:      accs[1].Address,
		Owner:           accs[1].Address,
		Seed:            hbbft.Keccak256([]byte("devnet")),
		ProverPublicKey: hexutil.Encode(crypto.CompressPubkey(&accs[0].PrivateKey.PublicKey)),
		DeltaPot:        NewAmount(new(big.Int).Mul(big.NewInt(1_000_000), coin)),
		Staking: StakingParams{
			FixedEpochDuration:        &epoch,
			TransitionTimeframeLength: &timeframe,
			WithdrawDisallowPeriod:    &disallow,
			MaxNodeOperatorShare:      &share,
		},
	}
	for i := 0; i < validators; i++ {
		stakingAcc, miningAcc := DevNode(i)
		spec.Pools = append(spec.Pools, Pool{
			Staking:   stakingAcc.Address,
			Mining:    miningAcc.Address,
			Stake:     NewAmount(new(big.Int).Mul(big.NewInt(10_000), coin)),
			PublicKey: hexutil.Encode(crypto.FromECDSAPub(&miningAcc.PrivateKey.PublicKey)[1:]),
			IP:        fmt.Sprintf("10.0.0.%d", i+1),
			Port:      30303,
			Validator: true,
		})
	}
	return spec
}

// NewDevnet create genesis for a development network.
func NewDevnet(validators int) (*Genesis, error) {
	return NewFromSpec(DevSpec(validators))
}
