package devnet

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestDeterministicEcdsaKeyByIndex(t *testing.T) {
	type test struct {
		index      uint64
		privKeyHex string
		address    string
	}

	tests := []test{
		{index: 0, privKeyHex: "739e75cbd22038d827d2ca4de474268b5a0b690d051e00956899507c9b210cc0", address: "0x1e1e94524705519e25af4ebD9A3542231dDA75Df"},
		{index: 1, privKeyHex: "272a3f4ebf8c48b9734853855920abfe7107be48d14372b12ed33451ba5f8316", address: "0x1006943a98Cbf77efFF26543B7759E19D695E35F"},
		{index: 2, privKeyHex: "58f2d96a00aad2eb786d00c2df458008a5e597e5d8455ef51c2abff194a2b7ed", address: "0x3076A6aB8B59cbdbe0A01538f1586b8883D6C76e"},
		{index: 3, privKeyHex: "694238f6eef2f7ef3fad177674f7a116e84a2f2db1fa31eaa6e32eb0568c758b", address: "0xD75e3baE2c28048b6c66ea73AAfa8f8d3D770512"},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.index), func(t *testing.T) {
			privKey := InsecureDeterministicEcdsaKeyByIndex(tc.index)
			assert.Equal(t, tc.privKeyHex, hex.EncodeToString(crypto.FromECDSA(privKey)))
			assert.Equal(t, tc.address, AccountByIndex(tc.index).Hex())
		})
	}
}

func TestWellKnownAccountsArePinned(t *testing.T) {
	assert.Equal(t, "0x1e1e94524705519e25af4ebD9A3542231dDA75Df", Deployer().Hex())
	assert.Equal(t, "0x1006943a98Cbf77efFF26543B7759E19D695E35F", Owner().Hex())
	assert.Equal(t, "0x3076A6aB8B59cbdbe0A01538f1586b8883D6C76e", Keeper().Hex())
	assert.Equal(t, "0xD75e3baE2c28048b6c66ea73AAfa8f8d3D770512", Depositor().Hex())

	// repeated derivation must never drift
	for i := 0; i < 50; i++ {
		assert.Equal(t, Deployer(), AccountByIndex(DeployerIndex))
		assert.Equal(t, Depositor(), AccountByIndex(DepositorIndex))
	}
}

func TestAccountsAreDistinct(t *testing.T) {
	seen := map[common.Address]bool{}
	for _, a := range []common.Address{Deployer(), Owner(), Keeper(), Depositor()} {
		assert.False(t, seen[a], a.Hex())
		seen[a] = true
	}
}
