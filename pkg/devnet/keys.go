// Package devnet contains the deterministic accounts and the bootstrap of the local devnet
// ledger the node serves.
package devnet

import (
	"crypto/ecdsa"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known devnet account indices.
const (
	DeployerIndex uint64 = iota
	OwnerIndex
	KeeperIndex
	DepositorIndex
)

const keyDomain = "jumpgate-devnet-key"

var (
	deployer  = AccountByIndex(DeployerIndex)
	owner     = AccountByIndex(OwnerIndex)
	keeper    = AccountByIndex(KeeperIndex)
	depositor = AccountByIndex(DepositorIndex)
)

// InsecureDeterministicEcdsaKeyByIndex derives the secp256k1 key idx as
// keccak256("jumpgate-devnet-key" || uint64be(idx)). Devnet keys are public knowledge.
func InsecureDeterministicEcdsaKeyByIndex(idx uint64) *ecdsa.PrivateKey {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], idx)
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(keyDomain), b[:]))
	if err != nil {
		panic(err)
	}
	return key
}

// AccountByIndex is the address of the deterministic key idx.
func AccountByIndex(idx uint64) common.Address {
	return crypto.PubkeyToAddress(InsecureDeterministicEcdsaKeyByIndex(idx).PublicKey)
}

func Deployer() common.Address  { return deployer }
func Owner() common.Address     { return owner }
func Keeper() common.Address    { return keeper }
func Depositor() common.Address { return depositor }
