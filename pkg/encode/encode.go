// Package encode converts chain-native recipient addresses to and from the 32-byte form
// the token bridge carries.
package encode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const TerraHRP = "terra"

var ErrUnsupportedChain = errors.New("no address encoder for chain")

// Encoder turns a human-readable address into a recipient.
type Encoder func(addr string) (vaa.Address, error)

// ForChain returns the encoder for recipients on chain.
func ForChain(chain vaa.ChainID) (Encoder, error) {
	switch chain {
	case vaa.ChainIDTerra, vaa.ChainIDTerra2:
		return TerraAddress, nil
	case vaa.ChainIDSolana:
		return SolanaAddress, nil
	case vaa.ChainIDEthereum, vaa.ChainIDBSC, vaa.ChainIDPolygon, vaa.ChainIDAvalanche,
		vaa.ChainIDFantom, vaa.ChainIDArbitrum, vaa.ChainIDOptimism, vaa.ChainIDBase:
		return EVMAddress, nil
	default:
		return nil, fmt.Errorf("%w %s", ErrUnsupportedChain, chain)
	}
}

// Address encodes addr for chain.
func Address(chain vaa.ChainID, addr string) (vaa.Address, error) {
	enc, err := ForChain(chain)
	if err != nil {
		return vaa.Address{}, err
	}
	return enc(addr)
}

// TerraAddress decodes a bech32 terra1... account and left-pads it to 32 bytes.
func TerraAddress(s string) (vaa.Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid bech32 address %q: %w", s, err)
	}
	if hrp != TerraHRP {
		return vaa.Address{}, fmt.Errorf("unexpected bech32 prefix %q, want %q", hrp, TerraHRP)
	}
	b, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	return leftPadAddress(b)
}

// SolanaAddress decodes a base58 public key, which must be exactly 32 bytes.
func SolanaAddress(s string) (vaa.Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid base58 address %q: %w", s, err)
	}
	if len(b) != 32 {
		return vaa.Address{}, fmt.Errorf("solana address must be 32 bytes, got %d", len(b))
	}
	var a vaa.Address
	copy(a[:], b)
	return a, nil
}

// EVMAddress decodes a 0x-prefixed 20-byte hex address.
func EVMAddress(s string) (vaa.Address, error) {
	if !common.IsHexAddress(s) {
		return vaa.Address{}, fmt.Errorf("invalid hex address %q", s)
	}
	return leftPadAddress(common.HexToAddress(s).Bytes())
}

// Decode renders a recipient in the native form of chain.
func Decode(chain vaa.ChainID, a vaa.Address) (string, error) {
	switch chain {
	case vaa.ChainIDTerra, vaa.ChainIDTerra2:
		conv, err := bech32.ConvertBits(trimPadding(a, 20), 8, 5, true)
		if err != nil {
			return "", err
		}
		return bech32.Encode(TerraHRP, conv)
	case vaa.ChainIDSolana:
		return base58.Encode(a[:]), nil
	default:
		if _, err := ForChain(chain); err != nil {
			return "", err
		}
		return common.BytesToAddress(a[12:]).Hex(), nil
	}
}

// Parse tries bech32, base58 and hex in turn. Only 32-byte base58 strings are accepted.
func Parse(s string) (vaa.Address, error) {
	if hrp, data, err := bech32.Decode(s); err == nil && hrp != "" {
		b, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return vaa.Address{}, err
		}
		return leftPadAddress(b)
	}

	if b, err := base58.Decode(s); err == nil && len(b) == 32 {
		return leftPadAddress(b)
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid hex address: %w", err)
	}
	return leftPadAddress(b)
}

// ParseChainID parses a chain name such as "terra" or a numeric chain ID.
func ParseChainID(name string) (vaa.ChainID, error) {
	if c, err := vaa.ChainIDFromString(name); err == nil {
		return c, nil
	}

	i, err := strconv.ParseUint(name, 10, 16)
	if err != nil {
		return vaa.ChainIDUnset, fmt.Errorf("failed to parse %q as chain name or id: %w", name, err)
	}
	return vaa.ChainID(i), nil
}

func leftPadAddress(b []byte) (vaa.Address, error) {
	if len(b) > 32 {
		return vaa.Address{}, fmt.Errorf("address longer than 32 bytes")
	}
	var a vaa.Address
	copy(a[:], common.LeftPadBytes(b, 32))
	return a, nil
}

// trimPadding strips left padding down to n bytes, keeping all 32 when the high bytes are
// in use.
func trimPadding(a vaa.Address, n int) []byte {
	for _, b := range a[:32-n] {
		if b != 0 {
			return a[:]
		}
	}
	return a[32-n:]
}
