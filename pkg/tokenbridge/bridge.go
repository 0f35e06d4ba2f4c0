package tokenbridge

import (
	"errors"
	"fmt"

	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	// Finality is the consistency level the token bridge requests for every transfer.
	Finality uint8 = 15

	// normalizedDecimals is the precision amounts are carried with on the wire.
	normalizedDecimals = 8
)

var (
	ErrInvalidRecipientChain = errors.New("invalid recipient chain")
	ErrFeeExceedsAmount      = errors.New("fee exceeds amount")
	ErrZeroAmount            = errors.New("truncated amount must not be 0")
)

// TokenBridge is the Wormhole token bridge. Native tokens are locked in the bridge and a
// transfer message is published through the core contract.
type TokenBridge struct {
	address common.Address
	core    *Core
}

func DeployTokenBridge(tx *ledger.Tx, deployer common.Address, core *Core) (*TokenBridge, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (ledger.Contract, error) {
		return &TokenBridge{address: addr, core: core}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*TokenBridge), nil
}

func (b *TokenBridge) Address() common.Address { return b.address }
func (b *TokenBridge) Core() *Core             { return b.core }
func (b *TokenBridge) ChainID() vaa.ChainID    { return b.core.ChainID() }

// TransferTokens pulls amount of token from caller (which must have approved the bridge),
// locks it and publishes a transfer message. It returns the message sequence.
//
// The amount published is what the bridge actually received, normalized to 8 decimals.
// The part of the pull below that precision stays locked in the bridge.
func (b *TokenBridge) TransferTokens(
	tx *ledger.Tx,
	caller common.Address,
	token common.Address,
	amount *uint256.Int,
	recipientChain vaa.ChainID,
	recipient vaa.Address,
	arbiterFee *uint256.Int,
	nonce uint32,
) (uint64, error) {
	if recipientChain == vaa.ChainIDUnset || recipientChain == b.ChainID() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRecipientChain, recipientChain)
	}

	erc20, err := ledger.FungibleAt(tx, token)
	if err != nil {
		return 0, err
	}

	before := erc20.BalanceOf(tx, b.address)
	if err := erc20.TransferFrom(tx, b.address, caller, b.address, amount); err != nil {
		return 0, err
	}
	received := new(uint256.Int).Sub(erc20.BalanceOf(tx, b.address), before)

	normalizedAmount := normalize(received, erc20.Decimals())
	normalizedFee := normalize(arbiterFee, erc20.Decimals())
	if normalizedAmount.IsZero() {
		return 0, ErrZeroAmount
	}
	if normalizedFee.Gt(normalizedAmount) {
		return 0, fmt.Errorf("%w: fee %s, amount %s", ErrFeeExceedsAmount, normalizedFee.ToBig(), normalizedAmount.ToBig())
	}

	tokenAddress, err := vaa.BytesToAddress(token.Bytes())
	if err != nil {
		return 0, err
	}

	payload := (&TransferPayload{
		Amount:       normalizedAmount,
		TokenAddress: tokenAddress,
		TokenChain:   b.ChainID(),
		To:           recipient,
		ToChain:      recipientChain,
		Fee:          normalizedFee,
	}).Serialize()

	return b.core.PublishMessage(tx, b.address, nonce, payload, Finality)
}

// normalize truncates amount to normalizedDecimals of precision.
func normalize(amount *uint256.Int, decimals uint8) *uint256.Int {
	if decimals <= normalizedDecimals {
		return amount.Clone()
	}
	divisor := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals-normalizedDecimals)))
	return new(uint256.Int).Div(amount, divisor)
}

// Denormalize scales a wire amount back to a token with the given decimals.
func Denormalize(amount *uint256.Int, decimals uint8) *uint256.Int {
	if decimals <= normalizedDecimals {
		return amount.Clone()
	}
	multiplier := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals-normalizedDecimals)))
	return new(uint256.Int).Mul(amount, multiplier)
}
