package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNonexistentToken      = errors.New("invalid token ID")
	ErrNotTokenOwner         = errors.New("transfer from incorrect owner")
	ErrNotOwnerNorApproved   = errors.New("caller is not token owner or approved")
	ErrNonReceiver           = errors.New("transfer to non receiver implementer")
	ErrNotFungible           = errors.New("contract is not a fungible token")
	ErrNotNonFungible        = errors.New("contract is not a non-fungible token")
)

// FungibleToken is the ERC-20 surface other contracts call.
type FungibleToken interface {
	Contract
	Decimals() uint8
	BalanceOf(tx *Tx, account common.Address) *uint256.Int
	Allowance(tx *Tx, owner, spender common.Address) *uint256.Int
	Transfer(tx *Tx, caller, to common.Address, amount *uint256.Int) error
	Approve(tx *Tx, caller, spender common.Address, amount *uint256.Int) error
	TransferFrom(tx *Tx, caller, from, to common.Address, amount *uint256.Int) error
}

// NonFungibleToken is the ERC-721 surface other contracts call.
type NonFungibleToken interface {
	Contract
	OwnerOf(tx *Tx, tokenID *uint256.Int) (common.Address, error)
	TransferFrom(tx *Tx, caller, from, to common.Address, tokenID *uint256.Int) error
	SafeTransferFrom(tx *Tx, caller, from, to common.Address, tokenID *uint256.Int, data []byte) error
}

// ERC721Receiver is implemented by contracts that accept ERC-721 safe transfers.
type ERC721Receiver interface {
	OnERC721Received(tx *Tx, operator, from common.Address, tokenID *uint256.Int, data []byte) error
}

// ERC1155Receiver is implemented by contracts that accept ERC-1155 safe transfers.
type ERC1155Receiver interface {
	OnERC1155Received(tx *Tx, operator, from common.Address, id, value *uint256.Int, data []byte) error
}

// FungibleAt resolves the ERC-20 contract deployed at addr.
func FungibleAt(tx *Tx, addr common.Address) (FungibleToken, error) {
	c, ok := tx.Contract(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, addr)
	}
	t, ok := c.(FungibleToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFungible, addr)
	}
	return t, nil
}

// NonFungibleAt resolves the ERC-721 contract deployed at addr.
func NonFungibleAt(tx *Tx, addr common.Address) (NonFungibleToken, error) {
	c, ok := tx.Contract(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, addr)
	}
	t, ok := c.(NonFungibleToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotNonFungible, addr)
	}
	return t, nil
}
