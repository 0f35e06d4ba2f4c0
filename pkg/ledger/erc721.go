package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const erc721ABI = `[
	{"anonymous":false,"type":"event","name":"Transfer","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"Approval","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"approved","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ApprovalForAll","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":false,"name":"approved","type":"bool"}]}
]`

// ERC721ABI holds the standard ERC-721 events.
var ERC721ABI = MustParseABI(erc721ABI)

type ERC721 struct {
	address   common.Address
	name      string
	symbol    string
	owners    map[uint256.Int]common.Address
	balances  map[common.Address]uint64
	approvals map[uint256.Int]common.Address
	operators map[common.Address]map[common.Address]bool
}

func DeployERC721(tx *Tx, deployer common.Address, name, symbol string) (*ERC721, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (Contract, error) {
		return &ERC721{
			address:   addr,
			name:      name,
			symbol:    symbol,
			owners:    make(map[uint256.Int]common.Address),
			balances:  make(map[common.Address]uint64),
			approvals: make(map[uint256.Int]common.Address),
			operators: make(map[common.Address]map[common.Address]bool),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*ERC721), nil
}

func (n *ERC721) Address() common.Address { return n.address }
func (n *ERC721) Name() string            { return n.name }
func (n *ERC721) Symbol() string          { return n.symbol }

func (n *ERC721) BalanceOf(tx *Tx, owner common.Address) uint64 {
	return n.balances[owner]
}

func (n *ERC721) OwnerOf(tx *Tx, tokenID *uint256.Int) (common.Address, error) {
	owner, ok := n.owners[*tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNonexistentToken, tokenID.ToBig())
	}
	return owner, nil
}

func (n *ERC721) GetApproved(tx *Tx, tokenID *uint256.Int) (common.Address, error) {
	if _, err := n.OwnerOf(tx, tokenID); err != nil {
		return common.Address{}, err
	}
	return n.approvals[*tokenID], nil
}

func (n *ERC721) IsApprovedForAll(tx *Tx, owner, operator common.Address) bool {
	return n.operators[owner][operator]
}

// Mint creates tokenID for to.
func (n *ERC721) Mint(tx *Tx, to common.Address, tokenID *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint to the %w", ErrZeroAddress)
	}
	if _, exists := n.owners[*tokenID]; exists {
		return fmt.Errorf("token %s already minted", tokenID.ToBig())
	}
	if err := n.setOwner(tx, *tokenID, to, common.Address{}); err != nil {
		return err
	}
	return EmitEvent(tx, n.address, ERC721ABI.Events["Transfer"], common.Address{}, to, tokenID.ToBig())
}

func (n *ERC721) Approve(tx *Tx, caller, to common.Address, tokenID *uint256.Int) error {
	owner, err := n.OwnerOf(tx, tokenID)
	if err != nil {
		return err
	}
	if to == owner {
		return fmt.Errorf("approval to current owner")
	}
	if caller != owner && !n.IsApprovedForAll(tx, owner, caller) {
		return fmt.Errorf("approve: %w", ErrNotOwnerNorApproved)
	}
	if err := n.setApproval(tx, *tokenID, to); err != nil {
		return err
	}
	return EmitEvent(tx, n.address, ERC721ABI.Events["Approval"], owner, to, tokenID.ToBig())
}

func (n *ERC721) SetApprovalForAll(tx *Tx, caller, operator common.Address, approved bool) error {
	if caller == operator {
		return fmt.Errorf("approve to caller")
	}
	prev := n.operators[caller][operator]
	err := tx.OnRevert(func() {
		n.operators[caller][operator] = prev
	})
	if err != nil {
		return err
	}
	if n.operators[caller] == nil {
		n.operators[caller] = make(map[common.Address]bool)
	}
	n.operators[caller][operator] = approved
	return EmitEvent(tx, n.address, ERC721ABI.Events["ApprovalForAll"], caller, operator, approved)
}

// TransferFrom moves tokenID without checking whether the recipient can handle it.
func (n *ERC721) TransferFrom(tx *Tx, caller, from, to common.Address, tokenID *uint256.Int) error {
	owner, err := n.OwnerOf(tx, tokenID)
	if err != nil {
		return err
	}
	if caller != owner && n.approvals[*tokenID] != caller && !n.IsApprovedForAll(tx, owner, caller) {
		return ErrNotOwnerNorApproved
	}
	if owner != from {
		return fmt.Errorf("%w: token %s is owned by %s", ErrNotTokenOwner, tokenID.ToBig(), owner)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to the %w", ErrZeroAddress)
	}

	if _, approved := n.approvals[*tokenID]; approved {
		if err := n.setApproval(tx, *tokenID, common.Address{}); err != nil {
			return err
		}
	}
	if err := n.setOwner(tx, *tokenID, to, from); err != nil {
		return err
	}
	return EmitEvent(tx, n.address, ERC721ABI.Events["Transfer"], from, to, tokenID.ToBig())
}

// SafeTransferFrom is TransferFrom plus the receiver check: contracts must implement
// ERC721Receiver to be sent a token.
func (n *ERC721) SafeTransferFrom(tx *Tx, caller, from, to common.Address, tokenID *uint256.Int, data []byte) error {
	if err := n.TransferFrom(tx, caller, from, to, tokenID); err != nil {
		return err
	}

	c, ok := tx.Contract(to)
	if !ok {
		return nil
	}
	r, ok := c.(ERC721Receiver)
	if !ok {
		return fmt.Errorf("ERC721: %w %s", ErrNonReceiver, to)
	}
	return r.OnERC721Received(tx, caller, from, tokenID.Clone(), data)
}

func (n *ERC721) setOwner(tx *Tx, tokenID uint256.Int, to, from common.Address) error {
	prevOwner, existed := n.owners[tokenID]
	prevFrom, prevTo := n.balances[from], n.balances[to]
	err := tx.OnRevert(func() {
		if existed {
			n.owners[tokenID] = prevOwner
		} else {
			delete(n.owners, tokenID)
		}
		n.balances[from] = prevFrom
		n.balances[to] = prevTo
	})
	if err != nil {
		return err
	}

	if from != (common.Address{}) {
		n.balances[from]--
	}
	n.balances[to]++
	n.owners[tokenID] = to
	return nil
}

func (n *ERC721) setApproval(tx *Tx, tokenID uint256.Int, to common.Address) error {
	prev, existed := n.approvals[tokenID]
	err := tx.OnRevert(func() {
		if existed {
			n.approvals[tokenID] = prev
		} else {
			delete(n.approvals, tokenID)
		}
	})
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		delete(n.approvals, tokenID)
	} else {
		n.approvals[tokenID] = to
	}
	return nil
}
