package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const erc1155ABI = `[
	{"anonymous":false,"type":"event","name":"TransferSingle","inputs":[
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"id","type":"uint256"},
		{"indexed":false,"name":"value","type":"uint256"}]}
]`

var ERC1155ABI = MustParseABI(erc1155ABI)

// ERC1155 is a multi-token. Every transfer to a contract, including mints, requires
// the recipient to implement ERC1155Receiver.
type ERC1155 struct {
	address  common.Address
	uri      string
	balances map[uint256.Int]map[common.Address]*uint256.Int
}

func DeployERC1155(tx *Tx, deployer common.Address, uri string) (*ERC1155, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (Contract, error) {
		return &ERC1155{
			address:  addr,
			uri:      uri,
			balances: make(map[uint256.Int]map[common.Address]*uint256.Int),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*ERC1155), nil
}

func (m *ERC1155) Address() common.Address { return m.address }
func (m *ERC1155) URI() string             { return m.uri }

func (m *ERC1155) BalanceOf(tx *Tx, account common.Address, id *uint256.Int) *uint256.Int {
	if b, ok := m.balances[*id][account]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (m *ERC1155) Mint(tx *Tx, operator, to common.Address, id, value *uint256.Int, data []byte) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint to the %w", ErrZeroAddress)
	}
	sum, overflow := new(uint256.Int).AddOverflow(m.BalanceOf(tx, to, id), value)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := m.setBalance(tx, *id, to, sum); err != nil {
		return err
	}
	if err := EmitEvent(tx, m.address, ERC1155ABI.Events["TransferSingle"], operator, common.Address{}, to, id.ToBig(), value.ToBig()); err != nil {
		return err
	}
	return m.checkReceiver(tx, operator, common.Address{}, to, id, value, data)
}

// SafeTransferFrom moves value units of id. The caller must be the holder.
func (m *ERC1155) SafeTransferFrom(tx *Tx, caller, from, to common.Address, id, value *uint256.Int, data []byte) error {
	if caller != from {
		return fmt.Errorf("ERC1155: %w", ErrNotOwnerNorApproved)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to the %w", ErrZeroAddress)
	}

	fromBalance := m.BalanceOf(tx, from, id)
	if fromBalance.Lt(value) {
		return fmt.Errorf("%w: %s holds %s of id %s, needs %s", ErrInsufficientBalance, from, fromBalance.ToBig(), id.ToBig(), value.ToBig())
	}
	if err := m.setBalance(tx, *id, from, new(uint256.Int).Sub(fromBalance, value)); err != nil {
		return err
	}
	if err := m.setBalance(tx, *id, to, new(uint256.Int).Add(m.BalanceOf(tx, to, id), value)); err != nil {
		return err
	}
	if err := EmitEvent(tx, m.address, ERC1155ABI.Events["TransferSingle"], caller, from, to, id.ToBig(), value.ToBig()); err != nil {
		return err
	}
	return m.checkReceiver(tx, caller, from, to, id, value, data)
}

func (m *ERC1155) checkReceiver(tx *Tx, operator, from, to common.Address, id, value *uint256.Int, data []byte) error {
	c, ok := tx.Contract(to)
	if !ok {
		return nil
	}
	r, ok := c.(ERC1155Receiver)
	if !ok {
		return fmt.Errorf("ERC1155: %w %s", ErrNonReceiver, to)
	}
	return r.OnERC1155Received(tx, operator, from, id.Clone(), value.Clone(), data)
}

func (m *ERC1155) setBalance(tx *Tx, id uint256.Int, account common.Address, amount *uint256.Int) error {
	prev, existed := m.balances[id][account]
	err := tx.OnRevert(func() {
		if existed {
			m.balances[id][account] = prev
		} else {
			delete(m.balances[id], account)
		}
	})
	if err != nil {
		return err
	}
	if m.balances[id] == nil {
		m.balances[id] = make(map[common.Address]*uint256.Int)
	}
	m.balances[id][account] = amount
	return nil
}
