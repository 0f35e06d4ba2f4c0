package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const erc20ABI = `[
	{"anonymous":false,"type":"event","name":"Transfer","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"Approval","inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"spender","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}]}
]`

// ERC20ABI holds the standard ERC-20 events.
var ERC20ABI = MustParseABI(erc20ABI)

// ERC20 is a plain fungible token. A zero-value transfer moves nothing and emits no
// Transfer log.
type ERC20 struct {
	address     common.Address
	name        string
	symbol      string
	decimals    uint8
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
}

// DeployERC20 deploys a token and mints supply to the deployer.
func DeployERC20(tx *Tx, deployer common.Address, name, symbol string, decimals uint8, supply *uint256.Int) (*ERC20, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (Contract, error) {
		return &ERC20{
			address:     addr,
			name:        name,
			symbol:      symbol,
			decimals:    decimals,
			totalSupply: uint256.NewInt(0),
			balances:    make(map[common.Address]*uint256.Int),
			allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	token := c.(*ERC20)
	if !supply.IsZero() {
		if err := token.Mint(tx, deployer, supply); err != nil {
			return nil, err
		}
	}
	return token, nil
}

func (t *ERC20) Address() common.Address { return t.address }
func (t *ERC20) Name() string            { return t.name }
func (t *ERC20) Symbol() string          { return t.symbol }
func (t *ERC20) Decimals() uint8         { return t.decimals }

func (t *ERC20) TotalSupply(tx *Tx) *uint256.Int {
	return t.totalSupply.Clone()
}

func (t *ERC20) BalanceOf(tx *Tx, account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (t *ERC20) Allowance(tx *Tx, owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return uint256.NewInt(0)
}

func (t *ERC20) Transfer(tx *Tx, caller, to common.Address, amount *uint256.Int) error {
	return t.transfer(tx, caller, to, amount)
}

func (t *ERC20) Approve(tx *Tx, caller, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return fmt.Errorf("approve to the %w", ErrZeroAddress)
	}
	if err := t.setAllowance(tx, caller, spender, amount.Clone()); err != nil {
		return err
	}
	return EmitEvent(tx, t.address, ERC20ABI.Events["Approval"], caller, spender, amount.ToBig())
}

// TransferFrom spends the caller's allowance over from's balance. An allowance of
// MaxUint256 is never decreased.
func (t *ERC20) TransferFrom(tx *Tx, caller, from, to common.Address, amount *uint256.Int) error {
	allowance := t.Allowance(tx, from, caller)
	if !allowance.Eq(maxUint256) {
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s allowed %s by %s, needs %s", ErrInsufficientAllowance, caller, allowance.ToBig(), from, amount.ToBig())
		}
		if err := t.setAllowance(tx, from, caller, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return t.transfer(tx, from, to, amount)
}

// Mint creates amount new tokens for to.
func (t *ERC20) Mint(tx *Tx, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint to the %w", ErrZeroAddress)
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	prevSupply := t.totalSupply
	if err := tx.OnRevert(func() { t.totalSupply = prevSupply }); err != nil {
		return err
	}
	t.totalSupply = supply

	if err := t.setBalance(tx, to, new(uint256.Int).Add(t.BalanceOf(tx, to), amount)); err != nil {
		return err
	}
	return EmitEvent(tx, t.address, ERC20ABI.Events["Transfer"], common.Address{}, to, amount.ToBig())
}

func (t *ERC20) transfer(tx *Tx, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to the %w", ErrZeroAddress)
	}

	fromBalance := t.BalanceOf(tx, from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientBalance, from, fromBalance.ToBig(), t.symbol, amount.ToBig())
	}
	if amount.IsZero() {
		return nil
	}

	if err := t.setBalance(tx, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	// Cannot overflow: the sum of all balances is bounded by the total supply.
	if err := t.setBalance(tx, to, new(uint256.Int).Add(t.BalanceOf(tx, to), amount)); err != nil {
		return err
	}

	return EmitEvent(tx, t.address, ERC20ABI.Events["Transfer"], from, to, amount.ToBig())
}

func (t *ERC20) setBalance(tx *Tx, account common.Address, amount *uint256.Int) error {
	prev, existed := t.balances[account]
	err := tx.OnRevert(func() {
		if existed {
			t.balances[account] = prev
		} else {
			delete(t.balances, account)
		}
	})
	if err != nil {
		return err
	}
	t.balances[account] = amount
	return nil
}

func (t *ERC20) setAllowance(tx *Tx, owner, spender common.Address, amount *uint256.Int) error {
	prev, existed := t.allowances[owner][spender]
	err := tx.OnRevert(func() {
		if existed {
			t.allowances[owner][spender] = prev
		} else {
			delete(t.allowances[owner], spender)
		}
	})
	if err != nil {
		return err
	}
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = amount
	return nil
}

var maxUint256 = new(uint256.Int).SetAllOne()
