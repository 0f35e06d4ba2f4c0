// Package ledger is an in-process, journaled world state with EVM semantics: native
// balances, contract accounts, logs, and all-or-nothing transactions.
//
// Every mutation goes through a *Tx handed out by State.Transact. When the
// transaction function returns an error (or panics) every journaled change made
// during the call is undone, including logs and contract storage.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrNotPayable          = errors.New("recipient contract cannot receive native currency")
	ErrWriteProtection     = errors.New("write protection")
	ErrNoCode              = errors.New("call to non-contract")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Contract is anything deployed at a ledger address.
type Contract interface {
	Address() common.Address
}

// Payable is implemented by contracts that accept plain native-currency transfers.
// Contracts without it reject value sent to them, except through SelfDestruct.
type Payable interface {
	Contract
	Receive(tx *Tx, from common.Address, value *uint256.Int) error
}

// Receipt is the outcome of a committed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	From        common.Address
	Logs        []*types.Log
}

type State struct {
	mu        sync.RWMutex
	balances  map[common.Address]*uint256.Int
	nonces    map[common.Address]uint64
	contracts map[common.Address]Contract
	journal   journal
	pending   []*types.Log
	height    uint64
}

func NewState() *State {
	return &State{
		balances:  make(map[common.Address]*uint256.Int),
		nonces:    make(map[common.Address]uint64),
		contracts: make(map[common.Address]Contract),
	}
}

// Height is the number of committed transactions.
func (s *State) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Transact runs fn as a single atomic transaction sent by from. Transactions are
// serialized. If fn fails, all of its effects are rolled back and no receipt is produced.
func (s *State) Transact(from common.Address, fn func(tx *Tx) error) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: s, origin: from, hash: s.txHash(from)}

	committed := false
	defer func() {
		if !committed {
			s.journal.revert(s, 0)
			s.pending = nil
		}
		s.journal.reset()
	}()

	if err := fn(tx); err != nil {
		return nil, err
	}

	committed = true
	s.height++

	logs := s.pending
	s.pending = nil
	for i, l := range logs {
		l.BlockNumber = s.height
		l.TxHash = tx.hash
		l.Index = uint(i)
	}

	return &Receipt{
		TxHash:      tx.hash,
		BlockNumber: s.height,
		From:        from,
		Logs:        logs,
	}, nil
}

// View runs fn against a read-only transaction. Any attempted write fails with
// ErrWriteProtection.
func (s *State) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{state: s, readOnly: true})
}

func (s *State) txHash(from common.Address) common.Hash {
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], s.height+1)
	return crypto.Keccak256Hash(height[:], from.Bytes())
}

// Tx is the handle through which ledger state is read and written during a transaction.
type Tx struct {
	state    *State
	origin   common.Address
	hash     common.Hash
	readOnly bool
}

func (tx *Tx) Origin() common.Address {
	return tx.origin
}

func (tx *Tx) Hash() common.Hash {
	return tx.hash
}

// Snapshot returns an identifier for the current revision of the state.
func (tx *Tx) Snapshot() int {
	return tx.state.journal.length()
}

// RevertToSnapshot undoes every change made after the snapshot was taken.
func (tx *Tx) RevertToSnapshot(id int) {
	tx.state.journal.revert(tx.state, id)
}

// OnRevert registers undo to run if the transaction (or an enclosing snapshot) is reverted.
// Contracts use it to journal their own storage before mutating it.
func (tx *Tx) OnRevert(undo func()) error {
	if tx.readOnly {
		return ErrWriteProtection
	}
	tx.state.journal.append(undoChange{undo: undo})
	return nil
}

// Balance returns a copy of the native-currency balance of addr.
func (tx *Tx) Balance(addr common.Address) *uint256.Int {
	if b, ok := tx.state.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (tx *Tx) setBalance(addr common.Address, amount *uint256.Int) {
	tx.state.journal.append(balanceChange{account: addr, prev: tx.state.balances[addr]})
	tx.state.balances[addr] = amount
}

// AddBalance credits native currency out of thin air. It is used for genesis
// allocations and test funding.
func (tx *Tx) AddBalance(addr common.Address, amount *uint256.Int) error {
	if tx.readOnly {
		return ErrWriteProtection
	}
	sum, overflow := new(uint256.Int).AddOverflow(tx.Balance(addr), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	tx.setBalance(addr, sum)
	return nil
}

// Transfer moves native currency between accounts. Value sent to a contract is only
// accepted if the contract is Payable.
func (tx *Tx) Transfer(from, to common.Address, amount *uint256.Int) error {
	if err := tx.move(from, to, amount); err != nil {
		return err
	}

	c, ok := tx.state.contracts[to]
	if !ok {
		return nil
	}
	p, ok := c.(Payable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPayable, to)
	}
	return p.Receive(tx, from, amount.Clone())
}

// move transfers native currency without consulting the recipient.
func (tx *Tx) move(from, to common.Address, amount *uint256.Int) error {
	if tx.readOnly {
		return ErrWriteProtection
	}

	fromBalance := tx.Balance(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBalance.ToBig(), amount.ToBig())
	}
	if from == to {
		return nil
	}

	tx.setBalance(from, new(uint256.Int).Sub(fromBalance, amount))

	sum, overflow := new(uint256.Int).AddOverflow(tx.Balance(to), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	tx.setBalance(to, sum)
	return nil
}

func (tx *Tx) Nonce(addr common.Address) uint64 {
	return tx.state.nonces[addr]
}

// Deploy creates a contract at the address derived from the deployer and its nonce,
// the same way CREATE does.
func (tx *Tx) Deploy(deployer common.Address, create func(addr common.Address) (Contract, error)) (Contract, error) {
	if tx.readOnly {
		return nil, ErrWriteProtection
	}

	nonce := tx.state.nonces[deployer]
	tx.state.journal.append(nonceChange{account: deployer, prev: nonce})
	tx.state.nonces[deployer] = nonce + 1

	addr := crypto.CreateAddress(deployer, nonce)
	if _, exists := tx.state.contracts[addr]; exists {
		return nil, fmt.Errorf("contract address collision at %s", addr)
	}

	c, err := create(addr)
	if err != nil {
		return nil, err
	}
	if c.Address() != addr {
		return nil, fmt.Errorf("contract reports address %s, deployed at %s", c.Address(), addr)
	}

	tx.state.journal.append(contractCreated{account: addr})
	tx.state.contracts[addr] = c
	return c, nil
}

// Contract returns the contract deployed at addr.
func (tx *Tx) Contract(addr common.Address) (Contract, bool) {
	c, ok := tx.state.contracts[addr]
	return c, ok
}

func (tx *Tx) IsContract(addr common.Address) bool {
	_, ok := tx.state.contracts[addr]
	return ok
}

// SelfDestruct removes the contract at addr and force-sends its whole native balance to
// beneficiary. The beneficiary is never consulted, so even non-payable contracts receive it.
func (tx *Tx) SelfDestruct(addr, beneficiary common.Address) error {
	if tx.readOnly {
		return ErrWriteProtection
	}
	c, ok := tx.state.contracts[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCode, addr)
	}

	if err := tx.move(addr, beneficiary, tx.Balance(addr)); err != nil {
		return err
	}

	tx.state.journal.append(contractDestroyed{account: addr, contract: c})
	delete(tx.state.contracts, addr)
	return nil
}

// AddLog appends a log to the transaction's receipt.
func (tx *Tx) AddLog(l *types.Log) error {
	if tx.readOnly {
		return ErrWriteProtection
	}
	tx.state.journal.append(logAdded{})
	tx.state.pending = append(tx.state.pending, l)
	return nil
}
