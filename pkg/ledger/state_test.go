package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// sink is a contract that accepts nothing.
type sink struct {
	address common.Address
}

func (s *sink) Address() common.Address { return s.address }

func deploySink(t *testing.T, s *State, deployer common.Address) common.Address {
	t.Helper()
	var addr common.Address
	_, err := s.Transact(deployer, func(tx *Tx) error {
		c, err := tx.Deploy(deployer, func(a common.Address) (Contract, error) {
			return &sink{address: a}, nil
		})
		if err != nil {
			return err
		}
		addr = c.Address()
		return nil
	})
	require.NoError(t, err)
	return addr
}

func fund(t *testing.T, s *State, addr common.Address, amount uint64) {
	t.Helper()
	_, err := s.Transact(addr, func(tx *Tx) error {
		return tx.AddBalance(addr, uint256.NewInt(amount))
	})
	require.NoError(t, err)
}

func balance(t *testing.T, s *State, addr common.Address) uint64 {
	t.Helper()
	var b *uint256.Int
	require.NoError(t, s.View(func(tx *Tx) error {
		b = tx.Balance(addr)
		return nil
	}))
	return b.Uint64()
}

func TestTransferMovesNativeCurrency(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)

	receipt, err := s.Transact(alice, func(tx *Tx) error {
		return tx.Transfer(alice, bob, uint256.NewInt(40))
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.BlockNumber)
	assert.Equal(t, alice, receipt.From)

	assert.Equal(t, uint64(60), balance(t, s, alice))
	assert.Equal(t, uint64(40), balance(t, s, bob))
	assert.Equal(t, uint64(2), s.Height())
}

func TestFailedTransactionReverts(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)

	boom := errors.New("boom")
	receipt, err := s.Transact(alice, func(tx *Tx) error {
		if err := tx.Transfer(alice, bob, uint256.NewInt(40)); err != nil {
			return err
		}
		if err := tx.AddLog(nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, receipt)

	assert.Equal(t, uint64(100), balance(t, s, alice))
	assert.Equal(t, uint64(0), balance(t, s, bob))
	assert.Equal(t, uint64(1), s.Height())
}

func TestPanicReverts(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)

	assert.Panics(t, func() {
		_, _ = s.Transact(alice, func(tx *Tx) error {
			if err := tx.Transfer(alice, bob, uint256.NewInt(40)); err != nil {
				return err
			}
			panic("unexpected")
		})
	})

	assert.Equal(t, uint64(100), balance(t, s, alice))
	assert.Equal(t, uint64(0), balance(t, s, bob))
}

func TestInsufficientBalance(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 10)

	_, err := s.Transact(alice, func(tx *Tx) error {
		return tx.Transfer(alice, bob, uint256.NewInt(11))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSnapshotRevert(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)

	_, err := s.Transact(alice, func(tx *Tx) error {
		if err := tx.Transfer(alice, bob, uint256.NewInt(10)); err != nil {
			return err
		}
		snap := tx.Snapshot()
		if err := tx.Transfer(alice, bob, uint256.NewInt(20)); err != nil {
			return err
		}
		tx.RevertToSnapshot(snap)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(90), balance(t, s, alice))
	assert.Equal(t, uint64(10), balance(t, s, bob))
}

func TestViewIsWriteProtected(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)

	err := s.View(func(tx *Tx) error {
		return tx.Transfer(alice, bob, uint256.NewInt(1))
	})
	require.ErrorIs(t, err, ErrWriteProtection)

	err = s.View(func(tx *Tx) error {
		return tx.OnRevert(func() {})
	})
	require.ErrorIs(t, err, ErrWriteProtection)
}

func TestDeployAddressFollowsNonce(t *testing.T) {
	s := NewState()

	first := deploySink(t, s, alice)
	second := deploySink(t, s, alice)

	assert.Equal(t, crypto.CreateAddress(alice, 0), first)
	assert.Equal(t, crypto.CreateAddress(alice, 1), second)
}

func TestFailedDeployIsUndone(t *testing.T) {
	s := NewState()

	var addr common.Address
	_, err := s.Transact(alice, func(tx *Tx) error {
		c, err := tx.Deploy(alice, func(a common.Address) (Contract, error) {
			return &sink{address: a}, nil
		})
		if err != nil {
			return err
		}
		addr = c.Address()
		return errors.New("constructor failed")
	})
	require.Error(t, err)

	require.NoError(t, s.View(func(tx *Tx) error {
		assert.False(t, tx.IsContract(addr))
		assert.Equal(t, uint64(0), tx.Nonce(alice))
		return nil
	}))
}

func TestNonPayableContractRejectsValue(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)
	target := deploySink(t, s, bob)

	_, err := s.Transact(alice, func(tx *Tx) error {
		return tx.Transfer(alice, target, uint256.NewInt(1))
	})
	require.ErrorIs(t, err, ErrNotPayable)
	assert.Equal(t, uint64(0), balance(t, s, target))
	assert.Equal(t, uint64(100), balance(t, s, alice))
}

func TestDestrudoForcesValueIntoNonPayableContract(t *testing.T) {
	s := NewState()
	fund(t, s, alice, 100)
	target := deploySink(t, s, bob)

	var destrudo *Destrudo
	_, err := s.Transact(alice, func(tx *Tx) error {
		var err error
		destrudo, err = DeployDestrudo(tx, alice)
		return err
	})
	require.NoError(t, err)

	_, err = s.Transact(alice, func(tx *Tx) error {
		return destrudo.DestructSelf(tx, alice, target, uint256.NewInt(70))
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(70), balance(t, s, target))
	assert.Equal(t, uint64(30), balance(t, s, alice))
	require.NoError(t, s.View(func(tx *Tx) error {
		assert.False(t, tx.IsContract(destrudo.Address()))
		return nil
	}))
}
