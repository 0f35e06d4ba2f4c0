package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nftHolder accepts ERC-721 but not ERC-1155 transfers.
type nftHolder struct {
	address common.Address
	seen    []*uint256.Int
}

func (h *nftHolder) Address() common.Address { return h.address }

func (h *nftHolder) OnERC721Received(tx *Tx, operator, from common.Address, tokenID *uint256.Int, data []byte) error {
	h.seen = append(h.seen, tokenID)
	return nil
}

func deployERC20(t *testing.T, s *State, supply uint64) *ERC20 {
	t.Helper()
	var token *ERC20
	_, err := s.Transact(alice, func(tx *Tx) error {
		var err error
		token, err = DeployERC20(tx, alice, "Test Token", "TST", 18, uint256.NewInt(supply))
		return err
	})
	require.NoError(t, err)
	return token
}

func tokenBalance(t *testing.T, s *State, token *ERC20, addr common.Address) uint64 {
	t.Helper()
	var b *uint256.Int
	require.NoError(t, s.View(func(tx *Tx) error {
		b = token.BalanceOf(tx, addr)
		return nil
	}))
	return b.Uint64()
}

func TestERC20Transfer(t *testing.T) {
	s := NewState()
	token := deployERC20(t, s, 1000)

	receipt, err := s.Transact(alice, func(tx *Tx) error {
		return token.Transfer(tx, alice, bob, uint256.NewInt(300))
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(700), tokenBalance(t, s, token, alice))
	assert.Equal(t, uint64(300), tokenBalance(t, s, token, bob))

	logs := receipt.Events(token.Address(), ERC20ABI.Events["Transfer"])
	require.Len(t, logs, 1)
	ev, err := DecodeEvent(ERC20ABI.Events["Transfer"], logs[0])
	require.NoError(t, err)
	assert.Equal(t, alice, ev["from"])
	assert.Equal(t, bob, ev["to"])
	assert.Zero(t, big.NewInt(300).Cmp(ev["value"].(*big.Int)))
}

func TestERC20ZeroTransferEmitsNothing(t *testing.T) {
	s := NewState()
	token := deployERC20(t, s, 1000)

	receipt, err := s.Transact(alice, func(tx *Tx) error {
		return token.Transfer(tx, alice, bob, uint256.NewInt(0))
	})
	require.NoError(t, err)
	assert.Empty(t, receipt.Logs)
}

func TestERC20TransferFromAllowance(t *testing.T) {
	s := NewState()
	token := deployERC20(t, s, 1000)

	type test struct {
		label     string
		allowance *uint256.Int
		amount    uint64
		err       error
		remaining *uint256.Int
	}
	tests := []test{
		{label: "exact", allowance: uint256.NewInt(100), amount: 100, remaining: uint256.NewInt(0)},
		{label: "partial", allowance: uint256.NewInt(100), amount: 40, remaining: uint256.NewInt(60)},
		{label: "too much", allowance: uint256.NewInt(100), amount: 101, err: ErrInsufficientAllowance, remaining: uint256.NewInt(100)},
		{label: "unlimited", allowance: maxUint256, amount: 500, remaining: maxUint256},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			_, err := s.Transact(alice, func(tx *Tx) error {
				return token.Approve(tx, alice, bob, tc.allowance)
			})
			require.NoError(t, err)

			_, err = s.Transact(bob, func(tx *Tx) error {
				return token.TransferFrom(tx, bob, alice, bob, uint256.NewInt(tc.amount))
			})
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}

			require.NoError(t, s.View(func(tx *Tx) error {
				assert.Equal(t, tc.remaining, token.Allowance(tx, alice, bob))
				return nil
			}))

			// return the tokens for the next case
			if tc.err == nil {
				_, err = s.Transact(bob, func(tx *Tx) error {
					return token.Transfer(tx, bob, alice, uint256.NewInt(tc.amount))
				})
				require.NoError(t, err)
			}
		})
	}
}

func TestERC20RevertRestoresBalancesAndAllowances(t *testing.T) {
	s := NewState()
	token := deployERC20(t, s, 1000)

	_, err := s.Transact(alice, func(tx *Tx) error {
		if err := token.Approve(tx, alice, bob, uint256.NewInt(50)); err != nil {
			return err
		}
		if err := token.Transfer(tx, alice, bob, uint256.NewInt(10)); err != nil {
			return err
		}
		return token.Transfer(tx, alice, bob, uint256.NewInt(10_000))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, uint64(1000), tokenBalance(t, s, token, alice))
	assert.Equal(t, uint64(0), tokenBalance(t, s, token, bob))
	require.NoError(t, s.View(func(tx *Tx) error {
		assert.True(t, token.Allowance(tx, alice, bob).IsZero())
		return nil
	}))
}

func TestERC721SafeTransfer(t *testing.T) {
	s := NewState()
	holder := &nftHolder{}
	var nft *ERC721
	var plain common.Address

	_, err := s.Transact(alice, func(tx *Tx) error {
		var err error
		nft, err = DeployERC721(tx, alice, "Test NFT", "NFT")
		if err != nil {
			return err
		}
		if _, err := tx.Deploy(alice, func(a common.Address) (Contract, error) {
			holder.address = a
			return holder, nil
		}); err != nil {
			return err
		}
		plain = deploySinkTx(t, tx, alice)
		for id := uint64(1); id <= 2; id++ {
			if err := nft.Mint(tx, alice, uint256.NewInt(id)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	receipt, err := s.Transact(alice, func(tx *Tx) error {
		return nft.SafeTransferFrom(tx, alice, alice, holder.Address(), uint256.NewInt(1), nil)
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events(nft.Address(), ERC721ABI.Events["Transfer"]), 1)
	require.Len(t, holder.seen, 1)
	assert.Equal(t, uint64(1), holder.seen[0].Uint64())

	_, err = s.Transact(alice, func(tx *Tx) error {
		return nft.SafeTransferFrom(tx, alice, alice, plain, uint256.NewInt(2), nil)
	})
	require.ErrorIs(t, err, ErrNonReceiver)

	require.NoError(t, s.View(func(tx *Tx) error {
		owner, err := nft.OwnerOf(tx, uint256.NewInt(2))
		require.NoError(t, err)
		assert.Equal(t, alice, owner)
		assert.Equal(t, uint64(1), nft.BalanceOf(tx, alice))
		assert.Equal(t, uint64(1), nft.BalanceOf(tx, holder.Address()))
		return nil
	}))
}

func TestERC721TransferChecks(t *testing.T) {
	s := NewState()
	var nft *ERC721
	_, err := s.Transact(alice, func(tx *Tx) error {
		var err error
		nft, err = DeployERC721(tx, alice, "Test NFT", "NFT")
		if err != nil {
			return err
		}
		return nft.Mint(tx, alice, uint256.NewInt(7))
	})
	require.NoError(t, err)

	_, err = s.Transact(bob, func(tx *Tx) error {
		return nft.TransferFrom(tx, bob, alice, bob, uint256.NewInt(7))
	})
	require.ErrorIs(t, err, ErrNotOwnerNorApproved)

	_, err = s.Transact(alice, func(tx *Tx) error {
		return nft.TransferFrom(tx, alice, bob, alice, uint256.NewInt(7))
	})
	require.ErrorIs(t, err, ErrNotTokenOwner)

	_, err = s.Transact(alice, func(tx *Tx) error {
		return nft.TransferFrom(tx, alice, alice, bob, uint256.NewInt(8))
	})
	require.ErrorIs(t, err, ErrNonexistentToken)

	// approved operator may move it
	_, err = s.Transact(alice, func(tx *Tx) error {
		return nft.Approve(tx, alice, bob, uint256.NewInt(7))
	})
	require.NoError(t, err)
	_, err = s.Transact(bob, func(tx *Tx) error {
		return nft.TransferFrom(tx, bob, alice, bob, uint256.NewInt(7))
	})
	require.NoError(t, err)

	require.NoError(t, s.View(func(tx *Tx) error {
		approved, err := nft.GetApproved(tx, uint256.NewInt(7))
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, approved)
		return nil
	}))
}

func TestERC1155RequiresReceiverOnContracts(t *testing.T) {
	s := NewState()
	var multi *ERC1155
	var plain common.Address
	id := uint256.NewInt(1)

	_, err := s.Transact(alice, func(tx *Tx) error {
		var err error
		multi, err = DeployERC1155(tx, alice, "ipfs://multi/{id}")
		if err != nil {
			return err
		}
		plain = deploySinkTx(t, tx, alice)
		return multi.Mint(tx, alice, alice, id, uint256.NewInt(10), nil)
	})
	require.NoError(t, err)

	_, err = s.Transact(alice, func(tx *Tx) error {
		return multi.SafeTransferFrom(tx, alice, alice, plain, id, uint256.NewInt(3), nil)
	})
	require.ErrorIs(t, err, ErrNonReceiver)

	receipt, err := s.Transact(alice, func(tx *Tx) error {
		return multi.SafeTransferFrom(tx, alice, alice, bob, id, uint256.NewInt(3), nil)
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events(multi.Address(), ERC1155ABI.Events["TransferSingle"]), 1)

	require.NoError(t, s.View(func(tx *Tx) error {
		assert.Equal(t, uint64(7), multi.BalanceOf(tx, alice, id).Uint64())
		assert.Equal(t, uint64(3), multi.BalanceOf(tx, bob, id).Uint64())
		assert.True(t, multi.BalanceOf(tx, plain, id).IsZero())
		return nil
	}))
}

func TestTokenResolvers(t *testing.T) {
	s := NewState()
	token := deployERC20(t, s, 1)

	require.NoError(t, s.View(func(tx *Tx) error {
		_, err := FungibleAt(tx, token.Address())
		require.NoError(t, err)

		_, err = NonFungibleAt(tx, token.Address())
		require.ErrorIs(t, err, ErrNotNonFungible)

		_, err = FungibleAt(tx, bob)
		require.ErrorIs(t, err, ErrNoCode)
		return nil
	}))
}

func deploySinkTx(t *testing.T, tx *Tx, deployer common.Address) common.Address {
	t.Helper()
	c, err := tx.Deploy(deployer, func(a common.Address) (Contract, error) {
		return &sink{address: a}, nil
	})
	require.NoError(t, err)
	return c.Address()
}
