package jumpgate

import (
	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Client runs jumpgate operations as standalone transactions against a ledger.
type Client struct {
	state *ledger.State
	gate  *Jumpgate
}

func NewClient(state *ledger.State, gate *Jumpgate) *Client {
	return &Client{state: state, gate: gate}
}

func (c *Client) Jumpgate() *Jumpgate {
	return c.gate
}

// Status is a snapshot of a jumpgate's configuration and holdings.
type Status struct {
	Address        common.Address
	Owner          common.Address
	Token          common.Address
	Bridge         common.Address
	RecipientChain vaa.ChainID
	Recipient      vaa.Address
	ArbiterFee     *uint256.Int
	TokenBalance   *uint256.Int
	EtherBalance   *uint256.Int
}

// Bridgeable reports whether BridgeTokens would pass the dust cutoff.
func (s *Status) Bridgeable() bool {
	return !s.TokenBalance.Lt(uint256.NewInt(DustCutoff))
}

func (c *Client) Status() (*Status, error) {
	s := &Status{
		Address:        c.gate.Address(),
		Token:          c.gate.Token(),
		Bridge:         c.gate.Bridge(),
		RecipientChain: c.gate.RecipientChain(),
		Recipient:      c.gate.Recipient(),
		ArbiterFee:     c.gate.ArbiterFee(),
	}
	err := c.state.View(func(tx *ledger.Tx) error {
		s.Owner = c.gate.Owner(tx)
		s.EtherBalance = tx.Balance(c.gate.Address())
		token, err := ledger.FungibleAt(tx, c.gate.Token())
		if err != nil {
			return err
		}
		s.TokenBalance = token.BalanceOf(tx, c.gate.Address())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) BridgeTokens(caller common.Address) (*TokensBridged, *ledger.Receipt, error) {
	var record *TokensBridged
	receipt, err := c.state.Transact(caller, func(tx *ledger.Tx) error {
		var err error
		record, err = c.gate.BridgeTokens(tx, caller)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return record, receipt, nil
}

func (c *Client) RecoverEther(caller, recipient common.Address) (*uint256.Int, *ledger.Receipt, error) {
	var amount *uint256.Int
	receipt, err := c.state.Transact(caller, func(tx *ledger.Tx) error {
		var err error
		amount, err = c.gate.RecoverEther(tx, caller, recipient)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amount, receipt, nil
}

func (c *Client) RecoverERC20(caller, token, recipient common.Address, amount *uint256.Int) (*ledger.Receipt, error) {
	return c.state.Transact(caller, func(tx *ledger.Tx) error {
		return c.gate.RecoverERC20(tx, caller, token, recipient, amount)
	})
}

func (c *Client) RecoverERC721(caller, token common.Address, tokenID *uint256.Int, recipient common.Address) (*ledger.Receipt, error) {
	return c.state.Transact(caller, func(tx *ledger.Tx) error {
		return c.gate.RecoverERC721(tx, caller, token, tokenID, recipient)
	})
}

func (c *Client) TransferOwnership(caller, newOwner common.Address) (*ledger.Receipt, error) {
	return c.state.Transact(caller, func(tx *ledger.Tx) error {
		return c.gate.TransferOwnership(tx, caller, newOwner)
	})
}

func (c *Client) RenounceOwnership(caller common.Address) (*ledger.Receipt, error) {
	return c.state.Transact(caller, func(tx *ledger.Tx) error {
		return c.gate.RenounceOwnership(tx, caller)
	})
}
