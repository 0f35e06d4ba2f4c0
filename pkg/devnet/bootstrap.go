package devnet

import (
	"fmt"

	"github.com/aremia/jumpgates/pkg/jumpgate"
	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/aremia/jumpgates/pkg/tokenbridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Devnet is a bootstrapped ledger with the Wormhole contracts and a bridgeable token.
type Devnet struct {
	State  *ledger.State
	Core   *tokenbridge.Core
	Bridge *tokenbridge.TokenBridge
	Token  *ledger.ERC20
}

// Bootstrap applies g to a fresh ledger in a single transaction sent by the deployer.
func Bootstrap(g *Genesis) (*Devnet, error) {
	d := &Devnet{State: ledger.NewState()}

	_, err := d.State.Transact(Deployer(), func(tx *ledger.Tx) error {
		for addr, amount := range g.Alloc {
			if err := tx.AddBalance(addr, amount); err != nil {
				return fmt.Errorf("failed to fund %s: %w", addr, err)
			}
		}

		var err error
		if d.Core, err = tokenbridge.DeployCore(tx, Deployer(), g.ChainID); err != nil {
			return fmt.Errorf("failed to deploy core: %w", err)
		}
		if d.Bridge, err = tokenbridge.DeployTokenBridge(tx, Deployer(), d.Core); err != nil {
			return fmt.Errorf("failed to deploy token bridge: %w", err)
		}
		if d.Token, err = ledger.DeployERC20(tx, Deployer(), g.Token.Name, g.Token.Symbol, g.Token.Decimals, uint256.NewInt(0)); err != nil {
			return fmt.Errorf("failed to deploy token: %w", err)
		}
		for holder, amount := range g.Token.Holdings {
			if err := d.Token.Mint(tx, holder, amount); err != nil {
				return fmt.Errorf("failed to mint tokens for %s: %w", holder, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeployJumpgate deploys a jumpgate for the devnet token and bridge.
func (d *Devnet) DeployJumpgate(owner common.Address, recipientChain vaa.ChainID, recipient vaa.Address, arbiterFee *uint256.Int) (*jumpgate.Jumpgate, error) {
	gate, _, err := jumpgate.Deploy(d.State, Deployer(), jumpgate.Config{
		Owner:          owner,
		Token:          d.Token.Address(),
		Bridge:         d.Bridge.Address(),
		RecipientChain: recipientChain,
		Recipient:      recipient,
		ArbiterFee:     arbiterFee,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy jumpgate: %w", err)
	}
	return gate, nil
}

// Deposit transfers amount of the devnet token from from to to.
func (d *Devnet) Deposit(from, to common.Address, amount *uint256.Int) (*ledger.Receipt, error) {
	return d.State.Transact(from, func(tx *ledger.Tx) error {
		return d.Token.Transfer(tx, from, to, amount)
	})
}

// Fund deposits amount of the devnet token from the depositor account into to.
func (d *Devnet) Fund(to common.Address, amount *uint256.Int) (*ledger.Receipt, error) {
	return d.Deposit(Depositor(), to, amount)
}
