// Package jumpgate implements a per-deployment bridging vault. A jumpgate holds one
// designated ERC-20 token and forwards its whole balance through the Wormhole token bridge
// to a fixed recipient on a fixed chain. Its owner can recover native currency, any ERC-20
// and any ERC-721 that ends up in the vault.
//
// A jumpgate keeps no deposit bookkeeping of its own. Every operation re-reads the ledger
// and runs inside a single ledger transaction, so a failure at any step leaves no trace.
package jumpgate

import (
	"errors"
	"fmt"

	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	// DustCutoff is the smallest balance BridgeTokens forwards. Wormhole truncates
	// transfers to 8 decimals, so anything below 10^10 base units of an 18-decimal token
	// would arrive as nothing.
	DustCutoff = 10_000_000_000

	// Nonce is passed on every transfer. Uniqueness comes from the core's sequence.
	Nonce uint32 = 0
)

var (
	ErrCallerNotOwner = errors.New("caller is not the owner")
	ErrAmountTooSmall = errors.New("amount too small for bridging")
	ErrZeroOwner      = errors.New("new owner is the zero address")
	ErrNotBridge      = errors.New("contract is not a token bridge")
)

// Bridge is the token-bridge entry point a jumpgate forwards through. The bridge pulls
// amount from caller using the allowance granted just before the call.
type Bridge interface {
	ledger.Contract
	TransferTokens(
		tx *ledger.Tx,
		caller common.Address,
		token common.Address,
		amount *uint256.Int,
		recipientChain vaa.ChainID,
		recipient vaa.Address,
		arbiterFee *uint256.Int,
		nonce uint32,
	) (uint64, error)
}

// Config is the immutable deployment configuration. Recipient must already be encoded
// for RecipientChain; see package encode.
type Config struct {
	Owner          common.Address
	Token          common.Address
	Bridge         common.Address
	RecipientChain vaa.ChainID
	Recipient      vaa.Address
	ArbiterFee     *uint256.Int
}

type Jumpgate struct {
	ownable

	address        common.Address
	token          common.Address
	bridge         common.Address
	recipientChain vaa.ChainID
	recipient      vaa.Address
	arbiterFee     *uint256.Int
}

// New deploys a jumpgate from deployer within tx. The configuration is stored verbatim; a
// zero owner leaves the vault in the renounced state, where every recovery fails.
func New(tx *ledger.Tx, deployer common.Address, cfg Config) (*Jumpgate, error) {
	arbiterFee := uint256.NewInt(0)
	if cfg.ArbiterFee != nil {
		arbiterFee = cfg.ArbiterFee.Clone()
	}

	c, err := tx.Deploy(deployer, func(addr common.Address) (ledger.Contract, error) {
		return &Jumpgate{
			address:        addr,
			token:          cfg.Token,
			bridge:         cfg.Bridge,
			recipientChain: cfg.RecipientChain,
			recipient:      cfg.Recipient,
			arbiterFee:     arbiterFee,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	j := c.(*Jumpgate)

	if err := j.setOwner(tx, j.address, cfg.Owner); err != nil {
		return nil, err
	}

	err = ledger.EmitEvent(tx, j.address, evJumpgateCreated,
		j.token,
		j.bridge,
		uint16(j.recipientChain),
		[32]byte(j.recipient),
		j.arbiterFee.ToBig(),
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Deploy runs New as its own transaction.
func Deploy(state *ledger.State, deployer common.Address, cfg Config) (*Jumpgate, *ledger.Receipt, error) {
	var j *Jumpgate
	receipt, err := state.Transact(deployer, func(tx *ledger.Tx) error {
		var err error
		j, err = New(tx, deployer, cfg)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return j, receipt, nil
}

func (j *Jumpgate) Address() common.Address     { return j.address }
func (j *Jumpgate) Token() common.Address       { return j.token }
func (j *Jumpgate) Bridge() common.Address      { return j.bridge }
func (j *Jumpgate) RecipientChain() vaa.ChainID { return j.recipientChain }
func (j *Jumpgate) Recipient() vaa.Address      { return j.recipient }
func (j *Jumpgate) ArbiterFee() *uint256.Int    { return j.arbiterFee.Clone() }

// Owner reads the current owner. Unlike the configuration it can change, so it is read
// through a transaction.
func (j *Jumpgate) Owner(tx *ledger.Tx) common.Address {
	return j.owner
}

// BridgeTokens forwards the vault's entire token balance to the configured recipient.
// Anyone may call it.
func (j *Jumpgate) BridgeTokens(tx *ledger.Tx, caller common.Address) (*TokensBridged, error) {
	token, err := ledger.FungibleAt(tx, j.token)
	if err != nil {
		return nil, err
	}

	amount := token.BalanceOf(tx, j.address)
	if amount.Lt(uint256.NewInt(DustCutoff)) {
		return nil, fmt.Errorf("%w: balance %s is below %d", ErrAmountTooSmall, amount.ToBig(), uint64(DustCutoff))
	}

	c, ok := tx.Contract(j.bridge)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNoCode, j.bridge)
	}
	bridge, ok := c.(Bridge)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBridge, j.bridge)
	}

	if err := token.Approve(tx, j.address, j.bridge, amount); err != nil {
		return nil, err
	}
	sequence, err := bridge.TransferTokens(tx, j.address, j.token, amount, j.recipientChain, j.recipient, j.arbiterFee, Nonce)
	if err != nil {
		return nil, err
	}

	record := &TokensBridged{
		Token:            j.token,
		Bridge:           j.bridge,
		RecipientChain:   j.recipientChain,
		Recipient:        j.recipient,
		ArbiterFee:       j.arbiterFee.Clone(),
		Amount:           amount,
		Nonce:            Nonce,
		TransferSequence: sequence,
	}
	if err := record.emit(tx, j.address); err != nil {
		return nil, err
	}
	return record, nil
}

// RecoverEther sends the vault's whole native balance to recipient. A zero balance is not
// an error.
func (j *Jumpgate) RecoverEther(tx *ledger.Tx, caller, recipient common.Address) (*uint256.Int, error) {
	if err := j.onlyOwner(caller); err != nil {
		return nil, err
	}

	amount := tx.Balance(j.address)
	if err := tx.Transfer(j.address, recipient, amount); err != nil {
		return nil, err
	}
	if err := ledger.EmitEvent(tx, j.address, evEtherRecovered, recipient, amount.ToBig()); err != nil {
		return nil, err
	}
	return amount, nil
}

// RecoverERC20 sends amount of any ERC-20 held by the vault to recipient.
func (j *Jumpgate) RecoverERC20(tx *ledger.Tx, caller, tokenAddr, recipient common.Address, amount *uint256.Int) error {
	if err := j.onlyOwner(caller); err != nil {
		return err
	}

	token, err := ledger.FungibleAt(tx, tokenAddr)
	if err != nil {
		return err
	}
	if err := token.Transfer(tx, j.address, recipient, amount); err != nil {
		return err
	}
	return ledger.EmitEvent(tx, j.address, evERC20Recovered, tokenAddr, recipient, amount.ToBig())
}

// RecoverERC721 sends NFT tokenID to recipient using a safe transfer, so contract
// recipients must accept ERC-721 tokens.
func (j *Jumpgate) RecoverERC721(tx *ledger.Tx, caller, tokenAddr common.Address, tokenID *uint256.Int, recipient common.Address) error {
	if err := j.onlyOwner(caller); err != nil {
		return err
	}

	nft, err := ledger.NonFungibleAt(tx, tokenAddr)
	if err != nil {
		return err
	}
	if err := nft.SafeTransferFrom(tx, j.address, j.address, recipient, tokenID, nil); err != nil {
		return err
	}
	return ledger.EmitEvent(tx, j.address, evERC721Recovered, tokenAddr, tokenID.ToBig(), recipient)
}

func (j *Jumpgate) TransferOwnership(tx *ledger.Tx, caller, newOwner common.Address) error {
	if err := j.onlyOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrZeroOwner
	}
	return j.setOwner(tx, j.address, newOwner)
}

// RenounceOwnership leaves the vault without an owner. Recovery is impossible afterwards.
func (j *Jumpgate) RenounceOwnership(tx *ledger.Tx, caller common.Address) error {
	if err := j.onlyOwner(caller); err != nil {
		return err
	}
	return j.setOwner(tx, j.address, common.Address{})
}
