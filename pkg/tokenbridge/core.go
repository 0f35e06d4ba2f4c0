// Package tokenbridge emulates the Wormhole core contract and token bridge on a ledger.State.
package tokenbridge

import (
	"fmt"

	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const coreABI = `[
	{"anonymous":false,"type":"event","name":"LogMessagePublished","inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"sequence","type":"uint64"},
		{"indexed":false,"name":"nonce","type":"uint32"},
		{"indexed":false,"name":"payload","type":"bytes"},
		{"indexed":false,"name":"consistencyLevel","type":"uint8"}]}
]`

var CoreABI = ledger.MustParseABI(coreABI)

// Core is the Wormhole core messaging contract. Each emitter has its own sequence counter
// that starts at zero.
type Core struct {
	address   common.Address
	chainID   vaa.ChainID
	sequences map[common.Address]uint64
}

func DeployCore(tx *ledger.Tx, deployer common.Address, chainID vaa.ChainID) (*Core, error) {
	c, err := tx.Deploy(deployer, func(addr common.Address) (ledger.Contract, error) {
		return &Core{
			address:   addr,
			chainID:   chainID,
			sequences: make(map[common.Address]uint64),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*Core), nil
}

func (c *Core) Address() common.Address { return c.address }
func (c *Core) ChainID() vaa.ChainID     { return c.chainID }

// NextSequence returns the sequence the next message from emitter will get.
func (c *Core) NextSequence(tx *ledger.Tx, emitter common.Address) uint64 {
	return c.sequences[emitter]
}

// PublishMessage records a message from sender and returns its sequence.
func (c *Core) PublishMessage(tx *ledger.Tx, sender common.Address, nonce uint32, payload []byte, consistencyLevel uint8) (uint64, error) {
	sequence := c.sequences[sender]
	err := tx.OnRevert(func() {
		if sequence == 0 {
			delete(c.sequences, sender)
		} else {
			c.sequences[sender] = sequence
		}
	})
	if err != nil {
		return 0, err
	}
	c.sequences[sender] = sequence + 1

	err = ledger.EmitEvent(tx, c.address, CoreABI.Events["LogMessagePublished"], sender, sequence, nonce, payload, consistencyLevel)
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// MessagesFromReceipt extracts every message c published in receipt.
func (c *Core) MessagesFromReceipt(receipt *ledger.Receipt) ([]*MessagePublication, error) {
	var msgs []*MessagePublication
	for _, l := range receipt.Events(c.address, CoreABI.Events["LogMessagePublished"]) {
		ev, err := ledger.DecodeEvent(CoreABI.Events["LogMessagePublished"], l)
		if err != nil {
			return nil, err
		}

		sender, ok := ev["sender"].(common.Address)
		if !ok {
			return nil, fmt.Errorf("unexpected sender type %T", ev["sender"])
		}
		emitter, err := vaa.BytesToAddress(sender.Bytes())
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, &MessagePublication{
			TxHash:           l.TxHash,
			BlockNumber:      l.BlockNumber,
			Nonce:            ev["nonce"].(uint32),
			Sequence:         ev["sequence"].(uint64),
			ConsistencyLevel: ev["consistencyLevel"].(uint8),
			EmitterChain:     c.chainID,
			EmitterAddress:   emitter,
			Payload:          ev["payload"].([]byte),
		})
	}
	return msgs, nil
}
