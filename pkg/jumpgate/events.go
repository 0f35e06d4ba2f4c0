package jumpgate

import (
	"fmt"
	"math/big"

	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const jumpgateABI = `[
	{"anonymous":false,"type":"event","name":"JumpgateCreated","inputs":[
		{"indexed":true,"name":"_token","type":"address"},
		{"indexed":true,"name":"_bridge","type":"address"},
		{"indexed":false,"name":"_recipientChain","type":"uint16"},
		{"indexed":false,"name":"_recipient","type":"bytes32"},
		{"indexed":false,"name":"_arbiterFee","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"TokensBridged","inputs":[
		{"indexed":true,"name":"_token","type":"address"},
		{"indexed":true,"name":"_bridge","type":"address"},
		{"indexed":false,"name":"_recipientChain","type":"uint16"},
		{"indexed":false,"name":"_recipient","type":"bytes32"},
		{"indexed":false,"name":"_arbiterFee","type":"uint256"},
		{"indexed":false,"name":"_amount","type":"uint256"},
		{"indexed":false,"name":"_nonce","type":"uint32"},
		{"indexed":false,"name":"_transferSequence","type":"uint64"}]},
	{"anonymous":false,"type":"event","name":"EtherRecovered","inputs":[
		{"indexed":true,"name":"_recipient","type":"address"},
		{"indexed":false,"name":"_amount","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ERC20Recovered","inputs":[
		{"indexed":true,"name":"_token","type":"address"},
		{"indexed":true,"name":"_recipient","type":"address"},
		{"indexed":false,"name":"_amount","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ERC721Recovered","inputs":[
		{"indexed":true,"name":"_token","type":"address"},
		{"indexed":true,"name":"_tokenId","type":"uint256"},
		{"indexed":true,"name":"_recipient","type":"address"}]},
	{"anonymous":false,"type":"event","name":"OwnershipTransferred","inputs":[
		{"indexed":true,"name":"previousOwner","type":"address"},
		{"indexed":true,"name":"newOwner","type":"address"}]}
]`

// ABI holds every event a jumpgate emits.
var ABI = ledger.MustParseABI(jumpgateABI)

var (
	evJumpgateCreated      = ABI.Events["JumpgateCreated"]
	evTokensBridged        = ABI.Events["TokensBridged"]
	evEtherRecovered       = ABI.Events["EtherRecovered"]
	evERC20Recovered       = ABI.Events["ERC20Recovered"]
	evERC721Recovered      = ABI.Events["ERC721Recovered"]
	evOwnershipTransferred = ABI.Events["OwnershipTransferred"]
)

// TokensBridged is the record of a successful sweep.
type TokensBridged struct {
	Token            common.Address
	Bridge           common.Address
	RecipientChain   vaa.ChainID
	Recipient        vaa.Address
	ArbiterFee       *uint256.Int
	Amount           *uint256.Int
	Nonce            uint32
	TransferSequence uint64
}

func (e *TokensBridged) emit(tx *ledger.Tx, gate common.Address) error {
	return ledger.EmitEvent(tx, gate, evTokensBridged,
		e.Token,
		e.Bridge,
		uint16(e.RecipientChain),
		[32]byte(e.Recipient),
		e.ArbiterFee.ToBig(),
		e.Amount.ToBig(),
		e.Nonce,
		e.TransferSequence,
	)
}

// ParseTokensBridged returns the TokensBridged records gate emitted in receipt.
func ParseTokensBridged(receipt *ledger.Receipt, gate common.Address) ([]*TokensBridged, error) {
	var out []*TokensBridged
	for _, l := range receipt.Events(gate, evTokensBridged) {
		ev, err := ledger.DecodeEvent(evTokensBridged, l)
		if err != nil {
			return nil, err
		}

		arbiterFee, err := toUint256(ev["_arbiterFee"])
		if err != nil {
			return nil, err
		}
		amount, err := toUint256(ev["_amount"])
		if err != nil {
			return nil, err
		}

		out = append(out, &TokensBridged{
			Token:            ev["_token"].(common.Address),
			Bridge:           ev["_bridge"].(common.Address),
			RecipientChain:   vaa.ChainID(ev["_recipientChain"].(uint16)),
			Recipient:        vaa.Address(ev["_recipient"].([32]byte)),
			ArbiterFee:       arbiterFee,
			Amount:           amount,
			Nonce:            ev["_nonce"].(uint32),
			TransferSequence: ev["_transferSequence"].(uint64),
		})
	}
	return out, nil
}

// Decode unpacks any jumpgate record into a map keyed by argument name, along with the
// event name.
func Decode(l *types.Log) (string, map[string]interface{}, error) {
	if len(l.Topics) == 0 {
		return "", nil, fmt.Errorf("anonymous log")
	}
	ev, err := ABI.EventByID(l.Topics[0])
	if err != nil {
		return "", nil, err
	}
	fields, err := ledger.DecodeEvent(*ev, l)
	if err != nil {
		return "", nil, err
	}
	return ev.Name, fields, nil
}

func toUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", b)
	}
	return u, nil
}
