package tokenbridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	PayloadTypeTransfer uint8 = 1

	transferPayloadLen = 1 + 32 + 32 + 2 + 32 + 2 + 32
)

var ErrInvalidPayload = errors.New("invalid transfer payload")

// TransferPayload is the type 1 token-bridge payload. Amount and Fee carry 8 decimals.
type TransferPayload struct {
	Amount       *uint256.Int
	TokenAddress vaa.Address
	TokenChain   vaa.ChainID
	To           vaa.Address
	ToChain      vaa.ChainID
	Fee          *uint256.Int
}

func (p *TransferPayload) Serialize() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, PayloadTypeTransfer)
	amount := p.Amount.Bytes32()
	buf.Write(amount[:])
	buf.Write(p.TokenAddress[:])
	vaa.MustWrite(buf, binary.BigEndian, p.TokenChain)
	buf.Write(p.To[:])
	vaa.MustWrite(buf, binary.BigEndian, p.ToChain)
	fee := p.Fee.Bytes32()
	buf.Write(fee[:])
	return buf.Bytes()
}

func DecodeTransferPayload(data []byte) (*TransferPayload, error) {
	if len(data) != transferPayloadLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPayload, transferPayloadLen, len(data))
	}
	if data[0] != PayloadTypeTransfer {
		return nil, fmt.Errorf("%w: unexpected payload type %d", ErrInvalidPayload, data[0])
	}

	p := &TransferPayload{
		Amount:     new(uint256.Int).SetBytes32(data[1:33]),
		TokenChain: vaa.ChainID(binary.BigEndian.Uint16(data[65:67])),
		ToChain:    vaa.ChainID(binary.BigEndian.Uint16(data[99:101])),
		Fee:        new(uint256.Int).SetBytes32(data[101:133]),
	}
	copy(p.TokenAddress[:], data[33:65])
	copy(p.To[:], data[67:99])
	return p, nil
}
