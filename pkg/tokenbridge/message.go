package tokenbridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// marshaledMsgLenMin is the size of a marshaled message with an empty payload:
// tx hash, block number, nonce, sequence, consistency level, emitter chain, emitter address
// and the payload length prefix.
const marshaledMsgLenMin = 32 + 8 + 4 + 8 + 1 + 2 + 32 + 4

var ErrMessageTooShort = errors.New("message publication too short")

// MessagePublication is a message observed on the core contract.
type MessagePublication struct {
	TxHash           common.Hash
	BlockNumber      uint64
	Nonce            uint32
	Sequence         uint64
	ConsistencyLevel uint8
	EmitterChain     vaa.ChainID
	EmitterAddress   vaa.Address
	Payload          []byte
}

// MessageIDString returns <chain>/<emitter>/<sequence>, the same format VAA IDs use.
func (msg *MessagePublication) MessageIDString() string {
	return fmt.Sprintf("%d/%s/%d", msg.EmitterChain, msg.EmitterAddress, msg.Sequence)
}

// TransferDetails decodes the token-transfer header of the payload.
func (msg *MessagePublication) TransferDetails() (*vaa.TransferPayloadHdr, error) {
	return vaa.DecodeTransferPayloadHdr(msg.Payload)
}

func (msg *MessagePublication) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.Write(msg.TxHash.Bytes())
	vaa.MustWrite(buf, binary.BigEndian, msg.BlockNumber)
	vaa.MustWrite(buf, binary.BigEndian, msg.Nonce)
	vaa.MustWrite(buf, binary.BigEndian, msg.Sequence)
	vaa.MustWrite(buf, binary.BigEndian, msg.ConsistencyLevel)
	vaa.MustWrite(buf, binary.BigEndian, msg.EmitterChain)
	buf.Write(msg.EmitterAddress.Bytes())

	if uint64(len(msg.Payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too long: %d bytes", len(msg.Payload))
	}
	vaa.MustWrite(buf, binary.BigEndian, uint32(len(msg.Payload))) // #nosec G115 -- checked above
	buf.Write(msg.Payload)

	return buf.Bytes(), nil
}

func (msg *MessagePublication) UnmarshalBinary(data []byte) error {
	if len(data) < marshaledMsgLenMin {
		return ErrMessageTooShort
	}

	reader := bytes.NewReader(data)

	if _, err := io.ReadFull(reader, msg.TxHash[:]); err != nil {
		return fmt.Errorf("failed to read tx hash: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &msg.BlockNumber); err != nil {
		return fmt.Errorf("failed to read block number: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &msg.Nonce); err != nil {
		return fmt.Errorf("failed to read nonce: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &msg.Sequence); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &msg.ConsistencyLevel); err != nil {
		return fmt.Errorf("failed to read consistency level: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &msg.EmitterChain); err != nil {
		return fmt.Errorf("failed to read emitter chain: %w", err)
	}
	if _, err := io.ReadFull(reader, msg.EmitterAddress[:]); err != nil {
		return fmt.Errorf("failed to read emitter address: %w", err)
	}

	var payloadLen uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return fmt.Errorf("failed to read payload length: %w", err)
	}
	if int(payloadLen) != reader.Len() {
		return fmt.Errorf("payload length %d does not match remaining %d bytes", payloadLen, reader.Len())
	}
	msg.Payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(reader, msg.Payload); err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	return nil
}
