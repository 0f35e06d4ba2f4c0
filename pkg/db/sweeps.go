package db

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const sweepPrefix = "sweep/"

// marshaledSweepLen is timestamp, jumpgate, tx hash, block number, amount and sequence.
const marshaledSweepLen = 8 + 20 + 32 + 8 + 32 + 8

// Sweep records one successful BridgeTokens call.
type Sweep struct {
	Timestamp   time.Time
	Jumpgate    common.Address
	TxHash      common.Hash
	BlockNumber uint64
	Amount      *uint256.Int
	Sequence    uint64
}

func (s *Sweep) Marshal() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, uint64(s.Timestamp.Unix())) // #nosec G115 -- timestamps are never negative
	buf.Write(s.Jumpgate.Bytes())
	buf.Write(s.TxHash.Bytes())
	vaa.MustWrite(buf, binary.BigEndian, s.BlockNumber)
	amount := s.Amount.Bytes32()
	buf.Write(amount[:])
	vaa.MustWrite(buf, binary.BigEndian, s.Sequence)
	return buf.Bytes()
}

func UnmarshalSweep(data []byte) (*Sweep, error) {
	if len(data) != marshaledSweepLen {
		return nil, fmt.Errorf("sweep record must be %d bytes, got %d", marshaledSweepLen, len(data))
	}

	s := &Sweep{}
	reader := bytes.NewReader(data)

	var unixSeconds uint64
	if err := binary.Read(reader, binary.BigEndian, &unixSeconds); err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}
	s.Timestamp = time.Unix(int64(unixSeconds), 0) // #nosec G115 -- written from a non-negative int64

	if _, err := io.ReadFull(reader, s.Jumpgate[:]); err != nil {
		return nil, fmt.Errorf("failed to read jumpgate: %w", err)
	}
	if _, err := io.ReadFull(reader, s.TxHash[:]); err != nil {
		return nil, fmt.Errorf("failed to read tx hash: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &s.BlockNumber); err != nil {
		return nil, fmt.Errorf("failed to read block number: %w", err)
	}
	amount := make([]byte, 32)
	if _, err := io.ReadFull(reader, amount); err != nil {
		return nil, fmt.Errorf("failed to read amount: %w", err)
	}
	s.Amount = new(uint256.Int).SetBytes32(amount)
	if err := binary.Read(reader, binary.BigEndian, &s.Sequence); err != nil {
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	return s, nil
}

func sweepKeyPrefix(gate common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/", sweepPrefix, strings.ToLower(gate.Hex())))
}

// Sequences are zero padded so keys sort in sequence order.
func sweepKey(s *Sweep) []byte {
	return []byte(fmt.Sprintf("%s%020d", sweepKeyPrefix(s.Jumpgate), s.Sequence))
}

func (d *Database) StoreSweep(s *Sweep) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sweepKey(s), s.Marshal())
	})
	if err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// GetSweeps returns every sweep of gate, ordered by transfer sequence.
func (d *Database) GetSweeps(gate common.Address) ([]*Sweep, error) {
	var sweeps []*Sweep
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := sweepKeyPrefix(gate)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				s, err := UnmarshalSweep(val)
				if err != nil {
					return fmt.Errorf("failed to unmarshal sweep %s: %w", string(item.Key()), err)
				}
				sweeps = append(sweeps, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sweeps, nil
}
