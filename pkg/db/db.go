package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aremia/jumpgates/pkg/tokenbridge"
	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var storedMessagesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "jumpgate_db_total_messages",
		Help: "Total number of bridge messages added to database",
	})

type Database struct {
	db *badger.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Database, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{db: db}, nil
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory() (*Database, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

type MessageID struct {
	EmitterChain   vaa.ChainID
	EmitterAddress vaa.Address
	Sequence       uint64
}

var (
	ErrMessageNotFound = errors.New("requested message not found in store")
	nullAddr           = vaa.Address{}
)

// MessageIDFromString parses a <chain>/<address>/<sequence> string.
func MessageIDFromString(s string) (*MessageID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return nil, errors.New("invalid message id")
	}

	emitterChain, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid emitter chain: %s", err)
	}

	emitterAddress, err := vaa.StringToAddress(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid emitter address: %s", err)
	}

	sequence, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence: %s", err)
	}

	return &MessageID{
		EmitterChain:   vaa.ChainID(emitterChain),
		EmitterAddress: emitterAddress,
		Sequence:       sequence,
	}, nil
}

func MessageIDFromPublication(msg *tokenbridge.MessagePublication) *MessageID {
	return &MessageID{
		EmitterChain:   msg.EmitterChain,
		EmitterAddress: msg.EmitterAddress,
		Sequence:       msg.Sequence,
	}
}

func (i *MessageID) String() string {
	return fmt.Sprintf("%d/%s/%d", i.EmitterChain, i.EmitterAddress, i.Sequence)
}

func (i *MessageID) Bytes() []byte {
	return []byte(fmt.Sprintf("message/%d/%s/%d", i.EmitterChain, i.EmitterAddress, i.Sequence))
}

func (i *MessageID) EmitterPrefixBytes() []byte {
	if i.EmitterAddress == nullAddr {
		return []byte(fmt.Sprintf("message/%d/", i.EmitterChain))
	}
	return []byte(fmt.Sprintf("message/%d/%s/", i.EmitterChain, i.EmitterAddress))
}

// StoreMessage archives a published message. Storing the same ID twice overwrites it.
func (d *Database) StoreMessage(msg *tokenbridge.MessagePublication) error {
	b, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MessageIDFromPublication(msg).Bytes(), b)
	})
	if err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	storedMessagesTotal.Inc()
	return nil
}

func (d *Database) HasMessage(id MessageID) (bool, error) {
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(id.Bytes())
		return err
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

func (d *Database) GetMessage(id MessageID) (*tokenbridge.MessagePublication, error) {
	var msg tokenbridge.MessagePublication
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id.Bytes())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msg.UnmarshalBinary(val)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// FindEmitterSequenceGap returns the sequences missing between the lowest and highest
// stored message of the emitter.
func (d *Database) FindEmitterSequenceGap(prefix MessageID) (resp []uint64, firstSeq uint64, lastSeq uint64, err error) {
	resp = make([]uint64, 0)
	err = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := prefix.EmitterPrefixBytes()

		// Keys sort lexicographically, not numerically, so collect first.
		seqs := make(map[uint64]bool)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			i := strings.LastIndexByte(string(key), '/')
			seq, err := strconv.ParseUint(string(key[i+1:]), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed message key %s: %w", string(key), err)
			}
			seqs[seq] = true
		}
		if len(seqs) == 0 {
			return nil
		}

		first := true
		for k := range seqs {
			if first || k < firstSeq {
				firstSeq = k
			}
			if first || k > lastSeq {
				lastSeq = k
			}
			first = false
		}

		for i := firstSeq; i <= lastSeq; i++ {
			if !seqs[i] {
				resp = append(resp, i)
			}
		}
		return nil
	})
	return
}
