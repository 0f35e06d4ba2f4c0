package db

import (
	"testing"
	"time"

	"github.com/aremia/jumpgates/pkg/tokenbridge"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var bridgeEmitter = vaa.Address{31: 4}

func getMessage(seq uint64) *tokenbridge.MessagePublication {
	return &tokenbridge.MessagePublication{
		TxHash:           common.HexToHash("0x06f541f5ecfc43407c31587aa6ac3a689e8960f36dc23c332db5510dfc6a4063"),
		BlockNumber:      7,
		Nonce:            0,
		Sequence:         seq,
		ConsistencyLevel: tokenbridge.Finality,
		EmitterChain:     vaa.ChainIDEthereum,
		EmitterAddress:   bridgeEmitter,
		Payload:          []byte{97, 97, 97, 97, 97, 97},
	}
}

func openTestDb(t *testing.T) *Database {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMessageIDFromString(t *testing.T) {
	id, err := MessageIDFromString("2/0000000000000000000000000000000000000000000000000000000000000004/1")
	require.NoError(t, err)

	assert.Equal(t, vaa.ChainIDEthereum, id.EmitterChain)
	assert.Equal(t, bridgeEmitter, id.EmitterAddress)
	assert.Equal(t, uint64(1), id.Sequence)
	assert.Equal(t, "2/0000000000000000000000000000000000000000000000000000000000000004/1", id.String())

	for _, bad := range []string{"", "2/4", "x/04/1", "2/zz/1", "2/04/x", "2/04/1/1"} {
		_, err := MessageIDFromString(bad)
		assert.Error(t, err, bad)
	}
}

func TestKeys(t *testing.T) {
	id := MessageIDFromPublication(getMessage(12))
	assert.Equal(t, "message/2/0000000000000000000000000000000000000000000000000000000000000004/12", string(id.Bytes()))
	assert.Equal(t, "message/2/0000000000000000000000000000000000000000000000000000000000000004/", string(id.EmitterPrefixBytes()))

	assert.Equal(t, "message/2/", string((&MessageID{EmitterChain: vaa.ChainIDEthereum}).EmitterPrefixBytes()))
}

func TestStoreAndGetMessage(t *testing.T) {
	db := openTestDb(t)
	msg := getMessage(3)
	id := MessageIDFromPublication(msg)

	ok, err := db.HasMessage(*id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.GetMessage(*id)
	require.ErrorIs(t, err, ErrMessageNotFound)

	require.NoError(t, db.StoreMessage(msg))

	ok, err = db.HasMessage(*id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.GetMessage(*id)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestFindEmitterSequenceGap(t *testing.T) {
	db := openTestDb(t)
	for _, seq := range []uint64{2, 3, 5, 9, 10} {
		require.NoError(t, db.StoreMessage(getMessage(seq)))
	}

	gaps, first, last, err := db.FindEmitterSequenceGap(MessageID{EmitterChain: vaa.ChainIDEthereum, EmitterAddress: bridgeEmitter})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), first)
	assert.Equal(t, uint64(10), last)
	assert.Equal(t, []uint64{4, 6, 7, 8}, gaps)

	gaps, first, last, err = db.FindEmitterSequenceGap(MessageID{EmitterChain: vaa.ChainIDSolana})
	require.NoError(t, err)
	assert.Empty(t, gaps)
	assert.Zero(t, first)
	assert.Zero(t, last)
}

func TestSweeps(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	gate := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	other := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

	now := time.Unix(time.Now().Unix(), 0)
	// stored out of order, and past 9 to catch lexicographic ordering
	for _, seq := range []uint64{10, 2, 9} {
		require.NoError(t, db.StoreSweep(&Sweep{
			Timestamp:   now,
			Jumpgate:    gate,
			TxHash:      common.BytesToHash([]byte{byte(seq)}),
			BlockNumber: seq + 100,
			Amount:      uint256.NewInt(seq * 1e10),
			Sequence:    seq,
		}))
	}
	require.NoError(t, db.StoreSweep(&Sweep{Timestamp: now, Jumpgate: other, Amount: uint256.NewInt(1), Sequence: 1}))

	sweeps, err := db.GetSweeps(gate)
	require.NoError(t, err)
	require.Len(t, sweeps, 3)
	for i, want := range []uint64{2, 9, 10} {
		assert.Equal(t, want, sweeps[i].Sequence)
		assert.Equal(t, gate, sweeps[i].Jumpgate)
		assert.Equal(t, uint256.NewInt(want*1e10), sweeps[i].Amount)
		assert.Equal(t, want+100, sweeps[i].BlockNumber)
		assert.True(t, now.Equal(sweeps[i].Timestamp))
	}

	none, err := db.GetSweeps(common.Address{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnmarshalSweepRejectsBadLength(t *testing.T) {
	_, err := UnmarshalSweep(make([]byte, marshaledSweepLen-1))
	require.Error(t, err)
}
