package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/aremia/jumpgates/pkg/db"
	"github.com/aremia/jumpgates/pkg/devnet"
	"github.com/aremia/jumpgates/pkg/jumpgate"
	"github.com/aremia/jumpgates/pkg/readiness"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
)

type fixture struct {
	net    *devnet.Devnet
	gate   *jumpgate.Jumpgate
	client *jumpgate.Client
	db     *db.Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	net, err := devnet.Bootstrap(devnet.DefaultGenesis())
	require.NoError(t, err)
	gate, err := net.DeployJumpgate(devnet.Owner(), vaa.ChainIDTerra, vaa.Address{31: 7}, nil)
	require.NoError(t, err)
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return &fixture{net: net, gate: gate, client: jumpgate.NewClient(net.State, gate), db: database}
}

func (f *fixture) sweeper(interval time.Duration) *Sweeper {
	return New(zap.NewNop(), f.client, f.net.Core, f.db, devnet.Keeper(), interval)
}

func (f *fixture) deposit(t *testing.T, amount uint64) {
	t.Helper()
	_, err := f.net.Deposit(devnet.Depositor(), f.gate.Address(), uint256.NewInt(amount))
	require.NoError(t, err)
}

func TestSweepOnceBelowCutoff(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, jumpgate.DustCutoff-1)

	sweep, err := f.sweeper(time.Second).SweepOnce()
	require.NoError(t, err)
	assert.Nil(t, sweep)

	sweeps, err := f.db.GetSweeps(f.gate.Address())
	require.NoError(t, err)
	assert.Empty(t, sweeps)
}

func TestSweepOnceArchives(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 3*jumpgate.DustCutoff)
	s := f.sweeper(time.Second)

	sweep, err := s.SweepOnce()
	require.NoError(t, err)
	require.NotNil(t, sweep)
	assert.Equal(t, uint256.NewInt(3*jumpgate.DustCutoff), sweep.Amount)
	assert.Equal(t, uint64(0), sweep.Sequence)
	assert.Equal(t, f.gate.Address(), sweep.Jumpgate)

	status, err := f.client.Status()
	require.NoError(t, err)
	assert.True(t, status.TokenBalance.IsZero())

	f.deposit(t, jumpgate.DustCutoff)
	_, err = s.SweepOnce()
	require.NoError(t, err)

	sweeps, err := f.db.GetSweeps(f.gate.Address())
	require.NoError(t, err)
	require.Len(t, sweeps, 2)
	assert.Equal(t, uint64(1), sweeps[1].Sequence)

	emitter, err := vaa.BytesToAddress(f.net.Bridge.Address().Bytes())
	require.NoError(t, err)
	msg, err := f.db.GetMessage(db.MessageID{EmitterChain: vaa.ChainIDEthereum, EmitterAddress: emitter, Sequence: 1})
	require.NoError(t, err)
	assert.Equal(t, sweeps[1].TxHash, msg.TxHash)

	details, err := msg.TransferDetails()
	require.NoError(t, err)
	assert.Equal(t, vaa.ChainIDTerra, details.TargetChain)
	assert.Equal(t, vaa.Address{31: 7}, details.TargetAddress)
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, jumpgate.DustCutoff)

	registry := readiness.NewRegistry()
	s := f.sweeper(10 * time.Millisecond).WithReadiness(registry)

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() { errC <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		sweeps, err := f.db.GetSweeps(f.gate.Address())
		return err == nil && len(sweeps) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, registry.Ready, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errC, context.Canceled)
}

func TestBackoffIsClampedForShortIntervals(t *testing.T) {
	f := newFixture(t)

	for _, interval := range []time.Duration{0, time.Nanosecond, 50 * time.Millisecond} {
		s := f.sweeper(interval)
		assert.Equal(t, minRetryInterval, s.bo.InitialInterval, interval)
		assert.GreaterOrEqual(t, s.bo.MaxInterval, s.bo.InitialInterval, interval)
		assert.Positive(t, s.bo.NextBackOff(), interval)
	}

	s := f.sweeper(time.Minute)
	assert.Equal(t, 6*time.Second, s.bo.InitialInterval)
	assert.Equal(t, time.Minute, s.bo.MaxInterval)
}
