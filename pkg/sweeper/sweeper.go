// Package sweeper periodically forwards a jumpgate's balance once it clears the dust cutoff.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aremia/jumpgates/pkg/db"
	"github.com/aremia/jumpgates/pkg/jumpgate"
	"github.com/aremia/jumpgates/pkg/ledger"
	"github.com/aremia/jumpgates/pkg/readiness"
	"github.com/aremia/jumpgates/pkg/tokenbridge"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	sweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jumpgate_sweeper_sweeps_total",
			Help: "Total number of successful BridgeTokens calls made by the sweeper",
		})
	sweepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jumpgate_sweeper_skipped_total",
			Help: "Total number of polls where the balance was below the dust cutoff",
		})
	sweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jumpgate_sweeper_failures_total",
			Help: "Total number of failed sweep attempts",
		})
	lastSequence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jumpgate_sweeper_last_transfer_sequence",
			Help: "Transfer sequence of the most recent sweep",
		})
)

// minRetryInterval is the shortest wait before retrying a failed sweep.
const minRetryInterval = 100 * time.Millisecond

// MessageSource extracts the bridge messages a receipt published.
type MessageSource interface {
	MessagesFromReceipt(receipt *ledger.Receipt) ([]*tokenbridge.MessagePublication, error)
}

type Sweeper struct {
	logger   *zap.Logger
	client   *jumpgate.Client
	core     MessageSource
	db       *db.Database
	caller   common.Address
	interval time.Duration

	registry *readiness.Registry
	bo       *backoff.ExponentialBackOff
}

// New creates a sweeper that polls client every interval and calls BridgeTokens as caller.
// Messages and sweeps are archived in database.
func New(logger *zap.Logger, client *jumpgate.Client, core MessageSource, database *db.Database, caller common.Address, interval time.Duration) *Sweeper {
	// Retry failures with exponential backoff, capped at the poll interval and never giving up.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = max(interval/10, minRetryInterval)
	bo.MaxInterval = max(interval, bo.InitialInterval)
	bo.MaxElapsedTime = 0

	return &Sweeper{
		logger:   logger.With(zap.Stringer("jumpgate", client.Jumpgate().Address())),
		client:   client,
		core:     core,
		db:       database,
		caller:   caller,
		interval: interval,
		bo:       bo,
	}
}

// WithReadiness reports readiness.Sweeper to registry after the first poll.
func (s *Sweeper) WithReadiness(registry *readiness.Registry) *Sweeper {
	registry.RegisterComponent(readiness.Sweeper)
	s.registry = registry
	return s
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			_, err := s.SweepOnce()
			if s.registry != nil {
				s.registry.SetReady(readiness.Sweeper)
			}

			next := s.interval
			if err != nil {
				sweepFailures.Inc()
				next = s.bo.NextBackOff()
				s.logger.Error("sweep failed", zap.Error(err), zap.Duration("retry_in", next))
			} else {
				s.bo.Reset()
			}
			timer.Reset(next)
		}
	}
}

// SweepOnce bridges the jumpgate's balance if it is at least the dust cutoff. It returns nil
// without error when there was nothing to do.
func (s *Sweeper) SweepOnce() (*db.Sweep, error) {
	status, err := s.client.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read jumpgate status: %w", err)
	}
	if !status.Bridgeable() {
		sweepsSkipped.Inc()
		s.logger.Debug("balance below dust cutoff", zap.String("balance", status.TokenBalance.Dec()))
		return nil, nil
	}

	record, receipt, err := s.client.BridgeTokens(s.caller)
	if errors.Is(err, jumpgate.ErrAmountTooSmall) {
		// drained by someone else since the status read
		sweepsSkipped.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bridge tokens: %w", err)
	}

	sweep := &db.Sweep{
		Timestamp:   time.Now(),
		Jumpgate:    status.Address,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		Amount:      record.Amount,
		Sequence:    record.TransferSequence,
	}

	// The transfer already happened, so archival failures are logged but not returned.
	msgs, err := s.core.MessagesFromReceipt(receipt)
	if err != nil {
		s.logger.Error("failed to extract bridge messages", zap.Error(err))
	}
	for _, msg := range msgs {
		if err := s.db.StoreMessage(msg); err != nil {
			s.logger.Error("failed to store bridge message", zap.String("message_id", msg.MessageIDString()), zap.Error(err))
		}
	}
	if err := s.db.StoreSweep(sweep); err != nil {
		s.logger.Error("failed to store sweep", zap.Error(err))
	}

	sweepsTotal.Inc()
	lastSequence.Set(float64(record.TransferSequence))
	s.logger.Info("tokens bridged",
		zap.String("amount", record.Amount.Dec()),
		zap.Uint64("sequence", record.TransferSequence),
		zap.Stringer("tx_hash", receipt.TxHash),
	)
	return sweep, nil
}
