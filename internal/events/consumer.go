// Package events feeds trade and transaction events from Kafka into the core.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/reconciler"
	"solana-wallet-tracker/internal/stats"
)

// Event kinds carried in the envelope.
const (
	KindTrade       = "trade"
	KindTransaction = "transaction"
)

// envelope is decoded first to pick the payload type.
type envelope struct {
	Kind string `json:"kind"`
}

// TradeEvent reports a completed trade for a wallet.
type TradeEvent struct {
	Wallet    string          `json:"wallet"`
	Success   *bool           `json:"success"` // required
	TradeType string          `json:"tradeType"`
	Amount    decimal.Decimal `json:"amount"`
	Pair      string          `json:"pair"`
	Token     string          `json:"token"`
}

// TransactionEvent reports a transfer that was sent to the network.
type TransactionEvent struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Signature string          `json:"signature"`
	Token     string          `json:"token"`
}

// TradeRecorder is the part of the stats aggregator the consumer uses.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, wallet string, outcome stats.TradeOutcome) (*stats.Snapshot, error)
}

// TransactionSubmitter is the part of the reconciler the consumer uses.
type TransactionSubmitter interface {
	Submit(ctx context.Context, req reconciler.SubmitRequest) (*domain.Transaction, error)
}

// SignatureTracker starts waiting for a confirmation. Optional.
type SignatureTracker interface {
	Track(ctx context.Context, signature string) error
}

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Tracker SignatureTracker
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Consumer reads envelopes and dispatches them. Every message is committed
// after handling; a message that cannot be applied is logged and counted.
type Consumer struct {
	reader  messageReader
	trades  TradeRecorder
	txs     TransactionSubmitter
	tracker SignatureTracker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewConsumer creates a Consumer reading cfg.Topic as part of cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, trades TradeRecorder, txs TransactionSubmitter) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 1e6,
		MaxWait:  500 * time.Millisecond,
	})
	return newConsumer(reader, cfg, trades, txs)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, trades TradeRecorder, txs TransactionSubmitter) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Consumer{
		reader:  reader,
		trades:  trades,
		txs:     txs,
		tracker: cfg.Tracker,
		logger:  cfg.Logger.Named("events"),
		metrics: cfg.Metrics,
	}
}

// Run consumes until ctx is done or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handle(ctx, m); err != nil {
			c.logger.Warn("event not applied",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// handle decodes one message and applies it.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.metrics.RecordEvent("invalid", err)
		return fmt.Errorf("decode envelope: %w", err)
	}

	var err error
	switch env.Kind {
	case KindTrade:
		err = c.handleTrade(ctx, m.Value)
	case KindTransaction:
		err = c.handleTransaction(ctx, m.Value)
	default:
		err = fmt.Errorf("unknown event kind %q", env.Kind)
		env.Kind = "unknown"
	}
	c.metrics.RecordEvent(env.Kind, err)
	return err
}

func (c *Consumer) handleTrade(ctx context.Context, data []byte) error {
	var ev TradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode trade: %w", err)
	}
	if ev.Success == nil {
		return domain.Validationf("trade for %s: success is required", ev.Wallet)
	}

	snap, err := c.trades.RecordTrade(ctx, ev.Wallet, stats.TradeOutcome{
		Success:   *ev.Success,
		TradeType: ev.TradeType,
		Amount:    ev.Amount,
		Pair:      ev.Pair,
		Token:     ev.Token,
	})
	if err != nil {
		return fmt.Errorf("record trade for %s: %w", ev.Wallet, err)
	}

	c.logger.Debug("trade applied",
		zap.String("wallet", ev.Wallet),
		zap.Int64("total_trades", snap.Stats.TotalTrades))
	return nil
}

func (c *Consumer) handleTransaction(ctx context.Context, data []byte) error {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}

	_, err := c.txs.Submit(ctx, reconciler.SubmitRequest{
		Sender:    ev.Sender,
		Recipient: ev.Recipient,
		Amount:    ev.Amount,
		Signature: ev.Signature,
		Token:     ev.Token,
	})
	// A redelivered event hits the unique signature; nothing more to do.
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("submit %s: %w", ev.Signature, err)
	}

	if c.tracker != nil {
		if err := c.tracker.Track(ctx, ev.Signature); err != nil {
			c.logger.Warn("track signature failed; sweep will settle it",
				zap.String("signature", ev.Signature), zap.Error(err))
		}
	}
	return nil
}
