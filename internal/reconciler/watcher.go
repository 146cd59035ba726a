package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/solana"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Commitment string        // level to wait for; "confirmed" when empty
	MaxWait    time.Duration // per signature; 2m when zero
	Logger     *zap.Logger
}

// Watcher settles transactions as soon as the node reports them, instead of
// waiting for the next pending sweep.
type Watcher struct {
	ws         solana.WSClient
	svc        *Service
	commitment string
	maxWait    time.Duration
	logger     *zap.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewWatcher creates a Watcher. Waits started by Track end when ctx is done.
func NewWatcher(ctx context.Context, ws solana.WSClient, svc *Service, cfg WatcherConfig) *Watcher {
	if cfg.Commitment == "" {
		cfg.Commitment = solana.CommitmentConfirmed
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Watcher{
		ws:         ws,
		svc:        svc,
		commitment: cfg.Commitment,
		maxWait:    cfg.MaxWait,
		logger:     cfg.Logger.Named("watcher"),
		ctx:        ctx,
	}
}

// Track subscribes to signature and settles it when the notification arrives.
// It returns once the subscription is active; ctx bounds only the subscribe call.
func (w *Watcher) Track(ctx context.Context, signature string) error {
	ch, cancel, err := w.ws.SubscribeSignature(ctx, signature, w.commitment)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w: %v", signature, domain.ErrNetworkUnavailable, err)
	}

	w.wg.Add(1)
	go w.await(signature, ch, cancel)
	return nil
}

// await settles signature from its notification. Every exit path cancels the
// subscription so abandoned waits do not pile up on the node.
func (w *Watcher) await(signature string, ch <-chan solana.SignatureNotification, cancel func()) {
	defer w.wg.Done()
	defer cancel()

	timer := time.NewTimer(w.maxWait)
	defer timer.Stop()

	select {
	case n, ok := <-ch:
		if !ok {
			return
		}
		next := domain.TxStatusConfirmed
		if n.Err != nil {
			next = domain.TxStatusFailed
		}
		if _, err := w.svc.Settle(w.ctx, signature, next); err != nil {
			w.logger.Warn("settle from notification failed",
				zap.String("signature", signature),
				zap.String("status", string(next)),
				zap.Error(err))
		}

	case <-timer.C:
		w.logger.Debug("gave up waiting for signature; sweep will pick it up",
			zap.String("signature", signature))

	case <-w.ctx.Done():
	}
}

// Wait blocks until every tracked signature has been settled or abandoned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}
