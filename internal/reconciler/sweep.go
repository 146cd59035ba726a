package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
)

// DefaultSweepBatch bounds one sweep when the caller passes a non-positive batch.
const DefaultSweepBatch = 100

// SweepReport summarizes one pending sweep.
type SweepReport struct {
	Checked      int `json:"checked"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	StillPending int `json:"stillPending"`
	Unavailable  int `json:"unavailable"`
	Errors       int `json:"errors"`
}

// SweepPending settles pending transactions submitted more than olderThan ago
// whose outcome the ledger now knows. Ledger outages are counted and leave the
// transaction pending. Only a failure to list or a cancelled ctx aborts the sweep.
func (s *Service) SweepPending(ctx context.Context, olderThan time.Duration, batch int) (SweepReport, error) {
	var report SweepReport
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	start := time.Now()
	cutoff := s.now().Add(-olderThan)

	pending, err := s.txs.ListPending(ctx, cutoff, batch)
	if err != nil {
		err = fmt.Errorf("list pending: %w", err)
		s.metrics.RecordSweep(err)
		return report, err
	}

	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSweep(err)
			return report, err
		}
		report.Checked++

		res, err := s.SettleFromLedger(ctx, tx.Signature)
		switch {
		case errors.Is(err, domain.ErrNetworkUnavailable):
			report.Unavailable++
			continue
		case err != nil:
			report.Errors++
			s.logger.Warn("sweep settle failed", zap.String("signature", tx.Signature), zap.Error(err))
			continue
		}

		switch res.DBStatus {
		case domain.TxStatusConfirmed:
			report.Confirmed++
		case domain.TxStatusFailed:
			report.Failed++
		default:
			report.StillPending++
		}
	}

	s.metrics.RecordSweep(nil)
	s.logger.Info("pending sweep complete",
		zap.Int("checked", report.Checked),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("failed", report.Failed),
		zap.Int("still_pending", report.StillPending),
		zap.Int("unavailable", report.Unavailable),
		zap.Int("errors", report.Errors),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}
