package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TradeArchive implements storage.TradeArchive using ClickHouse.
// Rows land in a ReplacingMergeTree keyed by entry id, so re-appends collapse.
type TradeArchive struct {
	conn *Conn
}

// NewTradeArchive creates a new TradeArchive.
func NewTradeArchive(conn *Conn) *TradeArchive {
	return &TradeArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchive)(nil)

// Append stores one entry. Skips the insert if the entry id is already present.
func (a *TradeArchive) Append(ctx context.Context, wallet string, e domain.TradeEntry) error {
	if wallet == "" || e.ID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := a.exists(ctx, wallet, e.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			entry_id, wallet_address, timestamp_ms, success, trade_type, amount, pair, token
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var success uint8
	if e.Success {
		success = 1
	}
	err = batch.Append(
		e.ID, wallet, uint64(e.Timestamp.UnixMilli()), success,
		e.TradeType, e.Amount, e.Pair, e.Token,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByWallet returns up to limit entries, ordered by timestamp DESC.
func (a *TradeArchive) ListByWallet(ctx context.Context, wallet string, limit int) ([]domain.TradeEntry, error) {
	query := `
		SELECT entry_id, timestamp_ms, success, trade_type, amount, pair, token
		FROM trade_events FINAL
		WHERE wallet_address = ?
		ORDER BY timestamp_ms DESC, entry_id DESC
	`
	args := []interface{}{wallet}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, uint64(limit))
	}

	rows, err := a.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trade events by wallet: %w", err)
	}
	defer rows.Close()

	return scanTradeEntries(rows)
}

// exists checks if an entry with the given id exists for wallet.
func (a *TradeArchive) exists(ctx context.Context, wallet, entryID string) (bool, error) {
	query := `
		SELECT count(*) FROM trade_events
		WHERE wallet_address = ? AND entry_id = ?
	`

	var count uint64
	if err := a.conn.QueryRow(ctx, query, wallet, entryID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTradeEntries(rows chRows) ([]domain.TradeEntry, error) {
	var entries []domain.TradeEntry

	for rows.Next() {
		var (
			e           domain.TradeEntry
			timestampMs uint64
			success     uint8
		)
		err := rows.Scan(&e.ID, &timestampMs, &success, &e.TradeType, &e.Amount, &e.Pair, &e.Token)
		if err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}
		e.Timestamp = time.UnixMilli(int64(timestampMs)).UTC()
		e.Success = success == 1
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}

	return entries, nil
}
