package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	signature, sender, recipient, amount::text, token, timestamp, status, updated_at
`

// Insert adds a new transaction. Returns ErrDuplicateKey if signature exists.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (
			signature, sender, recipient, amount, token, timestamp, status, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	updatedAt := tx.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = tx.Timestamp
	}

	_, err := s.pool.Exec(ctx, query,
		tx.Signature, tx.Sender, tx.Recipient, tx.Amount.String(), tx.Token,
		tx.Timestamp, string(tx.Status), updatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE signature = $1`

	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by signature: %w", err)
	}
	return tx, nil
}

// ListByWallet returns transactions involving wallet, newest first, plus the total count.
func (s *TransactionStore) ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*domain.Transaction, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, storage.ErrInvalidInput
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions WHERE sender = $1 OR recipient = $1`
	if err := s.pool.QueryRow(ctx, countQuery, wallet).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions by wallet: %w", err)
	}
	if total == 0 || offset >= total {
		return []*domain.Transaction{}, total, nil
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender = $1 OR recipient = $1
		ORDER BY timestamp DESC, signature DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, wallet, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions by wallet: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListPending returns pending transactions submitted at or before cutoff, oldest first.
func (s *TransactionStore) ListPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND timestamp <= $1
		ORDER BY timestamp ASC, signature ASC
	`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// UpdateStatus sets status to `to` only if the stored status equals `from`.
func (s *TransactionStore) UpdateStatus(ctx context.Context, signature string, from, to domain.TxStatus, at time.Time) error {
	query := `
		UPDATE transactions
		SET status = $3, updated_at = $4
		WHERE signature = $1 AND status = $2
	`

	tag, err := s.pool.Exec(ctx, query, signature, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE signature = $1)`, signature).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check transaction exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStatusMismatch
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		amount string
		status string
	)
	err := row.Scan(
		&tx.Signature, &tx.Sender, &tx.Recipient, &amount, &tx.Token,
		&tx.Timestamp, &status, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = parseNumeric(amount)
	if err != nil {
		return nil, err
	}
	tx.Status = domain.TxStatus(status)
	tx.Timestamp = tx.Timestamp.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}
