package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
// Embedded collections live in JSONB columns and are rewritten together.
type UserStore struct {
	pool *Pool
	now  func() time.Time
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

const userColumns = `
	wallet_address, balance::text, profile, trading_stats, watchlist, alerts,
	created_at, updated_at, version
`

// userDocs holds the JSONB encodings of a user's embedded collections.
type userDocs struct {
	profile, stats, watchlist, alerts []byte
}

func encodeUserDocs(u *domain.User) (userDocs, error) {
	var (
		d   userDocs
		err error
	)
	if d.profile, err = json.Marshal(u.Profile); err != nil {
		return d, fmt.Errorf("marshal profile: %w", err)
	}
	if d.stats, err = json.Marshal(u.TradingStats); err != nil {
		return d, fmt.Errorf("marshal trading stats: %w", err)
	}
	watchlist := u.Watchlist
	if watchlist == nil {
		watchlist = []domain.WatchlistEntry{}
	}
	if d.watchlist, err = json.Marshal(watchlist); err != nil {
		return d, fmt.Errorf("marshal watchlist: %w", err)
	}
	alerts := u.Alerts
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	if d.alerts, err = json.Marshal(alerts); err != nil {
		return d, fmt.Errorf("marshal alerts: %w", err)
	}
	return d, nil
}

// Insert adds a new user. Returns ErrDuplicateKey if wallet exists.
func (s *UserStore) Insert(ctx context.Context, u *domain.User) error {
	if u == nil || u.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	docs, err := encodeUserDocs(u)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			wallet_address, balance, profile, trading_stats, watchlist, alerts,
			created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
	`

	_, err = s.pool.Exec(ctx, query,
		u.WalletAddress, u.Balance.String(), docs.profile, docs.stats, docs.watchlist, docs.alerts,
		u.CreatedAt, u.UpdatedAt, u.Version,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) Get(ctx context.Context, wallet string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, wallet))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction. Any failure rolls the whole change back.
func (s *UserStore) Update(ctx context.Context, wallet string, fn func(u *domain.User) error) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1 FOR UPDATE`
	u, err := scanUser(tx.QueryRow(ctx, query, wallet))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	prevVersion := u.Version
	if err := fn(u); err != nil {
		return nil, err
	}
	u.WalletAddress = wallet
	u.Version = prevVersion + 1
	u.UpdatedAt = s.now()

	docs, err := encodeUserDocs(u)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE users
		SET balance = $2, profile = $3, trading_stats = $4, watchlist = $5, alerts = $6,
			updated_at = $7, version = $8
		WHERE wallet_address = $1 AND version = $9
	`
	tag, err := tx.Exec(ctx, update,
		wallet, u.Balance.String(), docs.profile, docs.stats, docs.watchlist, docs.alerts,
		u.UpdatedAt, u.Version, prevVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("update user: version %d changed underneath", prevVersion)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return u, nil
}

// Delete removes a user. Returns ErrNotFound if not exists.
func (s *UserStore) Delete(ctx context.Context, wallet string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE wallet_address = $1`, wallet)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u       domain.User
		balance string
		docs    userDocs
	)
	err := row.Scan(
		&u.WalletAddress, &balance, &docs.profile, &docs.stats, &docs.watchlist, &docs.alerts,
		&u.CreatedAt, &u.UpdatedAt, &u.Version,
	)
	if err != nil {
		return nil, err
	}

	if u.Balance, err = parseNumeric(balance); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(docs.profile, &u.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if err := json.Unmarshal(docs.stats, &u.TradingStats); err != nil {
		return nil, fmt.Errorf("unmarshal trading stats: %w", err)
	}
	if err := json.Unmarshal(docs.watchlist, &u.Watchlist); err != nil {
		return nil, fmt.Errorf("unmarshal watchlist: %w", err)
	}
	if err := json.Unmarshal(docs.alerts, &u.Alerts); err != nil {
		return nil, fmt.Errorf("unmarshal alerts: %w", err)
	}
	if u.Watchlist == nil {
		u.Watchlist = []domain.WatchlistEntry{}
	}
	if u.Alerts == nil {
		u.Alerts = []domain.Alert{}
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
