package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/observability"
)

// CachedClient wraps a Client and remembers terminal signature statuses.
// Confirmed and failed answers can never change, so they are safe to reuse;
// pending and unknown answers and balances always go to the ledger.
type CachedClient struct {
	next    Client
	cache   *ristretto.Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedClient creates a CachedClient holding up to maxEntries statuses for ttl.
func NewCachedClient(next Client, maxEntries int64, ttl time.Duration, metrics *observability.Metrics) (*CachedClient, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create status cache: %w", err)
	}
	return &CachedClient{next: next, cache: cache, ttl: ttl, metrics: metrics}, nil
}

// Compile-time interface check.
var _ Client = (*CachedClient)(nil)

// SignatureStatus returns a cached terminal status or asks the wrapped client.
func (c *CachedClient) SignatureStatus(ctx context.Context, signature string) (domain.NetworkStatus, error) {
	if v, ok := c.cache.Get(signature); ok {
		if ns, ok := v.(domain.NetworkStatus); ok {
			c.metrics.RecordLedgerCacheHit()
			return ns, nil
		}
	}

	ns, err := c.next.SignatureStatus(ctx, signature)
	if err != nil {
		return ns, err
	}
	if _, terminal := ns.State.TxStatus(); terminal {
		c.cache.SetWithTTL(signature, ns, 1, c.ttl)
	}
	return ns, nil
}

// Balance is never cached.
func (c *CachedClient) Balance(ctx context.Context, wallet string) (uint64, error) {
	return c.next.Balance(ctx, wallet)
}

// Slot is never cached. It fails when next has no Slot method.
func (c *CachedClient) Slot(ctx context.Context) (int64, error) {
	sc, ok := c.next.(interface {
		Slot(ctx context.Context) (int64, error)
	})
	if !ok {
		return 0, fmt.Errorf("slot: %w: ledger client has no slot query", domain.ErrNetworkUnavailable)
	}
	return sc.Slot(ctx)
}

// Wait blocks until pending cache writes are visible.
func (c *CachedClient) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedClient) Close() {
	c.cache.Close()
}
