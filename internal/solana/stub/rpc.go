package stub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"solana-wallet-tracker/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu       sync.RWMutex
	statuses map[string]*solana.SignatureStatus
	balances map[string]uint64
	slot     int64
	err      error
	delay    time.Duration

	calls atomic.Int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		statuses: make(map[string]*solana.SignatureStatus),
		balances: make(map[string]uint64),
	}
}

// GetSignatureStatuses returns the stored status for each signature, nil for unknown ones.
func (c *RPCClient) GetSignatureStatuses(ctx context.Context, signatures []string, _ bool) ([]*solana.SignatureStatus, error) {
	if err := c.enter(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

// GetBalance returns the stored balance, zero for unknown accounts.
func (c *RPCClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	if err := c.enter(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[pubkey], nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(ctx context.Context) (int64, error) {
	if err := c.enter(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot, nil
}

// enter counts the call, waits out the configured delay and returns the configured failure.
func (c *RPCClient) enter(ctx context.Context) error {
	c.calls.Add(1)

	c.mu.RLock()
	delay, err := c.delay, c.err
	c.mu.RUnlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

// SetStatus sets the status returned for signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[signature] = status
}

// SetBalance sets the lamport balance returned for pubkey.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[pubkey] = lamports
}

// SetSlot sets the slot returned by GetSlot.
func (c *RPCClient) SetSlot(slot int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// SetError makes every call fail with err until cleared with nil.
func (c *RPCClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// SetDelay makes every call wait d before answering.
func (c *RPCClient) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Calls returns the number of calls made.
func (c *RPCClient) Calls() int64 {
	return c.calls.Load()
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)
