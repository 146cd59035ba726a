package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every request with result for the expected method.
func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	result := map[string]interface{}{
		"context": map[string]interface{}{"slot": int64(500)},
		"value": []interface{}{
			map[string]interface{}{
				"slot":               int64(480),
				"confirmations":      nil,
				"err":                nil,
				"confirmationStatus": "finalized",
			},
			nil,
			map[string]interface{}{
				"slot":               int64(499),
				"confirmations":      int64(1),
				"err":                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
				"confirmationStatus": "processed",
			},
		},
	}
	server := rpcServer(t, "getSignatureStatuses", result)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	statuses, err := client.GetSignatureStatuses(ctx, []string{"sig1", "sig2", "sig3"}, true)
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}

	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	if statuses[0] == nil {
		t.Fatal("expected status for sig1")
	}
	if statuses[0].Slot != 480 {
		t.Errorf("expected slot 480, got %d", statuses[0].Slot)
	}
	if statuses[0].Confirmations != nil {
		t.Errorf("expected nil confirmations once rooted, got %d", *statuses[0].Confirmations)
	}
	if statuses[0].Failed() {
		t.Error("sig1 should not be failed")
	}
	if !statuses[0].Reached(CommitmentConfirmed) {
		t.Error("finalized should satisfy confirmed")
	}

	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown sig2, got %+v", statuses[1])
	}

	if statuses[2] == nil {
		t.Fatal("expected status for sig3")
	}
	if !statuses[2].Failed() {
		t.Error("sig3 should be failed")
	}
	if statuses[2].Reached(CommitmentConfirmed) {
		t.Error("processed should not satisfy confirmed")
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	result := map[string]interface{}{
		"context": map[string]interface{}{"slot": int64(1)},
		"value":   uint64(2_500_000_000),
	}
	server := rpcServer(t, "getBalance", result)
	defer server.Close()

	client := NewHTTPClient(server.URL)

	lamports, err := client.GetBalance(context.Background(), "addr")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if lamports != 2_500_000_000 {
		t.Errorf("expected 2500000000 lamports, got %d", lamports)
	}
}

func TestHTTPClient_GetSlot(t *testing.T) {
	server := rpcServer(t, "getSlot", int64(123456))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 123456 {
		t.Errorf("expected slot 123456, got %d", slot)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)

	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error after retries")
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    RPCErrInvalidParams,
				"message": "Invalid param: WrongSize",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetSignatureStatuses(context.Background(), []string{"bad"}, false)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}

	if rpcErr.Code != RPCErrInvalidParams {
		t.Errorf("expected code %d, got %d", RPCErrInvalidParams, rpcErr.Code)
	}

	if attempts.Load() != 1 {
		t.Errorf("RPC errors should not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSignatureStatus_ReachedWithoutConfirmationStatus(t *testing.T) {
	two := int64(2)
	tests := []struct {
		name   string
		status SignatureStatus
		level  string
		want   bool
	}{
		{"rooted satisfies finalized", SignatureStatus{Slot: 5}, CommitmentFinalized, true},
		{"rooted satisfies confirmed", SignatureStatus{Slot: 5}, CommitmentConfirmed, true},
		{"counted confirmations are processed", SignatureStatus{Slot: 5, Confirmations: &two}, CommitmentProcessed, true},
		{"counted confirmations are not confirmed", SignatureStatus{Slot: 5, Confirmations: &two}, CommitmentConfirmed, false},
		{"explicit level wins", SignatureStatus{Slot: 5, ConfirmationStatus: CommitmentProcessed}, CommitmentConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Reached(tt.level); got != tt.want {
				t.Errorf("Reached(%s) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
