package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// drain keeps a server-side connection open until the client goes away.
func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func newIdleServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drain(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	server := newIdleServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != "testsig" {
			t.Errorf("unexpected params: %v", req.Params)
		}

		if err := c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 777}); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		time.Sleep(50 * time.Millisecond)
		notif := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"subscription": 777,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 4242},
					"value":   map[string]interface{}{"err": nil},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		drain(c)
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, cancel, err := client.SubscribeSignature(ctx, "testsig", CommitmentConfirmed)
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	defer cancel()

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if n.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", n.Signature)
		}
		if n.Slot != 4242 {
			t.Errorf("expected slot 4242, got %d", n.Slot)
		}
		if n.Err != nil {
			t.Errorf("expected success, got err %v", n.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	// One notification per subscription, then the channel closes.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after notification")
	}
}

// subscribeAndNotify confirms the first subscribe with subID, sends one
// notification for it and then forwards every later request to rest.
func subscribeAndNotify(t *testing.T, subID int64, notify bool, rest chan<- wsRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})

		if notify {
			_ = c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "signatureNotification",
				"params": map[string]interface{}{
					"subscription": subID,
					"result": map[string]interface{}{
						"context": map[string]interface{}{"slot": 9},
						"value":   map[string]interface{}{"err": nil},
					},
				},
			})
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var next wsRequest
			if err := json.Unmarshal(msg, &next); err == nil && rest != nil {
				rest <- next
			}
		}
	}))
}

func TestWSClient_SubscriptionIDZero(t *testing.T) {
	server := subscribeAndNotify(t, 0, true, nil)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, cancel, err := client.SubscribeSignature(ctx, "zerosig", "")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	defer cancel()

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if n.Signature != "zerosig" || n.Slot != 9 {
			t.Errorf("unexpected notification %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_CancelUnsubscribes(t *testing.T) {
	rest := make(chan wsRequest, 4)
	server := subscribeAndNotify(t, 55, false, rest)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, cancel, err := client.SubscribeSignature(ctx, "slowsig", "")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed by cancel")
	}

	client.subsMu.Lock()
	live := len(client.subs)
	client.subsMu.Unlock()
	if live != 0 {
		t.Errorf("expected no live subscriptions, got %d", live)
	}

	select {
	case req := <-rest:
		if req.Method != "signatureUnsubscribe" {
			t.Fatalf("expected signatureUnsubscribe, got %s", req.Method)
		}
		if len(req.Params) != 1 || req.Params[0] != float64(55) {
			t.Errorf("unexpected params: %v", req.Params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw signatureUnsubscribe")
	}

	select {
	case req := <-rest:
		t.Errorf("unexpected second request %s", req.Method)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSClient_SubscribeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		_ = json.Unmarshal(msg, &req)

		_ = c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid param"},
		})
		drain(c)
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, _, err := client.SubscribeSignature(ctx, "bad", ""); err == nil {
		t.Error("expected rejection error")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := newIdleServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := newIdleServer(t)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	client.Close()

	if _, _, err := client.SubscribeSignature(ctx, "sig", ""); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := newIdleServer(t)
	defer server.Close()

	config := &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		SubscribeTimeout:  2 * time.Second,
	}

	client, err := NewWSClient(context.Background(), wsURL(server), config, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
}
