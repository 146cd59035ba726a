package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for signature to reach commitment. The channel
	// delivers exactly one notification and is then closed; it is also closed
	// without a value when the client shuts down or cancel is called.
	// cancel drops the subscription on the node and is safe to call more
	// than once, including after the notification arrived.
	SubscribeSignature(ctx context.Context, signature string, commitment string) (ch <-chan SignatureNotification, cancel func(), err error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification reports that a signature reached the requested commitment.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // nil when the transaction succeeded
}
