package domain

import "testing"

func TestTxStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from TxStatus
		to   TxStatus
		want bool
	}{
		{TxStatusPending, TxStatusConfirmed, true},
		{TxStatusPending, TxStatusFailed, true},
		{TxStatusPending, TxStatusPending, true},
		{TxStatusConfirmed, TxStatusConfirmed, true},
		{TxStatusConfirmed, TxStatusPending, false},
		{TxStatusConfirmed, TxStatusFailed, false},
		{TxStatusFailed, TxStatusPending, false},
		{TxStatusFailed, TxStatusConfirmed, false},
		{TxStatusPending, TxStatus("dropped"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNetworkState_TxStatus(t *testing.T) {
	if s, ok := NetworkConfirmed.TxStatus(); !ok || s != TxStatusConfirmed {
		t.Errorf("confirmed -> (%q, %v)", s, ok)
	}
	if s, ok := NetworkFailed.TxStatus(); !ok || s != TxStatusFailed {
		t.Errorf("failed -> (%q, %v)", s, ok)
	}
	for _, n := range []NetworkState{NetworkPending, NetworkUnknown} {
		if _, ok := n.TxStatus(); ok {
			t.Errorf("%s should not settle", n)
		}
	}
}

func TestTransaction_Involves(t *testing.T) {
	tx := &Transaction{Sender: "A", Recipient: "B"}
	if !tx.Involves("A") || !tx.Involves("B") {
		t.Error("sender and recipient should both be involved")
	}
	if tx.Involves("C") {
		t.Error("unrelated wallet should not be involved")
	}
}
