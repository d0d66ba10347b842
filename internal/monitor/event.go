package monitor

import (
	"context"

	"github.com/m3rciful/solwatch/internal/ledger"
)

// Kind classifies a balance change.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Title returns the label shown to users.
func (k Kind) Title() string {
	if k == KindDeposit {
		return "Deposit"
	}
	return "Withdrawal"
}

// Event describes one observed balance change of a watched address.
type Event struct {
	Network     ledger.Network
	Address     ledger.Address
	Kind        Kind
	Delta       int64
	Balance     uint64
	Signature   string
	ExplorerURL string
	Slot        uint64
	// TxFailed marks a transaction that landed with an error; the change is
	// then only its fee.
	TxFailed bool
}

// Amount is the absolute value of Delta.
func (e Event) Amount() uint64 {
	if e.Delta < 0 {
		return uint64(-e.Delta)
	}
	return uint64(e.Delta)
}

// Sink receives events for one watcher.
type Sink interface {
	Notify(ctx context.Context, userID int64, ev Event)
}

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

// Notify implements Sink.
func (s Sinks) Notify(ctx context.Context, userID int64, ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Notify(ctx, userID, ev)
		}
	}
}
