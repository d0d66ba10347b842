package solanarpc

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/m3rciful/solwatch/internal/ledger"
)

// logFeed owns one websocket connection and one logs subscription.
type logFeed struct {
	conn *ws.Client
	sub  *ws.LogSubscription
	once sync.Once
}

func (f *logFeed) Next(ctx context.Context) (ledger.Activity, error) {
	res, err := f.sub.Recv(ctx)
	if err != nil {
		return ledger.Activity{}, err
	}
	if res == nil {
		return ledger.Activity{}, ledger.ErrFeedClosed
	}
	return ledger.Activity{
		Signature: res.Value.Signature.String(),
		Slot:      res.Context.Slot,
	}, nil
}

func (f *logFeed) Close() error {
	f.once.Do(func() {
		f.sub.Unsubscribe()
		f.conn.Close()
	})
	return nil
}
