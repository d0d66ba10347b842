package monitor

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/solwatch/internal/ledger"
)

type fakeFeed struct {
	ch     chan ledger.Activity
	errCh  chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		ch:     make(chan ledger.Activity, 8),
		errCh:  make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeFeed) Next(ctx context.Context) (ledger.Activity, error) {
	select {
	case a := <-f.ch:
		return a, nil
	case err := <-f.errCh:
		return ledger.Activity{}, err
	case <-f.closed:
		return ledger.Activity{}, ledger.ErrFeedClosed
	case <-ctx.Done():
		return ledger.Activity{}, ctx.Err()
	}
}

func (f *fakeFeed) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFeed) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fakeClient struct {
	mu           sync.Mutex
	balance      uint64
	balanceErr   error
	missing      map[string]bool
	failed       map[string]bool
	detailCalls  map[string]int
	subscribeErr error
	subscribes   int
	feeds        chan *fakeFeed
}

func newFakeClient(balance uint64) *fakeClient {
	return &fakeClient{
		balance:     balance,
		missing:     make(map[string]bool),
		failed:      make(map[string]bool),
		detailCalls: make(map[string]int),
		feeds:       make(chan *fakeFeed, 8),
	}
}

func (c *fakeClient) setBalance(b uint64) {
	c.mu.Lock()
	c.balance = b
	c.mu.Unlock()
}

func (c *fakeClient) Balance(context.Context, ledger.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, c.balanceErr
}

func (c *fakeClient) SubscribeActivity(context.Context, ledger.Address) (ledger.ActivityFeed, error) {
	c.mu.Lock()
	c.subscribes++
	err := c.subscribeErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f := newFakeFeed()
	c.feeds <- f
	return f, nil
}

func (c *fakeClient) TransactionDetail(_ context.Context, sig string) (*ledger.TxDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailCalls[sig]++
	if c.missing[sig] {
		return nil, nil
	}
	return &ledger.TxDetail{Signature: sig, Failed: c.failed[sig]}, nil
}

func (c *fakeClient) SubmitTransfer(context.Context, ed25519.PrivateKey, ledger.Address, uint64) (string, error) {
	return "", errors.New("not supported")
}

func (c *fakeClient) calls(sig string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detailCalls[sig]
}

func (c *fakeClient) nextFeed(t *testing.T) *fakeFeed {
	t.Helper()
	select {
	case f := <-c.feeds:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no feed opened")
		return nil
	}
}

type delivery struct {
	userID int64
	ev     Event
}

type recordingSink struct{ ch chan delivery }

func newRecordingSink() *recordingSink { return &recordingSink{ch: make(chan delivery, 32)} }

func (s *recordingSink) Notify(_ context.Context, userID int64, ev Event) {
	s.ch <- delivery{userID: userID, ev: ev}
}

func (s *recordingSink) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-s.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return delivery{}
	}
}

func (s *recordingSink) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case d := <-s.ch:
		t.Fatalf("unexpected event %+v", d)
	case <-time.After(wait):
	}
}
