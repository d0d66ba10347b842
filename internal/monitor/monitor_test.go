package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var watched = ledger.Address{1, 2, 3}

func testConfig() Config {
	return Config{
		Networks:      []ledger.Network{ledger.Devnet},
		DetailBackoff: time.Millisecond,
		ReconnectMin:  time.Millisecond,
		ReconnectMax:  5 * time.Millisecond,
	}
}

func newSingle(t *testing.T, baseline uint64) (*Monitor, *fakeClient, *recordingSink) {
	t.Helper()
	client := newFakeClient(baseline)
	sink := newRecordingSink()
	m := New(ledger.StaticDirectory{ledger.Devnet: client}, sink, testConfig(), metrics.New())
	t.Cleanup(func() { _ = m.Close() })
	return m, client, sink
}

func TestBalanceDeltaSequence(t *testing.T) {
	m, client, sink := newSingle(t, 100)
	require.NoError(t, m.Watch(context.Background(), 42, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	client.setBalance(250)
	feed.ch <- ledger.Activity{Signature: "sig1", Slot: 10}
	d := sink.next(t)
	assert.Equal(t, int64(42), d.userID)
	assert.Equal(t, int64(150), d.ev.Delta)
	assert.Equal(t, KindDeposit, d.ev.Kind)
	assert.Equal(t, uint64(250), d.ev.Balance)
	assert.Equal(t, uint64(10), d.ev.Slot)
	assert.Equal(t, "https://solscan.io/tx/sig1?cluster=devnet", d.ev.ExplorerURL)

	client.setBalance(200)
	feed.ch <- ledger.Activity{Signature: "sig2", Slot: 11}
	d = sink.next(t)
	assert.Equal(t, int64(-50), d.ev.Delta)
	assert.Equal(t, uint64(50), d.ev.Amount())
	assert.Equal(t, KindWithdrawal, d.ev.Kind)
	assert.Equal(t, "Withdrawal", d.ev.Kind.Title())
}

func TestFailedTransactionIsFlagged(t *testing.T) {
	m, client, sink := newSingle(t, 100)
	require.NoError(t, m.Watch(context.Background(), 42, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	client.mu.Lock()
	client.failed["fee"] = true
	client.mu.Unlock()
	client.setBalance(95)
	feed.ch <- ledger.Activity{Signature: "fee", Slot: 3}
	d := sink.next(t)
	assert.True(t, d.ev.TxFailed)
	assert.Equal(t, int64(-5), d.ev.Delta)

	client.setBalance(195)
	feed.ch <- ledger.Activity{Signature: "ok", Slot: 4}
	d = sink.next(t)
	assert.False(t, d.ev.TxFailed)
}

func TestUnchangedBalanceEmitsNothing(t *testing.T) {
	m, client, sink := newSingle(t, 100)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	feed.ch <- ledger.Activity{Signature: "same"}
	sink.none(t, 50*time.Millisecond)
	assert.Equal(t, 1, client.calls("same"))
}

func TestDetailAbsentDropsAndKeepsBaseline(t *testing.T) {
	m, client, sink := newSingle(t, 100)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	client.mu.Lock()
	client.missing["ghost"] = true
	client.mu.Unlock()
	client.setBalance(300)
	feed.ch <- ledger.Activity{Signature: "ghost"}
	sink.none(t, 50*time.Millisecond)
	assert.Equal(t, DefaultDetailAttempts, client.calls("ghost"))

	feed.ch <- ledger.Activity{Signature: "real"}
	d := sink.next(t)
	assert.Equal(t, "real", d.ev.Signature)
	assert.Equal(t, int64(200), d.ev.Delta, "baseline must not move on a dropped notification")
}

func TestAwaitDetailReportsUnavailable(t *testing.T) {
	client := newFakeClient(0)
	client.missing["x"] = true
	m := New(ledger.StaticDirectory{ledger.Devnet: client}, nil, Config{DetailAttempts: 2, DetailBackoff: -1}, nil)
	defer m.Close()
	detail, err := m.awaitDetail(context.Background(), &subscription{client: client}, "x")
	assert.ErrorIs(t, err, ErrDetailUnavailable)
	assert.Nil(t, detail)
	assert.Equal(t, 2, client.calls("x"))
}

func TestWatchAllOpensOneSubscriptionPerNetwork(t *testing.T) {
	dir := ledger.StaticDirectory{}
	clients := map[ledger.Network]*fakeClient{}
	for _, n := range ledger.Networks {
		clients[n] = newFakeClient(5)
		dir[n] = clients[n]
	}
	cfg := testConfig()
	cfg.Networks = nil
	m := New(dir, newRecordingSink(), cfg, nil)
	defer m.Close()

	nets, err := m.WatchAll(context.Background(), 1, watched)
	require.NoError(t, err)
	assert.ElementsMatch(t, ledger.Networks, nets)
	assert.Equal(t, 3, m.Subscriptions())

	_, err = m.WatchAll(context.Background(), 2, watched)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Subscriptions(), "second watcher shares subscriptions")
	for _, c := range clients {
		assert.Equal(t, 1, c.subscribes)
	}

	ws := m.Watched()
	require.Len(t, ws, 2)
	assert.Equal(t, int64(1), ws[0].UserID)
	assert.Equal(t, ledger.Networks, ws[0].Networks)
}

func TestWatchAllPartialFailure(t *testing.T) {
	good, bad := newFakeClient(1), newFakeClient(1)
	bad.balanceErr = errors.New("rpc down")
	cfg := testConfig()
	cfg.Networks = []ledger.Network{ledger.Devnet, ledger.Testnet}
	m := New(ledger.StaticDirectory{ledger.Devnet: good, ledger.Testnet: bad}, nil, cfg, nil)
	defer m.Close()

	nets, err := m.WatchAll(context.Background(), 1, watched)
	require.Error(t, err)
	assert.Equal(t, []ledger.Network{ledger.Devnet}, nets)
	assert.Equal(t, 1, m.Subscriptions())
}

func TestUnwatchCancelsFeedWithLastWatcher(t *testing.T) {
	m, client, _ := newSingle(t, 0)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	require.NoError(t, m.Watch(context.Background(), 2, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	assert.False(t, m.Unwatch(1, watched, ledger.Devnet))
	assert.False(t, feed.isClosed())
	assert.Equal(t, 1, m.Subscriptions())

	m.UnwatchAll(2, watched)
	assert.Equal(t, 0, m.Subscriptions())
	assert.Eventually(t, feed.isClosed, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Watched())
}

func TestStoppedWatcherReceivesNothing(t *testing.T) {
	m, client, sink := newSingle(t, 0)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	require.NoError(t, m.Watch(context.Background(), 2, watched, ledger.Devnet))
	feed := client.nextFeed(t)
	m.Unwatch(1, watched, ledger.Devnet)

	client.setBalance(10)
	feed.ch <- ledger.Activity{Signature: "s"}
	d := sink.next(t)
	assert.Equal(t, int64(2), d.userID)
	sink.none(t, 30*time.Millisecond)
}

func TestFeedFailureReconnectsKeepingBaseline(t *testing.T) {
	m, client, sink := newSingle(t, 100)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	first := client.nextFeed(t)

	first.errCh <- errors.New("socket reset")
	second := client.nextFeed(t)
	assert.True(t, first.isClosed())

	client.setBalance(90)
	second.ch <- ledger.Activity{Signature: "after"}
	d := sink.next(t)
	assert.Equal(t, int64(-10), d.ev.Delta)
}

func TestCloseStopsEverything(t *testing.T) {
	client := newFakeClient(0)
	m := New(ledger.StaticDirectory{ledger.Devnet: client}, nil, testConfig(), nil)
	require.NoError(t, m.Watch(context.Background(), 1, watched, ledger.Devnet))
	feed := client.nextFeed(t)

	require.NoError(t, m.Close())
	assert.True(t, feed.isClosed())
	assert.ErrorIs(t, m.Watch(context.Background(), 1, watched, ledger.Devnet), ErrClosed)
	require.NoError(t, m.Close())
}

func TestWatchUnknownNetwork(t *testing.T) {
	m, _, _ := newSingle(t, 0)
	err := m.Watch(context.Background(), 1, watched, ledger.Testnet)
	assert.ErrorIs(t, err, ledger.ErrUnknownNetwork)
}
