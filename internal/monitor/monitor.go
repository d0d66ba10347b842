// Package monitor tracks the balance of watched addresses per cluster and
// reports every change to the users watching them.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/metrics"
)

const component = "monitor"

var (
	// ErrDetailUnavailable marks a notification whose transaction could not be
	// fetched within the retry budget. It never reaches users.
	ErrDetailUnavailable = errors.New("monitor: transaction detail unavailable")
	// ErrClosed is returned by Watch after Close.
	ErrClosed = errors.New("monitor: closed")
)

type key struct {
	address ledger.Address
	network ledger.Network
}

// Monitor owns one subscription per (address, network) pair.
type Monitor struct {
	dir     ledger.Directory
	sink    Sink
	cfg     Config
	metrics *metrics.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	subs   map[key]*subscription
	closed bool
}

// New builds a monitor. Subscriptions run until Unwatch or Close.
func New(dir ledger.Directory, sink Sink, cfg Config, m *metrics.Metrics) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		dir:     dir,
		sink:    sink,
		cfg:     cfg.withDefaults(),
		metrics: m,
		baseCtx: ctx,
		cancel:  cancel,
		subs:    make(map[key]*subscription),
	}
}

// Watch adds userID as a watcher of address on network, opening the
// subscription when the pair is new.
func (m *Monitor) Watch(ctx context.Context, userID int64, address ledger.Address, network ledger.Network) error {
	k := key{address: address, network: network}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if s, ok := m.subs[k]; ok {
		s.watchers[userID] = struct{}{}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	client, err := m.dir.Client(network)
	if err != nil {
		return err
	}
	baseline, err := client.Balance(ctx, address)
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	subCtx, cancel := context.WithCancel(m.baseCtx)
	feed, err := client.SubscribeActivity(subCtx, address)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		cancel()
		_ = feed.Close()
		return ErrClosed
	}
	if s, ok := m.subs[k]; ok {
		// Lost a race with a concurrent Watch for the same pair.
		cancel()
		_ = feed.Close()
		s.watchers[userID] = struct{}{}
		return nil
	}
	s := &subscription{
		id:       uuid.NewString(),
		key:      k,
		client:   client,
		baseline: baseline,
		watchers: map[int64]struct{}{userID: {}},
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.subs[k] = s
	m.metrics.SubscriptionOpened(string(network))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(subCtx, s, feed)
	}()

	logger.Info(ctx, component, "subscription.opened",
		slog.String("status", "ok"),
		slog.String("network", string(network)),
		slog.String("sub_id", s.id),
		slog.String("address", logger.ShortAddress(address.String())),
		slog.Uint64("balance_lamports", baseline),
	)
	return nil
}

// WatchAll watches address on every configured network concurrently. It
// returns the networks that succeeded and the first failure, if any.
func (m *Monitor) WatchAll(ctx context.Context, userID int64, address ledger.Address) ([]ledger.Network, error) {
	networks := m.cfg.Networks
	ok := make([]bool, len(networks))

	var g errgroup.Group
	for i, n := range networks {
		i, n := i, n
		g.Go(func() error {
			if err := m.Watch(ctx, userID, address, n); err != nil {
				logger.Warn(ctx, component, "watch.failed",
					slog.String("status", "fail"),
					slog.String("network", string(n)),
					slog.String("address", logger.ShortAddress(address.String())),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("%s: %w", n, err)
			}
			ok[i] = true
			return nil
		})
	}
	err := g.Wait()

	watched := make([]ledger.Network, 0, len(networks))
	for i, n := range networks {
		if ok[i] {
			watched = append(watched, n)
		}
	}
	return watched, err
}

// Unwatch removes userID from the pair and cancels the live feed when no
// watcher remains. It reports whether the subscription was torn down.
func (m *Monitor) Unwatch(userID int64, address ledger.Address, network ledger.Network) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unwatchLocked(userID, key{address: address, network: network})
}

func (m *Monitor) unwatchLocked(userID int64, k key) bool {
	s, ok := m.subs[k]
	if !ok {
		return false
	}
	delete(s.watchers, userID)
	if len(s.watchers) > 0 {
		return false
	}
	delete(m.subs, k)
	s.cancel()
	m.metrics.SubscriptionClosed(string(k.network))
	logger.Info(logger.WithUser(context.Background(), userID), component, "subscription.closed",
		slog.String("status", "ok"),
		slog.String("network", string(k.network)),
		slog.String("sub_id", s.id),
		slog.String("address", logger.ShortAddress(k.address.String())),
	)
	return true
}

// UnwatchAll removes userID from address on every network.
func (m *Monitor) UnwatchAll(userID int64, address ledger.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.subs {
		if k.address == address {
			m.unwatchLocked(userID, k)
		}
	}
}

// Watch is a snapshot of what one user watches.
type Watch struct {
	UserID   int64
	Address  ledger.Address
	Networks []ledger.Network
}

// Watched returns a snapshot ordered by user id then address.
func (m *Monitor) Watched() []Watch {
	m.mu.Lock()
	type uk struct {
		user int64
		addr ledger.Address
	}
	grouped := make(map[uk][]ledger.Network)
	for k, s := range m.subs {
		for uid := range s.watchers {
			id := uk{user: uid, addr: k.address}
			grouped[id] = append(grouped[id], k.network)
		}
	}
	m.mu.Unlock()

	out := make([]Watch, 0, len(grouped))
	for id, nets := range grouped {
		sort.Slice(nets, func(i, j int) bool { return networkRank(nets[i]) < networkRank(nets[j]) })
		out = append(out, Watch{UserID: id.user, Address: id.addr, Networks: nets})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

// Subscriptions returns the number of live (address, network) pairs.
func (m *Monitor) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close cancels every subscription and waits for their goroutines.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for k, s := range m.subs {
			s.cancel()
			m.metrics.SubscriptionClosed(string(k.network))
			delete(m.subs, k)
		}
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Monitor) watchers(s *subscription) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[s.key] != s {
		return nil
	}
	ids := make([]int64, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func networkRank(n ledger.Network) int {
	for i, known := range ledger.Networks {
		if known == n {
			return i
		}
	}
	return len(ledger.Networks)
}
