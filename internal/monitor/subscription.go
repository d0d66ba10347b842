package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/core/netutil"
	"github.com/m3rciful/solwatch/internal/ledger"
)

type subscription struct {
	// id correlates one subscription's log lines across reconnects.
	id     string
	key    key
	client ledger.Client
	cancel context.CancelFunc
	done   chan struct{}

	// baseline is owned by the consumer goroutine after start.
	baseline uint64

	// watchers is guarded by Monitor.mu.
	watchers map[int64]struct{}
}

// run reads the feed on one goroutine and processes notifications in order
// on the calling one.
func (m *Monitor) run(ctx context.Context, s *subscription, feed ledger.ActivityFeed) {
	defer close(s.done)

	queue := make(chan ledger.Activity, m.cfg.QueueSize)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(queue)
		m.read(ctx, s, feed, queue)
	}()

	for act := range queue {
		if ctx.Err() != nil {
			continue
		}
		m.process(ctx, s, act)
	}
	<-readerDone
}

func (m *Monitor) read(ctx context.Context, s *subscription, feed ledger.ActivityFeed, queue chan<- ledger.Activity) {
	backoff := m.cfg.ReconnectMin
	defer func() {
		if feed != nil {
			_ = feed.Close()
		}
	}()
	for {
		if feed == nil {
			if !sleep(ctx, backoff) {
				return
			}
			m.metrics.FeedReconnect(string(s.key.network))
			next, err := s.client.SubscribeActivity(ctx, s.key.address)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn(ctx, component, "feed.reconnect",
					slog.String("status", "retry"),
					slog.String("network", string(s.key.network)),
					slog.String("sub_id", s.id),
					slog.String("address", logger.ShortAddress(s.key.address.String())),
					slog.Int64("backoff_ms", backoff.Milliseconds()),
					slog.String("err", err.Error()),
					slog.String("error_kind", netutil.ErrorKind(err)),
				)
				backoff = min(backoff*2, m.cfg.ReconnectMax)
				continue
			}
			feed = next
			backoff = m.cfg.ReconnectMin
			logger.Info(ctx, component, "feed.reconnect",
				slog.String("status", "ok"),
				slog.String("network", string(s.key.network)),
				slog.String("sub_id", s.id),
				slog.String("address", logger.ShortAddress(s.key.address.String())),
			)
		}

		act, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn(ctx, component, "feed.failed",
				slog.String("status", "fail"),
				slog.String("network", string(s.key.network)),
				slog.String("sub_id", s.id),
				slog.String("address", logger.ShortAddress(s.key.address.String())),
				slog.String("err", err.Error()),
				slog.String("error_kind", netutil.ErrorKind(err)),
			)
			_ = feed.Close()
			feed = nil
			continue
		}
		select {
		case queue <- act:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) process(ctx context.Context, s *subscription, act ledger.Activity) {
	network := string(s.key.network)
	attrs := []slog.Attr{
		slog.String("network", network),
		slog.String("sub_id", s.id),
		slog.String("address", logger.ShortAddress(s.key.address.String())),
		slog.String("signature", act.Signature),
		slog.Uint64("slot", act.Slot),
	}

	detail, err := m.awaitDetail(ctx, s, act.Signature)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.NotificationGap(network)
		logger.Debug(ctx, component, "notification.gap",
			append(attrs, slog.String("status", "drop"), slog.String("err", err.Error()))...)
		return
	}

	balance, err := s.client.Balance(ctx, s.key.address)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn(ctx, component, "balance.read",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return
	}
	if balance == s.baseline {
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, component, "balance.unchanged",
				append(attrs, slog.String("status", "skip"), slog.Uint64("balance_lamports", balance))...)
		}
		return
	}

	ev := Event{
		Network:     s.key.network,
		Address:     s.key.address,
		Delta:       int64(balance) - int64(s.baseline),
		Balance:     balance,
		Signature:   act.Signature,
		ExplorerURL: ledger.ExplorerURL(m.cfg.ExplorerBase, s.key.network, act.Signature),
		Slot:        act.Slot,
		TxFailed:    detail.Failed,
	}
	ev.Kind = KindWithdrawal
	if ev.Delta > 0 {
		ev.Kind = KindDeposit
	}
	s.baseline = balance

	watchers := m.watchers(s)
	logger.Info(ctx, component, "balance.changed",
		append(attrs,
			slog.String("status", "ok"),
			slog.String("kind", string(ev.Kind)),
			slog.Int64("delta_lamports", ev.Delta),
			slog.Uint64("balance_lamports", balance),
			slog.Bool("tx_failed", ev.TxFailed),
			slog.Int("watchers", len(watchers)),
		)...)
	for _, uid := range watchers {
		m.metrics.NotificationEmitted(network, string(ev.Kind))
		if m.sink != nil {
			m.sink.Notify(logger.WithUser(ctx, uid), uid, ev)
		}
	}
}

func (m *Monitor) awaitDetail(ctx context.Context, s *subscription, signature string) (*ledger.TxDetail, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.DetailAttempts; attempt++ {
		detail, err := s.client.TransactionDetail(ctx, signature)
		if err == nil && detail != nil {
			return detail, nil
		}
		lastErr = err
		if attempt == m.cfg.DetailAttempts {
			break
		}
		if !sleep(ctx, m.cfg.DetailBackoff*time.Duration(attempt)) {
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, errors.Join(ErrDetailUnavailable, lastErr)
	}
	return nil, ErrDetailUnavailable
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
