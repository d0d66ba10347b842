package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/monitor"

	tele "gopkg.in/telebot.v4"
)

// Enqueuer schedules an outbound call. *sender.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, action, endpoint string, run func() error) error
}

// Notifier delivers balance change events as chat messages through the
// asynchronous dispatcher.
type Notifier struct {
	messenger Messenger
	queue     Enqueuer
}

// NewNotifier builds a notifier. A nil queue sends inline.
func NewNotifier(m Messenger, q Enqueuer) *Notifier {
	return &Notifier{messenger: m, queue: q}
}

// Notify implements monitor.Sink. Delivery outlives the subscription that
// produced the event.
func (n *Notifier) Notify(ctx context.Context, userID int64, ev monitor.Event) {
	ctx = context.WithoutCancel(ctx)
	text := notificationText(ev)
	run := func() error {
		_, err := n.messenger.Send(tele.ChatID(userID), text, &tele.SendOptions{DisableWebPagePreview: true})
		return err
	}
	var err error
	if n.queue == nil {
		err = run()
	} else {
		err = n.queue.Enqueue(ctx, "notify.balance", "sendMessage", run)
	}
	if err != nil {
		logger.Warn(ctx, "tg.sender", "notify.enqueue",
			slog.String("status", "fail"),
			slog.String("network", string(ev.Network)),
			slog.String("signature", ev.Signature),
			slog.String("err", err.Error()),
		)
	}
}
