// Package dialogue drives the per-user conversation: address registration,
// key entry, and the guided transfer flow.
package dialogue

import (
	"context"
	"log/slog"

	"github.com/m3rciful/solwatch/core/logger"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/metrics"
	"github.com/m3rciful/solwatch/internal/session"
	"github.com/m3rciful/solwatch/internal/transfer"
	"github.com/m3rciful/solwatch/internal/wallet"
)

const component = "dialogue"

// Watcher registers addresses for balance monitoring.
type Watcher interface {
	WatchAll(ctx context.Context, userID int64, address ledger.Address) ([]ledger.Network, error)
	UnwatchAll(userID int64, address ledger.Address)
}

// Submitter executes a transfer synchronously.
type Submitter interface {
	Submit(ctx context.Context, signer *wallet.SigningMaterial, recipient ledger.Address, lamports uint64, network ledger.Network) (transfer.Result, error)
}

// TransferRecorder keeps an audit trail of confirmed transfers.
type TransferRecorder interface {
	RecordTransfer(ctx context.Context, userID int64, network ledger.Network, from, to ledger.Address, lamports uint64, signature string)
}

// Deps are the engine's collaborators. Recorder and Metrics may be nil.
type Deps struct {
	Store     *session.Store
	Watcher   Watcher
	Submitter Submitter
	Replier   Replier
	Recorder  TransferRecorder
	Metrics   *metrics.Metrics

	ExplorerBase string
}

// Engine applies events to sessions through a fixed transition table.
type Engine struct {
	Deps
	table transitionTable
}

// New builds an engine.
func New(deps Deps) *Engine {
	if deps.ExplorerBase == "" {
		deps.ExplorerBase = ledger.DefaultExplorerBase
	}
	return &Engine{Deps: deps, table: buildTable()}
}

// Handle processes one event under the user's session lock. Validation
// problems are answered in chat and never returned; the error is reserved
// for delivery and lock failures.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	ctx = logger.WithUser(ctx, ev.UserID)
	return e.Store.Do(ctx, ev.UserID, func(sess *session.Session) error {
		if ev.ChatID != 0 {
			sess.ChatID = ev.ChatID
		}
		from := sess.State
		h, ok := e.table.lookup(from, ev.Kind)
		if !ok {
			h = handleUnexpected
		}
		t := &turn{engine: e, sess: sess, ev: ev}
		err := h(ctx, t)

		outcome := t.outcome
		if outcome == "" {
			outcome = "ok"
		}
		e.Metrics.DialogueEvent(ev.Kind.String(), outcome)
		logger.Info(ctx, component, "dialogue.event",
			slog.String("status", statusFor(err)),
			slog.String("kind", ev.Kind.String()),
			slog.String("state", from.String()),
			slog.String("next_state", sess.State.String()),
			slog.Bool("send_flow", sess.State.InSendFlow()),
			slog.String("outcome", outcome),
		)
		return err
	})
}

func statusFor(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// turn is the context of one handled event.
type turn struct {
	engine  *Engine
	sess    *session.Session
	ev      Event
	outcome string
	err     error
}

func (t *turn) reply(ctx context.Context, msg Message) {
	if err := t.engine.Replier.Reply(ctx, t.sess.UserID, msg); err != nil && t.err == nil {
		t.err = err
	}
}

func (t *turn) erase(ctx context.Context) {
	eraser, ok := t.engine.Replier.(Eraser)
	if !ok || t.ev.MessageID == 0 {
		return
	}
	if err := eraser.Erase(ctx, t.sess.ChatID, t.ev.MessageID); err != nil {
		logger.Debug(ctx, component, "input.erase",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
