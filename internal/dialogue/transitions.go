package dialogue

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/session"
	"github.com/m3rciful/solwatch/internal/wallet"
)

type handler func(ctx context.Context, t *turn) error

type transitionKey struct {
	state session.State
	kind  EventKind
}

type transitionTable map[transitionKey]handler

func (tt transitionTable) lookup(s session.State, k EventKind) (handler, bool) {
	h, ok := tt[transitionKey{state: s, kind: k}]
	return h, ok
}

func buildTable() transitionTable {
	tt := transitionTable{}
	for _, s := range session.States() {
		tt[transitionKey{s, EventStart}] = handleStart
		tt[transitionKey{s, EventSend}] = handleSend
		tt[transitionKey{s, EventStop}] = handleStop
	}
	tt[transitionKey{session.StateAwaitingAddress, EventText}] = handleAddress
	tt[transitionKey{session.StateAwaitingKeyChoice, EventChoice}] = handleKeyChoice
	tt[transitionKey{session.StateAwaitingRecoveryPhrase, EventText}] = handlePhrase
	tt[transitionKey{session.StateAwaitingRawKey, EventText}] = handleRawKey
	tt[transitionKey{session.StateAwaitingNetworkChoice, EventText}] = handleNetwork
	tt[transitionKey{session.StateAwaitingNetworkChoice, EventChoice}] = handleNetwork
	tt[transitionKey{session.StateAwaitingRecipient, EventText}] = handleRecipient
	tt[transitionKey{session.StateAwaitingAmount, EventText}] = handleAmount
	return tt
}

func handleUnexpected(ctx context.Context, t *turn) error {
	t.outcome = "unexpected"
	t.reply(ctx, Message{Text: textUnexpected})
	return t.err
}

func handleStart(ctx context.Context, t *turn) error {
	t.sess.ResetSend()
	t.sess.State = session.StateAwaitingAddress
	t.reply(ctx, Message{Text: textWelcome})
	return t.err
}

func handleAddress(ctx context.Context, t *turn) error {
	addr, err := ledger.ParseAddress(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_address"
		t.reply(ctx, Message{Text: textInvalidAddress})
		return t.err
	}

	e := t.engine
	if prev := t.sess.Wallet; prev != nil && *prev != addr {
		e.Watcher.UnwatchAll(t.sess.UserID, *prev)
		t.sess.Wallet = nil
	}
	networks, err := e.Watcher.WatchAll(ctx, t.sess.UserID, addr)
	if len(networks) == 0 {
		t.outcome = "watch_failed"
		t.reply(ctx, Message{Text: textWatchUnavailable})
		return errors.Join(t.err, err)
	}
	if err != nil {
		t.outcome = "watch_partial"
	}
	t.sess.Wallet = &addr
	t.sess.State = session.StateMonitoring
	t.reply(ctx, monitoringMessage(addr, networks))
	return t.err
}

func handleSend(ctx context.Context, t *turn) error {
	if t.sess.Wallet == nil {
		t.outcome = "not_registered"
		t.reply(ctx, Message{Text: textRegisterFirst})
		return t.err
	}
	t.sess.ResetSend()
	t.sess.State = session.StateAwaitingKeyChoice
	t.reply(ctx, keyChoiceMessage())
	return t.err
}

func handleKeyChoice(ctx context.Context, t *turn) error {
	switch strings.TrimSpace(t.ev.Text) {
	case ChoicePhrase:
		t.sess.State = session.StateAwaitingRecoveryPhrase
		t.reply(ctx, Message{Text: textEnterPhrase})
	case ChoiceRawKey:
		t.sess.State = session.StateAwaitingRawKey
		t.reply(ctx, Message{Text: textEnterRawKey})
	default:
		return handleUnexpected(ctx, t)
	}
	return t.err
}

func handlePhrase(ctx context.Context, t *turn) error {
	t.erase(ctx)
	signer, err := wallet.DeriveFromPhrase(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_phrase"
		t.sess.WipeSigner()
		t.reply(ctx, Message{Text: textInvalidPhrase})
		return t.err
	}
	t.sess.SetSigner(signer)
	t.sess.State = session.StateAwaitingNetworkChoice
	t.reply(ctx, networkChoiceMessage(textNetworkChoice))
	return t.err
}

func handleRawKey(ctx context.Context, t *turn) error {
	t.erase(ctx)
	raw, err := wallet.ParseRawKey(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_key_format"
		t.reply(ctx, Message{Text: textInvalidRawFormat})
		return t.err
	}
	signer, err := wallet.DeriveFromRawBytes(raw)
	clear(raw)
	if errors.Is(err, wallet.ErrKeyMismatch) {
		t.outcome = "key_mismatch"
		t.reply(ctx, Message{Text: textInvalidRawMismatch})
		return t.err
	}
	if err != nil {
		t.outcome = "invalid_key_length"
		t.reply(ctx, Message{Text: textInvalidRawLength})
		return t.err
	}
	t.sess.SetSigner(signer)
	t.sess.State = session.StateAwaitingNetworkChoice
	t.reply(ctx, networkChoiceMessage(textNetworkChoice))
	return t.err
}

func handleNetwork(ctx context.Context, t *turn) error {
	network, err := parseNetworkChoice(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_network"
		t.reply(ctx, networkChoiceMessage(textInvalidNetwork))
		return t.err
	}
	t.sess.Pending.SetNetwork(network)
	t.sess.State = session.StateAwaitingRecipient
	t.reply(ctx, Message{Text: textEnterRecipient})
	return t.err
}

func handleRecipient(ctx context.Context, t *turn) error {
	addr, err := ledger.ParseAddress(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_recipient"
		t.reply(ctx, Message{Text: textInvalidRecipient})
		return t.err
	}
	if err := t.sess.Pending.SetRecipient(addr); err != nil {
		return errors.Join(err, restartSend(ctx, t))
	}
	t.sess.State = session.StateAwaitingAmount
	t.reply(ctx, Message{Text: textEnterAmount})
	return t.err
}

func handleAmount(ctx context.Context, t *turn) error {
	lamports, err := parseAmount(t.ev.Text)
	if err != nil {
		t.outcome = "invalid_amount"
		t.reply(ctx, Message{Text: textInvalidAmount})
		return t.err
	}
	if err := t.sess.Pending.SetLamports(lamports); err != nil {
		return errors.Join(err, restartSend(ctx, t))
	}

	pending := t.sess.Pending
	signer := t.sess.Signer
	if !pending.Complete() || signer == nil {
		return restartSend(ctx, t)
	}
	e := t.engine
	network := pending.Network()
	recipient, _ := pending.Recipient()
	lamports = pending.Lamports()
	from := signer.PublicKey()

	t.reply(ctx, Message{Text: textSubmitting})
	res, err := e.Submitter.Submit(ctx, signer, recipient, lamports, network)
	t.sess.ResetSend()
	if err != nil {
		t.outcome = "transfer_failed"
		t.sess.State = session.StateAwaitingKeyChoice
		t.reply(ctx, failureMessage(err, network, e.ExplorerBase))
		return t.err
	}

	t.sess.State = session.StateMonitoring
	if e.Recorder != nil {
		e.Recorder.RecordTransfer(ctx, t.sess.UserID, network, from, recipient, lamports, res.Signature)
	}
	t.reply(ctx, successMessage(lamports, recipient, res))
	return t.err
}

// restartSend recovers from a session whose pending transfer is
// inconsistent with its state by sending the user back to the key choice.
func restartSend(ctx context.Context, t *turn) error {
	t.outcome = "restarted"
	t.sess.ResetSend()
	t.sess.State = session.StateAwaitingKeyChoice
	t.reply(ctx, keyChoiceMessage())
	return t.err
}

func handleStop(ctx context.Context, t *turn) error {
	if t.sess.Wallet == nil {
		t.outcome = "not_monitoring"
		t.reply(ctx, Message{Text: textNotMonitoring})
		return t.err
	}
	t.engine.Watcher.UnwatchAll(t.sess.UserID, *t.sess.Wallet)
	t.sess.Wallet = nil
	t.sess.ResetSend()
	t.sess.State = session.StateStopped
	t.reply(ctx, Message{Text: textStopped})
	return t.err
}

func parseNetworkChoice(text string) (ledger.Network, error) {
	n, ok := ledger.NetworkByChoice(text)
	if !ok {
		return "", ErrInvalidNetworkChoice
	}
	return n, nil
}

func parseAmount(text string) (uint64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	lamports, err := ledger.SOLToLamports(v)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return lamports, nil
}
