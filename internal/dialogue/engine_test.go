package dialogue

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/session"
	"github.com/m3rciful/solwatch/internal/transfer"
	"github.com/m3rciful/solwatch/internal/wallet"
)

const (
	addrX   = "So11111111111111111111111111111111111111112"
	addrY   = "SysvarRent111111111111111111111111111111111"
	phraseP = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	userID  = int64(77)
)

type fakeWatcher struct {
	mu       sync.Mutex
	watching map[ledger.Address][]ledger.Network
	fail     error
	partial  bool
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{watching: map[ledger.Address][]ledger.Network{}}
}

func (w *fakeWatcher) WatchAll(_ context.Context, _ int64, a ledger.Address) ([]ledger.Network, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return nil, w.fail
	}
	nets := append([]ledger.Network(nil), ledger.Networks...)
	var err error
	if w.partial {
		nets, err = nets[:2], errors.New("testnet: down")
	}
	w.watching[a] = nets
	return nets, err
}

func (w *fakeWatcher) UnwatchAll(_ int64, a ledger.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watching, a)
}

func (w *fakeWatcher) subscriptions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, nets := range w.watching {
		n += len(nets)
	}
	return n
}

type submitCall struct {
	key       []byte
	signer    *wallet.SigningMaterial
	recipient ledger.Address
	lamports  uint64
	network   ledger.Network
}

type fakeSubmitter struct {
	calls []submitCall
	err   error
}

func (s *fakeSubmitter) Submit(_ context.Context, signer *wallet.SigningMaterial, to ledger.Address, lamports uint64, n ledger.Network) (transfer.Result, error) {
	key, _ := signer.Bytes()
	s.calls = append(s.calls, submitCall{key: key, signer: signer, recipient: to, lamports: lamports, network: n})
	if s.err != nil {
		return transfer.Result{}, s.err
	}
	return transfer.Result{Signature: "sigOK", ExplorerURL: ledger.ExplorerURL("", n, "sigOK")}, nil
}

type recordingReplier struct {
	msgs   []Message
	erased []int
}

func (r *recordingReplier) Reply(_ context.Context, _ int64, m Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingReplier) Erase(_ context.Context, _ int64, messageID int) error {
	r.erased = append(r.erased, messageID)
	return nil
}

func (r *recordingReplier) last() Message {
	if len(r.msgs) == 0 {
		return Message{}
	}
	return r.msgs[len(r.msgs)-1]
}

type recorderCall struct {
	from, to ledger.Address
	lamports uint64
	sig      string
}

type fakeRecorder struct{ calls []recorderCall }

func (f *fakeRecorder) RecordTransfer(_ context.Context, _ int64, _ ledger.Network, from, to ledger.Address, lamports uint64, sig string) {
	f.calls = append(f.calls, recorderCall{from: from, to: to, lamports: lamports, sig: sig})
}

type harness struct {
	engine    *Engine
	store     *session.Store
	watcher   *fakeWatcher
	submitter *fakeSubmitter
	replier   *recordingReplier
	recorder  *fakeRecorder
}

func newHarness() *harness {
	h := &harness{
		store:     session.NewStore(),
		watcher:   newFakeWatcher(),
		submitter: &fakeSubmitter{},
		replier:   &recordingReplier{},
		recorder:  &fakeRecorder{},
	}
	h.engine = New(Deps{
		Store:     h.store,
		Watcher:   h.watcher,
		Submitter: h.submitter,
		Replier:   h.replier,
		Recorder:  h.recorder,
	})
	return h
}

func (h *harness) send(t *testing.T, kind EventKind, text string) {
	t.Helper()
	require.NoError(t, h.engine.Handle(context.Background(), Event{Kind: kind, UserID: userID, ChatID: userID, MessageID: len(h.replier.msgs) + 1, Text: text}))
}

func (h *harness) state() session.State {
	v, _ := h.store.Get(userID)
	return v.State
}

func (h *harness) signer() *wallet.SigningMaterial {
	var m *wallet.SigningMaterial
	_ = h.store.Do(context.Background(), userID, func(s *session.Session) error {
		m = s.Signer
		return nil
	})
	return m
}

func (h *harness) toMonitoring(t *testing.T) {
	t.Helper()
	h.send(t, EventStart, "")
	h.send(t, EventText, addrX)
	require.Equal(t, session.StateMonitoring, h.state())
}

func TestInvalidAddressStaysWithOneMessage(t *testing.T) {
	h := newHarness()
	h.send(t, EventStart, "")
	assert.Equal(t, session.StateAwaitingAddress, h.state())
	before := len(h.replier.msgs)

	h.send(t, EventText, "definitely-not-an-address")
	assert.Equal(t, session.StateAwaitingAddress, h.state())
	assert.Len(t, h.replier.msgs, before+1)
	assert.Equal(t, textInvalidAddress, h.replier.last().Text)
	assert.Equal(t, 0, h.watcher.subscriptions())
}

func TestValidAddressMonitorsThreeNetworks(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	assert.Equal(t, 3, h.watcher.subscriptions())
	assert.Equal(t, "Monitoring wallet: "+addrX+" on mainnet-beta, devnet, and testnet.", h.replier.last().Text)
}

func TestPartialWatchStillMonitors(t *testing.T) {
	h := newHarness()
	h.watcher.partial = true
	h.toMonitoring(t)
	assert.Contains(t, h.replier.last().Text, "mainnet-beta and devnet")
}

func TestWatchFailureStaysAwaitingAddress(t *testing.T) {
	h := newHarness()
	h.watcher.fail = errors.New("rpc down")
	h.send(t, EventStart, "")
	err := h.engine.Handle(context.Background(), Event{Kind: EventText, UserID: userID, Text: addrX})
	assert.Error(t, err)
	assert.Equal(t, session.StateAwaitingAddress, h.state())
	assert.Equal(t, textWatchUnavailable, h.replier.last().Text)
}

func TestNewAddressReplacesPrevious(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventStart, "")
	h.send(t, EventText, addrY)
	assert.Equal(t, 3, h.watcher.subscriptions())
	y, _ := ledger.ParseAddress(addrY)
	assert.Contains(t, h.watcher.watching, y)
}

func TestSendRequiresAddress(t *testing.T) {
	h := newHarness()
	h.send(t, EventSend, "")
	assert.Equal(t, session.StateIdle, h.state())
	assert.Equal(t, textRegisterFirst, h.replier.last().Text)
}

func TestSendFlowSuccess(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)

	h.send(t, EventSend, "")
	assert.Equal(t, session.StateAwaitingKeyChoice, h.state())
	kb := h.replier.last().Choices
	require.Len(t, kb, 1)
	assert.Equal(t, ChoicePhrase, kb[0][0].Data)
	assert.Equal(t, ChoiceRawKey, kb[0][1].Data)

	h.send(t, EventChoice, ChoicePhrase)
	assert.Equal(t, session.StateAwaitingRecoveryPhrase, h.state())

	h.send(t, EventText, phraseP)
	assert.Equal(t, session.StateAwaitingNetworkChoice, h.state())
	assert.NotEmpty(t, h.replier.erased, "phrase message should be erased")
	signer := h.signer()
	require.NotNil(t, signer)

	h.send(t, EventChoice, "2")
	assert.Equal(t, session.StateAwaitingRecipient, h.state())
	h.send(t, EventText, addrY)
	assert.Equal(t, session.StateAwaitingAmount, h.state())
	h.send(t, EventText, "1.5")

	require.Len(t, h.submitter.calls, 1)
	call := h.submitter.calls[0]
	want, err := wallet.DeriveFromPhrase(phraseP)
	require.NoError(t, err)
	wantKey, _ := want.Bytes()
	assert.Equal(t, wantKey, call.key)
	assert.Equal(t, addrY, call.recipient.String())
	assert.Equal(t, uint64(1_500_000_000), call.lamports)
	assert.Equal(t, ledger.Devnet, call.network)

	assert.Equal(t, session.StateMonitoring, h.state())
	assert.True(t, strings.HasPrefix(h.replier.last().Text, "Transaction Successful!"))
	assert.Contains(t, h.replier.last().Text, "https://solscan.io/tx/sigOK?cluster=devnet")
	assert.True(t, signer.Wiped())

	require.Len(t, h.recorder.calls, 1)
	assert.Equal(t, want.PublicKey(), h.recorder.calls[0].from)
	assert.Equal(t, "sigOK", h.recorder.calls[0].sig)
}

func TestSendFlowFailureForcesReauthorization(t *testing.T) {
	h := newHarness()
	h.submitter.err = &transfer.Error{Reason: transfer.ReasonInsufficientFunds, Network: ledger.Devnet}
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, phraseP)
	signer := h.signer()
	h.send(t, EventText, "2")
	h.send(t, EventText, addrY)
	h.send(t, EventText, "1.5")

	assert.Equal(t, session.StateAwaitingKeyChoice, h.state())
	assert.True(t, signer.Wiped())
	assert.Nil(t, h.signer())
	assert.Contains(t, h.replier.last().Text, textReauthorizeSuffix)
	assert.NotEmpty(t, h.replier.last().Choices)
	assert.Empty(t, h.recorder.calls)
}

func TestTimeoutFailureLinksPendingSignature(t *testing.T) {
	err := &transfer.Error{Reason: transfer.ReasonTimeout, Network: ledger.Testnet, Signature: "abc"}
	msg := failureMessage(err, ledger.Testnet, "")
	assert.Contains(t, msg.Text, "https://solscan.io/tx/abc?cluster=testnet")
}

func TestRawKeyPath(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoiceRawKey)
	assert.Equal(t, session.StateAwaitingRawKey, h.state())

	h.send(t, EventText, "1,2,3")
	assert.Equal(t, session.StateAwaitingRawKey, h.state())
	assert.Equal(t, textInvalidRawLength, h.replier.last().Text)

	h.send(t, EventText, "1,2,nope")
	assert.Equal(t, session.StateAwaitingRawKey, h.state())
	assert.Equal(t, textInvalidRawFormat, h.replier.last().Text)

	vals := make([]string, 64)
	for i := range vals {
		vals[i] = fmt.Sprint(i)
	}
	h.send(t, EventText, strings.Join(vals, ","))
	assert.Equal(t, session.StateAwaitingRawKey, h.state())
	assert.Equal(t, textInvalidRawMismatch, h.replier.last().Text)
	assert.Nil(t, h.signer())

	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, ed25519.SeedSize))
	for i, b := range priv {
		vals[i] = fmt.Sprint(b)
	}
	h.send(t, EventText, strings.Join(vals, ","))
	assert.Equal(t, session.StateAwaitingNetworkChoice, h.state())
	require.NotNil(t, h.signer())
	assert.Equal(t, []byte(priv.Public().(ed25519.PublicKey)), h.signer().PublicKey().Bytes())
}

func TestAmountWithoutSignerRestartsSend(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, phraseP)
	h.send(t, EventText, "2")
	h.send(t, EventText, addrY)
	require.Equal(t, session.StateAwaitingAmount, h.state())

	require.NoError(t, h.store.Do(context.Background(), userID, func(s *session.Session) error {
		s.WipeSigner()
		return nil
	}))
	h.send(t, EventText, "0.5")
	assert.Equal(t, session.StateAwaitingKeyChoice, h.state())
	assert.Empty(t, h.submitter.calls)
	assert.Equal(t, ChoicePhrase, h.replier.last().Choices[0][0].Data)
}

func TestInvalidPhraseStays(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	assert.Equal(t, session.StateAwaitingRecoveryPhrase, h.state())
	assert.Equal(t, textInvalidPhrase, h.replier.last().Text)
	assert.Nil(t, h.signer())
}

func TestInvalidNetworkRecipientAmount(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, phraseP)

	h.send(t, EventText, "4")
	assert.Equal(t, session.StateAwaitingNetworkChoice, h.state())
	assert.Equal(t, textInvalidNetwork, h.replier.last().Text)
	assert.Len(t, h.replier.last().Choices[0], 3)

	h.send(t, EventText, "3")
	h.send(t, EventText, "bogus")
	assert.Equal(t, session.StateAwaitingRecipient, h.state())
	assert.Equal(t, textInvalidRecipient, h.replier.last().Text)

	h.send(t, EventText, addrY)
	for _, bad := range []string{"-1", "0", "abc", "NaN", "0.0000000001"} {
		h.send(t, EventText, bad)
		assert.Equal(t, session.StateAwaitingAmount, h.state(), bad)
		assert.Equal(t, textInvalidAmount, h.replier.last().Text)
	}
	assert.Empty(t, h.submitter.calls)
}

func TestStop(t *testing.T) {
	h := newHarness()
	h.send(t, EventStop, "")
	assert.Equal(t, session.StateIdle, h.state())
	assert.Equal(t, textNotMonitoring, h.replier.last().Text)

	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, phraseP)
	signer := h.signer()

	h.send(t, EventStop, "")
	assert.Equal(t, session.StateStopped, h.state())
	assert.Equal(t, textStopped, h.replier.last().Text)
	assert.Equal(t, 0, h.watcher.subscriptions())
	assert.True(t, signer.Wiped())

	h.send(t, EventStop, "")
	assert.Equal(t, session.StateStopped, h.state())
	assert.Equal(t, textNotMonitoring, h.replier.last().Text)

	h.send(t, EventStart, "")
	assert.Equal(t, session.StateAwaitingAddress, h.state())
}

func TestUnexpectedInput(t *testing.T) {
	h := newHarness()
	h.send(t, EventText, "hello")
	assert.Equal(t, session.StateIdle, h.state())
	assert.Equal(t, textUnexpected, h.replier.last().Text)

	h.toMonitoring(t)
	h.send(t, EventText, "hello")
	assert.Equal(t, session.StateMonitoring, h.state())
	assert.Equal(t, textUnexpected, h.replier.last().Text)

	h.send(t, EventSend, "")
	h.send(t, EventChoice, "something-else")
	assert.Equal(t, session.StateAwaitingKeyChoice, h.state())
	assert.Equal(t, textUnexpected, h.replier.last().Text)
}

func TestStartWipesSigner(t *testing.T) {
	h := newHarness()
	h.toMonitoring(t)
	h.send(t, EventSend, "")
	h.send(t, EventChoice, ChoicePhrase)
	h.send(t, EventText, phraseP)
	signer := h.signer()
	h.send(t, EventStart, "")
	assert.True(t, signer.Wiped())
	assert.Equal(t, session.StateAwaitingAddress, h.state())
}

func TestTransitionTableCoversCommands(t *testing.T) {
	tt := buildTable()
	for _, s := range session.States() {
		for _, k := range []EventKind{EventStart, EventSend, EventStop} {
			_, ok := tt.lookup(s, k)
			assert.True(t, ok, "%s/%s", s, k)
		}
	}
	_, ok := tt.lookup(session.StateMonitoring, EventText)
	assert.False(t, ok)
}
