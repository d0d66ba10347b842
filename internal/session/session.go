package session

import (
	"errors"
	"time"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/wallet"
)

// ErrOutOfOrder is returned when pending transfer fields are filled out of
// network → recipient → amount order.
var ErrOutOfOrder = errors.New("session: pending transfer filled out of order")

// PendingTransfer collects the parameters of one send flow.
type PendingTransfer struct {
	network   ledger.Network
	recipient ledger.Address
	lamports  uint64

	hasRecipient bool
}

// SetNetwork starts the pending transfer and clears later fields.
func (p *PendingTransfer) SetNetwork(n ledger.Network) {
	*p = PendingTransfer{network: n}
}

// SetRecipient requires a network.
func (p *PendingTransfer) SetRecipient(a ledger.Address) error {
	if p.network == "" {
		return ErrOutOfOrder
	}
	p.recipient = a
	p.hasRecipient = true
	p.lamports = 0
	return nil
}

// SetLamports requires a recipient.
func (p *PendingTransfer) SetLamports(l uint64) error {
	if !p.hasRecipient {
		return ErrOutOfOrder
	}
	p.lamports = l
	return nil
}

// Network returns the chosen cluster, or "" when unset.
func (p PendingTransfer) Network() ledger.Network { return p.network }

// Recipient returns the destination and whether it was set.
func (p PendingTransfer) Recipient() (ledger.Address, bool) { return p.recipient, p.hasRecipient }

// Lamports returns the amount, zero when unset.
func (p PendingTransfer) Lamports() uint64 { return p.lamports }

// Complete reports whether every field is filled.
func (p PendingTransfer) Complete() bool {
	return p.network != "" && p.hasRecipient && p.lamports > 0
}

// Reset discards the pending transfer.
func (p *PendingTransfer) Reset() { *p = PendingTransfer{} }

// Session is the mutable state of one user. It is only handed out under the
// user's lock by Store.Do.
type Session struct {
	UserID    int64
	ChatID    int64
	State     State
	Wallet    *ledger.Address
	Signer    *wallet.SigningMaterial
	Pending   PendingTransfer
	UpdatedAt time.Time
}

// SetSigner replaces the signer, wiping the previous one.
func (s *Session) SetSigner(m *wallet.SigningMaterial) {
	if s.Signer != nil && s.Signer != m {
		s.Signer.Wipe()
	}
	s.Signer = m
}

// WipeSigner zeroes and drops the signing material.
func (s *Session) WipeSigner() {
	if s.Signer != nil {
		s.Signer.Wipe()
		s.Signer = nil
	}
}

// ResetSend clears everything collected by the send flow.
func (s *Session) ResetSend() {
	s.WipeSigner()
	s.Pending.Reset()
}

// View is a read-only copy of a session without signing material.
type View struct {
	UserID    int64
	ChatID    int64
	State     State
	Wallet    *ledger.Address
	HasSigner bool
	UpdatedAt time.Time
}

func (s *Session) view() View {
	v := View{
		UserID:    s.UserID,
		ChatID:    s.ChatID,
		State:     s.State,
		HasSigner: s.Signer != nil,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Wallet != nil {
		w := *s.Wallet
		v.Wallet = &w
	}
	return v
}
