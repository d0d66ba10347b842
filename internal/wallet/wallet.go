// Package wallet turns user-supplied key material into ed25519 signing keys.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/solwatch/internal/ledger"
)

var (
	// ErrInvalidPhrase is returned for any recovery phrase that cannot be derived.
	ErrInvalidPhrase = errors.New("wallet: invalid recovery phrase")
	// ErrInvalidKeyLength is returned when raw key bytes are not exactly 64 long.
	ErrInvalidKeyLength = errors.New("wallet: raw key must be 64 bytes")
	// ErrKeyMismatch is returned when the public half of a raw key does not
	// belong to its seed half.
	ErrKeyMismatch = errors.New("wallet: raw key public half does not match its seed")
	// ErrInvalidKeyFormat is returned when raw key text is not a list of bytes.
	ErrInvalidKeyFormat = errors.New("wallet: raw key must be comma-separated byte values")
	// ErrWiped is returned by accessors after Wipe.
	ErrWiped = errors.New("wallet: signing material wiped")
)

const redacted = "[REDACTED]"

// SigningMaterial holds a 64-byte ed25519 secret key in memory only.
// Every formatting path redacts it.
type SigningMaterial struct {
	mu    sync.Mutex
	key   ed25519.PrivateKey
	wiped bool
}

func newSigningMaterial(key ed25519.PrivateKey) *SigningMaterial {
	cp := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(cp, key)
	return &SigningMaterial{key: cp}
}

// PublicKey returns the account address implied by the secret key, taken
// from its last 32 bytes.
func (m *SigningMaterial) PublicKey() ledger.Address {
	if m == nil {
		return ledger.Address{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wiped {
		return ledger.Address{}
	}
	a, _ := ledger.AddressFromBytes(m.key[ed25519.SeedSize:])
	return a
}

// Bytes returns a copy of the 64-byte secret key.
func (m *SigningMaterial) Bytes() ([]byte, error) {
	if m == nil {
		return nil, ErrWiped
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wiped {
		return nil, ErrWiped
	}
	out := make([]byte, len(m.key))
	copy(out, m.key)
	return out, nil
}

// PrivateKey returns a copy usable for signing. Callers should zero it after use.
func (m *SigningMaterial) PrivateKey() (ed25519.PrivateKey, error) {
	b, err := m.Bytes()
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(b), nil
}

// Wipe zeroes the key. It is safe to call more than once and on nil.
func (m *SigningMaterial) Wipe() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	zero(m.key)
	m.wiped = true
}

// Wiped reports whether Wipe was called.
func (m *SigningMaterial) Wiped() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wiped
}

func (m *SigningMaterial) String() string   { return redacted }
func (m *SigningMaterial) GoString() string { return "wallet.SigningMaterial{" + redacted + "}" }

// Format keeps %v, %+v, %x and friends from printing the key.
func (m *SigningMaterial) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = fmt.Fprint(f, m.GoString())
		return
	}
	_, _ = fmt.Fprint(f, redacted)
}

// LogValue implements slog.LogValuer.
func (m *SigningMaterial) LogValue() slog.Value { return slog.StringValue(redacted) }

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
