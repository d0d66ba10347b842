package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// AddressSize is the length of an ed25519 public key.
const AddressSize = 32

// ErrInvalidAddress is returned for text that is not a base58 32-byte key.
var ErrInvalidAddress = errors.New("invalid account address")

// Address is a Solana account public key.
type Address [AddressSize]byte

// ParseAddress decodes a base58 account key.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 44 {
		return a, ErrInvalidAddress
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressSize {
		return a, fmt.Errorf("%w: decoded %d bytes", ErrInvalidAddress, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes wraps a raw 32-byte public key.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, ErrInvalidAddress
	}
	copy(a[:], b)
	return a, nil
}

// String encodes the address as base58.
func (a Address) String() string { return base58.Encode(a[:]) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

// Bytes returns a copy of the raw 32 bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressSize)
	copy(out, a[:])
	return out
}
