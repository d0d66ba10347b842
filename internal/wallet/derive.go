package wallet

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// SolanaPath is the account path used by common Solana wallets.
var SolanaPath = []uint32{44, 501, 0, 0}

// DeriveFromPhrase validates a BIP-39 phrase and derives the ed25519 key at
// m/44'/501'/0'/0' with an empty passphrase.
func DeriveFromPhrase(phrase string) (*SigningMaterial, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if normalized == "" || !bip39.IsMnemonicValid(normalized) {
		return nil, ErrInvalidPhrase
	}
	seed, err := bip39.NewSeedWithErrorChecking(normalized, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	defer zero(seed)

	child, err := derivePath(seed, SolanaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	defer child.wipe()

	priv := ed25519.NewKeyFromSeed(child.key[:])
	defer zero(priv)
	return newSigningMaterial(priv), nil
}

// DeriveFromRawBytes accepts a 64-byte secret key as exported by Solana
// tooling. The public half must be the one the seed half derives.
func DeriveFromRawBytes(values []byte) (*SigningMaterial, error) {
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(values))
	}
	derived := ed25519.NewKeyFromSeed(values[:ed25519.SeedSize])
	defer zero(derived)
	if !bytes.Equal(derived[ed25519.SeedSize:], values[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}
	return newSigningMaterial(ed25519.PrivateKey(values)), nil
}

// ParseRawKey parses "1, 2, 3" or "[1,2,3]" into bytes. Length is checked by
// DeriveFromRawBytes.
func ParseRawKey(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidKeyFormat
	}
	parts := strings.Split(text, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			zero(out)
			return nil, ErrInvalidKeyFormat
		}
		out = append(out, byte(n))
	}
	return out, nil
}
