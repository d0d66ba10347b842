package wallet

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
)

const (
	hardenedOffset uint32 = 0x80000000
	curveSeedKey          = "ed25519 seed"
)

var errSeedLength = errors.New("slip10: seed must be 16 to 64 bytes")

// extendedKey is a SLIP-0010 ed25519 node.
type extendedKey struct {
	key   [32]byte
	chain [32]byte
}

func (k *extendedKey) wipe() {
	zero(k.key[:])
	zero(k.chain[:])
}

func masterKey(seed []byte) (*extendedKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, errSeedLength
	}
	mac := hmac.New(sha512.New, []byte(curveSeedKey))
	mac.Write(seed)
	return split(mac.Sum(nil)), nil
}

// child derives a hardened child. ed25519 has no public derivation so the
// index is always hardened.
func (k *extendedKey) child(index uint32) *extendedKey {
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, k.key[:]...)
	data = binary.BigEndian.AppendUint32(data, index|hardenedOffset)
	defer zero(data)

	mac := hmac.New(sha512.New, k.chain[:])
	mac.Write(data)
	return split(mac.Sum(nil))
}

func derivePath(seed []byte, path []uint32) (*extendedKey, error) {
	node, err := masterKey(seed)
	if err != nil {
		return nil, err
	}
	for _, idx := range path {
		next := node.child(idx)
		node.wipe()
		node = next
	}
	return node, nil
}

func split(sum []byte) *extendedKey {
	var k extendedKey
	copy(k.key[:], sum[:32])
	copy(k.chain[:], sum[32:])
	zero(sum)
	return &k
}
