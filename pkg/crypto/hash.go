// Package crypto holds the symmetric primitives used by the HomeKey reader:
// SHA-256, HKDF-SHA256, AES-128-CCM and the ISO/IEC 18013-5 session nonce.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
)

// SHA256Size is the SHA-256 digest length in bytes.
const SHA256Size = sha256.Size

// SHA256 returns the SHA-256 digest of message as a slice.
func SHA256(message []byte) []byte {
	h := sha256.Sum256(message)
	return h[:]
}

// RandomBytes reads n octets from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Zeroize overwrites each buffer with zeros.
func Zeroize(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
