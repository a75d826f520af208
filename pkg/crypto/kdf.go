package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFSHA256 derives length octets with HKDF-SHA256 (RFC 5869).
// salt and info may be nil.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, inputKey, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
